package domain

// Agent is a configured tutoring persona a learner can converse with.
// Agents are owned and edited by a separate administrative collaborator;
// this core treats them as read-only.
type Agent struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	DisplayName     string   `json:"display_name"`
	SystemPrompt    string   `json:"-"`
	WelcomeMessage  string   `json:"welcome_message,omitempty"`
	Personality     string   `json:"personality,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	ModelPreference string   `json:"model_preference,omitempty"`
	IsActive        bool     `json:"is_active"`
}

// AgentSummary carries the agent fields exposed to listing endpoints.
type AgentSummary struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
	Personality    string `json:"personality,omitempty"`
	IsActive       bool   `json:"is_active"`
}

// Summarize strips prompt and model internals for client listings.
func (a *Agent) Summarize() AgentSummary {
	return AgentSummary{
		ID:             a.ID,
		Name:           a.Name,
		DisplayName:    a.DisplayName,
		WelcomeMessage: a.WelcomeMessage,
		Personality:    a.Personality,
		IsActive:       a.IsActive,
	}
}
