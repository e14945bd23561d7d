package domain

// ProviderConfig is a persisted LLM backend credential row. Rows are
// managed by an administrative collaborator; this core only reads them.
type ProviderConfig struct {
	ID           int64
	ServiceName  string
	APIKey       string
	DefaultModel string
	IsActive     bool
}
