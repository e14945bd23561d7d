package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avilov/tutorlab/internal/audit"
	"github.com/avilov/tutorlab/internal/device"
	"github.com/avilov/tutorlab/internal/identity"
	"github.com/avilov/tutorlab/internal/provider"
	"github.com/avilov/tutorlab/internal/store"
	"github.com/avilov/tutorlab/internal/tutor"
	"github.com/go-chi/chi/v5"
)

type fakeAdapter struct {
	err error
}

func (f fakeAdapter) Name() string { return "fake" }

func (f fakeAdapter) Send(context.Context, provider.ChatRequest) (*provider.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ChatResponse{Reply: "fake answer", Model: "fake-model", ResponseTimeMs: 5}, nil
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(context.Context) (*provider.Selection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Selection{ServiceName: "fake", APIKey: "k"}, nil
}

type fakeFactory struct {
	adapter provider.Adapter
}

func (f fakeFactory) New(provider.Selection) (provider.Adapter, error) {
	return f.adapter, nil
}

func newTestRouter(t *testing.T, resolver tutor.Resolver, adapter provider.Adapter) http.Handler {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	auditor := audit.New(repo, nil)
	svc := tutor.NewService(repo, resolver, fakeFactory{adapter: adapter}, auditor, tutor.Options{})
	handler := NewHandler(svc, auditor, device.HeaderClassifier{}, 0)

	r := chi.NewRouter()
	r.Use(identity.Middleware())
	handler.RegisterRoutes(r)
	handler.RegisterAdminRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(identity.UserIDHeader, userID)
	}
	if role != "" {
		req.Header.Set(identity.RoleHeader, role)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env
}

func TestGetSession(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodGet, "/api/tutor/session", "", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env["success"] != true {
		t.Errorf("expected success envelope, got %v", env)
	}
	data, ok := env["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", env["data"])
	}
	session, ok := data["session"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected session object, got %v", data["session"])
	}
	if session["mode"] != "manual" {
		t.Errorf("expected default manual mode, got %v", session["mode"])
	}
	agents, ok := data["agents"].([]interface{})
	if !ok || len(agents) == 0 {
		t.Fatalf("expected seeded agents in overview, got %v", data["agents"])
	}
	// Agent summaries never leak the system prompt.
	if first, ok := agents[0].(map[string]interface{}); ok {
		if _, leaked := first["system_prompt"]; leaked {
			t.Error("agent summary must not expose the system prompt")
		}
	}
}

func TestGetSession_Unauthenticated(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodGet, "/api/tutor/session", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}

func TestUpdateMode(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPut, "/api/tutor/session/mode", `{"mode":"router"}`, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPut, "/api/tutor/session/mode", `{"mode":"turbo"}`, "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bogus mode, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env["success"] != false {
		t.Errorf("expected failure envelope, got %v", env)
	}

	rec = doRequest(t, router, http.MethodPut, "/api/tutor/session/mode", `{}`, "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing mode, got %d", rec.Code)
	}
}

func TestSetActiveAgent(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPut, "/api/tutor/session/agent", `{"agentId":1}`, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPut, "/api/tutor/session/agent", `{"agentId":9999}`, "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown agent, got %d", rec.Code)
	}
}

func TestSendMessage(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"what is Go?"}`, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	data, ok := env["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", env["data"])
	}
	assistant, ok := data["assistantMessage"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected assistant message, got %v", data["assistantMessage"])
	}
	if assistant["content"] != "fake answer" {
		t.Errorf("unexpected assistant content %v", assistant["content"])
	}
	if data["model"] != "fake-model" {
		t.Errorf("expected model attribution, got %v", data["model"])
	}
}

func TestSendMessage_EmptyMessage(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":""}`, "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"   "}`, "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for whitespace message, got %d", rec.Code)
	}
}

func TestSendMessage_InvalidAgentID(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/socrates/messages",
		`{"message":"hi"}`, "alice", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric agent id, got %d", rec.Code)
	}
}

func TestSendMessage_NoProviderConfigured(t *testing.T) {
	router := newTestRouter(t, fakeResolver{err: provider.ErrNoProviderConfigured}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"hi"}`, "alice", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no provider, got %d", rec.Code)
	}
}

func TestSendMessage_ProviderFailure(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{
		err: &provider.Error{Provider: "fake", StatusCode: 500, Message: "upstream down"},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"hi"}`, "alice", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	errMsg, _ := env["error"].(string)
	if !strings.Contains(errMsg, "upstream down") {
		t.Errorf("expected upstream message preserved, got %q", errMsg)
	}
}

func TestClearConversation(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"hi"}`, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("send failed: %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/tutor/conversations/1", "", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env["data"].(map[string]interface{})
	if !ok || data["deleted"] != float64(2) {
		t.Errorf("expected 2 deleted messages, got %v", env["data"])
	}
}

func TestAdminInteractions_RequiresAdmin(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodGet, "/api/admin/interactions", "", "alice", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/admin/interactions/stats", "", "alice", "learner")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for learner role, got %d", rec.Code)
	}
}

func TestAdminInteractions(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"hi"}`, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("send failed: %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/admin/interactions?userId=alice", "", "admin-1", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	logs, ok := env["data"].([]interface{})
	if !ok {
		t.Fatalf("expected log array, got %v", env["data"])
	}
	if len(logs) != 2 {
		t.Errorf("expected 2 audit rows for one turn, got %d", len(logs))
	}

	rec = doRequest(t, router, http.MethodGet, "/api/admin/interactions?startDate=banana", "", "admin-1", "admin")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}
}

func TestAdminStats(t *testing.T) {
	router := newTestRouter(t, fakeResolver{}, fakeAdapter{})

	rec := doRequest(t, router, http.MethodPost, "/api/tutor/conversations/1/messages",
		`{"message":"hi"}`, "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("send failed: %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/admin/interactions/stats", "", "admin-1", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected stats object, got %v", env["data"])
	}
	if data["totalMessages"] != float64(2) {
		t.Errorf("expected 2 total messages, got %v", data["totalMessages"])
	}
	if data["activeUsers"] != float64(1) {
		t.Errorf("expected 1 active user, got %v", data["activeUsers"])
	}
}
