//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/ashureev/newschat/internal/responder"
	"github.com/ashureev/newschat/internal/session"
	"github.com/ashureev/newschat/internal/store"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorShapes(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusTeapot, "nope")
	if !strings.Contains(w.Body.String(), `"error":"nope"`) {
		t.Errorf("unexpected error body %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	Detail(w, http.StatusNotFound, "missing")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"detail":"missing"`) {
		t.Errorf("unexpected detail response %d %q", w.Code, w.Body.String())
	}
}

func newTestRouter(t *testing.T, r responder.Responder) (http.Handler, *session.Service) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := session.NewService(repo, r, time.Hour)
	router := chi.NewRouter()
	NewSessionHandler(NewHandler(svc, nil)).RegisterRoutes(router)
	NewHealthHandler(repo, time.Second).RegisterHealth(router)
	return router, svc
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoot(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t, responder.Echo{})

	w := do(t, h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "News Chatbot Backend is running!") {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t, responder.Echo{})

	w := do(t, h, http.MethodPost, "/session/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", w.Code)
	}
	var start StartResponse
	if err := json.Unmarshal(w.Body.Bytes(), &start); err != nil || start.SessionToken == "" {
		t.Fatalf("start: bad body %q (%v)", w.Body.String(), err)
	}

	w = do(t, h, http.MethodGet, "/session/history/"+start.SessionToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	var hist HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("history: %v", err)
	}
	if hist.History == nil || len(hist.History) != 0 {
		t.Fatalf("expected empty non-null history, got %q", w.Body.String())
	}

	w = do(t, h, http.MethodDelete, "/session/clear/"+start.SessionToken, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Session cleared successfully") {
		t.Fatalf("clear: unexpected %d %q", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/session/history/"+start.SessionToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("history after clear: expected 404, got %d", w.Code)
	}
	w = do(t, h, http.MethodDelete, "/session/clear/"+start.SessionToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second clear: expected 404, got %d", w.Code)
	}
}

func TestClearClosesConnection(t *testing.T) {
	t.Parallel()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = repo.Close() }()
	svc := session.NewService(repo, responder.Echo{}, time.Hour)

	var closed []string
	router := chi.NewRouter()
	NewSessionHandler(NewHandler(svc, func(token string) { closed = append(closed, token) })).RegisterRoutes(router)

	token, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if w := do(t, router, http.MethodDelete, "/session/clear/"+token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(closed) != 1 || closed[0] != token {
		t.Fatalf("expected connection close for %s, got %v", token, closed)
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()
	h, svc := newTestRouter(t, responder.Func(func(_ context.Context, _ []domain.Message, q string) (string, error) {
		return "re: " + q, nil
	}))

	w := do(t, h, http.MethodPost, "/chat/query", QueryRequest{Query: "first"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %q", w.Code, w.Body.String())
	}
	var resp QueryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionToken == "" || resp.Answer != "re: first" {
		t.Fatalf("unexpected response %+v", resp)
	}

	w = do(t, h, http.MethodPost, "/chat/query", QueryRequest{Query: "second", SessionToken: resp.SessionToken})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with existing token, got %d", w.Code)
	}

	history, err := svc.History(context.Background(), resp.SessionToken)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %v", history)
	}
}

func TestQueryErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "invalid json", body: "{", status: http.StatusBadRequest},
		{name: "empty query", body: `{"query":"  "}`, status: http.StatusBadRequest},
		{name: "unknown token", body: `{"query":"hi","session_token":"nope"}`, status: http.StatusUnauthorized},
	}

	h, _ := newTestRouter(t, responder.Echo{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat/query", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d %q", tt.status, w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"detail"`) {
				t.Fatalf("expected detail body, got %q", w.Body.String())
			}
		})
	}
}

func TestQueryResponderFailure(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t, responder.Func(func(context.Context, []domain.Message, string) (string, error) {
		return "", errors.New("boom")
	}))

	w := do(t, h, http.MethodPost, "/chat/query", QueryRequest{Query: "hi"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Fatalf("internal error leaked: %q", w.Body.String())
	}
}

type pingRepo struct {
	store.Repository
	err error
}

func (p pingRepo) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{name: "healthy", status: http.StatusOK, want: `"status":"healthy"`},
		{name: "degraded", err: errors.New("down"), status: http.StatusServiceUnavailable, want: `"store":"unreachable"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(pingRepo{err: tt.err}, 0).RegisterHealth(r)

			w := do(t, r, http.MethodGet, "/healthz", nil)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Fatalf("expected %s in %q", tt.want, w.Body.String())
			}
		})
	}
}

func TestHealthReportsConnections(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	NewHealthHandler(pingRepo{}, 0).WithConnections(func() int { return 3 }).RegisterHealth(r)

	w := do(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"connections":3`) {
		t.Fatalf("expected connection count in %q", w.Body.String())
	}
}
