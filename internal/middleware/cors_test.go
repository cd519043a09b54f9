package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
		wantCreds  bool
	}{
		{name: "wildcard echoes origin", allowed: []string{"*"}, origin: "https://a.example", wantOrigin: "https://a.example"},
		{name: "explicit origin gets credentials", allowed: []string{"https://a.example"}, origin: "https://a.example", wantOrigin: "https://a.example", wantCreds: true},
		{name: "unknown origin", allowed: []string{"https://a.example"}, origin: "https://b.example"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
			if w.Code != http.StatusNoContent {
				t.Errorf("expected request to reach handler, got %d", w.Code)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	called := false
	h := CORS([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/chat/query", nil)
	req.Header.Set("Origin", "https://a.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if called {
		t.Fatal("preflight reached the handler")
	}
}

func TestOrigins(t *testing.T) {
	t.Parallel()

	if got := Origins(""); len(got) != 1 || got[0] != "*" {
		t.Errorf("Origins(\"\") = %v", got)
	}
	if got := Origins("https://app.example/"); len(got) != 1 || got[0] != "https://app.example" {
		t.Errorf("Origins(url) = %v", got)
	}
}
