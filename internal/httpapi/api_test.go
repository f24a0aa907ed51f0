package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authcore.org/internal/auth"
	"authcore.org/internal/store/memory"
)

func newTestAPI(t *testing.T, opts Options) (*API, *memory.Store) {
	t.Helper()
	store := memory.New()
	if err := auth.Seed(context.Background(), store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	tokens, err := auth.NewTokens("httpapi-test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	svc, err := auth.NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, store, opts), store
}

// doJSON runs one request through the session middleware and mux, the way the
// full handler chain would.
func doJSON(t *testing.T, a *API, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	a.withSession(a.mux).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

// login performs the seeded admin login and returns the access token.
func login(t *testing.T, a *API, username, password string) (accessToken string, cookies []*http.Cookie) {
	t.Helper()
	rr := doJSON(t, a, http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	token, _ := body["accessToken"].(string)
	if token == "" {
		t.Fatalf("login response missing accessToken")
	}
	return token, rr.Result().Cookies()
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func TestHealthAndInfo(t *testing.T) {
	a, _ := newTestAPI(t, Options{Version: "test"})

	rr := doJSON(t, a, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["version"] != "test" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	rr = doJSON(t, a, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}

	rr = doJSON(t, a, http.MethodGet, "/v1/info", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("info: %d", rr.Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	a, _ := newTestAPI(t, Options{})
	rr := doJSON(t, a, http.MethodGet, "/nope", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestErrorBodyCarriesRequestID(t *testing.T) {
	a, _ := newTestAPI(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/auth/session", strings.NewReader(""))
	rr := httptest.NewRecorder()
	RequestID(a.withSession(a.mux)).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("expected request_id in error body: %v", body)
	}
}
