// Package httpapi is the HTTP layer: session resolution, permission-gated
// admin CRUD, and the login/refresh/logout endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"authcore.org/internal/auth"
	"authcore.org/internal/obs"
)

// Options configures the API.
type Options struct {
	Version string
	// Production tightens cookie and CSRF behavior.
	Production bool
	// LoginBurst / LoginPerSecond bound the login rate limiter. Zero values
	// fall back to defaults.
	LoginBurst     int
	LoginPerSecond int
	// AllowedOrigins may make credentialed cross-origin requests. Localhost
	// origins are additionally accepted outside production.
	AllowedOrigins []string
}

// API is the HTTP layer over the auth service and store.
type API struct {
	mux            *http.ServeMux
	svc            *auth.Service
	store          auth.Store
	version        string
	production     bool
	allowedOrigins []string
}

// New wires the routes.
func New(svc *auth.Service, store auth.Store, opts Options) *API {
	a := &API{
		mux:            http.NewServeMux(),
		svc:            svc,
		store:          store,
		version:        opts.Version,
		production:     opts.Production,
		allowedOrigins: opts.AllowedOrigins,
	}

	burst, perSecond := opts.LoginBurst, opts.LoginPerSecond
	if burst <= 0 {
		burst = 10
	}
	if perSecond <= 0 {
		perSecond = 5
	}

	// Auth flows. Login carries its own per-IP rate limit.
	a.mux.Handle("/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), burst, perSecond))
	a.mux.HandleFunc("/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/session", a.handleSession)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/csrf", a.handleCSRF)

	// Admin CRUD.
	a.mux.HandleFunc("/admin/users", a.handleUsers)
	a.mux.HandleFunc("/admin/users/", a.handleUserByID)
	a.mux.HandleFunc("/admin/roles", a.handleRoles)
	a.mux.HandleFunc("/admin/roles/", a.handleRoleByID)
	a.mux.HandleFunc("/admin/permissions", a.handlePermissions)
	a.mux.HandleFunc("/admin/permissions/", a.handlePermissionByID)
	a.mux.HandleFunc("/admin/clients", a.handleClients)
	a.mux.HandleFunc("/admin/clients/", a.handleClientByID)

	// health/ready/info/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h, a.production, a.allowedOrigins)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- ops handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authcore-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "authcore-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleStoreError maps store sentinels onto the admin error taxonomy.
// Uniqueness and referential-integrity failures are client errors with a
// field-specific message, not conflicts.
func handleStoreError(w http.ResponseWriter, r *http.Request, err error, conflictMsg, referencedMsg string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusBadRequest, conflictMsg)
	case errors.Is(err, auth.ErrReferenced):
		writeError(w, r, http.StatusBadRequest, referencedMsg)
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// resourceID extracts the trailing id from /admin/<resource>/{id} paths,
// optionally followed by one action segment.
func resourceID(path, prefix string) (id, action string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}
