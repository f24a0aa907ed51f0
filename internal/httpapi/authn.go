package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"authcore.org/internal/auth"
	"authcore.org/internal/obs"
)

const (
	authHeader        = "Authorization"
	bearer            = "Bearer "
	accessTokenCookie = "access_token"
)

// ClaimSource extracts a raw access token from a request. Sources are tried in
// order; the first one that yields a token wins, even if the token later fails
// verification. A cookie takes priority over the Authorization header.
type ClaimSource interface {
	Token(r *http.Request) (string, bool)
}

// CookieSource reads the access token cookie.
type CookieSource struct{}

func (CookieSource) Token(r *http.Request) (string, bool) {
	c, err := r.Cookie(accessTokenCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// BearerSource reads the Authorization header.
type BearerSource struct{}

func (BearerSource) Token(r *http.Request) (string, bool) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return "", false
	}
	return token, true
}

var defaultSources = []ClaimSource{CookieSource{}, BearerSource{}}

// withSession resolves the caller's session from the request credentials and
// attaches it to the context. Resolution failures leave the request
// unauthenticated rather than rejecting it; each protected handler decides
// whether a session is required.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := tokenFromRequest(r, defaultSources)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		session, err := a.svc.ResolveAccessToken(raw)
		if err != nil {
			obs.ObserveTokenVerifyFailure()
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.ContextWithSession(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request, sources []ClaimSource) (string, bool) {
	for _, src := range sources {
		if token, ok := src.Token(r); ok {
			return token, true
		}
	}
	return "", false
}

// ensurePermission gates a protected handler. Missing session maps to 401,
// missing permission to 403 naming the permission. Returns false when the
// response has already been written.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) bool {
	session, _ := auth.SessionFromContext(r.Context())
	err := auth.RequirePermission(session, perm)
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	case errors.Is(err, auth.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
		return false
	default:
		writeError(w, r, http.StatusInternalServerError, "authorization error")
		return false
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
