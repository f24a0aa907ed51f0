package httpapi

import (
	"net/http"
	"strings"
	"time"

	"authcore.org/internal/audit"
	"authcore.org/internal/auth"
	"authcore.org/internal/obs"
)

const refreshTokenCookie = "refresh_token"

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	CSRFToken string `json:"csrfToken,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	Message      string     `json:"message"`
	User         *auth.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}
	if a.production && !csrfTokenValid(r, req.CSRFToken) {
		writeError(w, r, http.StatusForbidden, "csrf token mismatch")
		return
	}

	res, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.ObserveLogin("failure")
		// One message for unknown user, wrong password, and inactive account.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	obs.ObserveLogin("success")
	obs.ObserveTokenIssued("access")
	obs.ObserveTokenIssued("refresh")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":  res.User.ID,
		"username": res.User.Username,
	})

	a.setAuthCookies(w, res.Pair)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:      "login successful",
		User:         res.User,
		AccessToken:  res.Pair.AccessToken,
		RefreshToken: res.Pair.RefreshToken,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	raw := refreshTokenFromRequest(w, r)
	if raw == "" {
		writeError(w, r, http.StatusUnauthorized, "refresh token is required")
		return
	}
	res, err := a.svc.Refresh(r.Context(), raw)
	if err != nil {
		obs.ObserveTokenVerifyFailure()
		writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	obs.ObserveTokenIssued("access")
	obs.ObserveTokenIssued("refresh")
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": res.User.ID,
	})

	a.setAuthCookies(w, res.Pair)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:      "token refreshed",
		User:         res.User,
		AccessToken:  res.Pair.AccessToken,
		RefreshToken: res.Pair.RefreshToken,
	})
}

// refreshTokenFromRequest prefers the body and falls back to the cookie.
func refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
		return strings.TrimSpace(req.RefreshToken)
	}
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
			"user_id": session.UserID,
		})
	}
	a.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "logout successful",
	})
}

// --- cookies ---

func (a *API) setAuthCookies(w http.ResponseWriter, pair auth.TokenPair) {
	tokens := a.svc.Tokens()
	http.SetCookie(w, a.authCookie(accessTokenCookie, pair.AccessToken, int(tokens.AccessTTL()/time.Second)))
	http.SetCookie(w, a.authCookie(refreshTokenCookie, pair.RefreshToken, int(tokens.RefreshTTL()/time.Second)))
}

func (a *API) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, a.authCookie(accessTokenCookie, "", -1))
	http.SetCookie(w, a.authCookie(refreshTokenCookie, "", -1))
}

func (a *API) authCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteLaxMode,
	}
}
