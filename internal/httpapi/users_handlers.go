package httpapi

import (
	"net/http"
	"net/mail"
	"strings"

	"authcore.org/internal/audit"
	"authcore.org/internal/auth"
)

type createUserRequest struct {
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	Password    string         `json:"password"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	RoleIDs     []string       `json:"roles"`
	Active      *bool          `json:"is_active"`
	AppMetadata map[string]any `json:"app_metadata"`
}

type updateUserRequest struct {
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	Password    string         `json:"password"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	RoleIDs     []string       `json:"roles"`
	Active      *bool          `json:"is_active"`
	AppMetadata map[string]any `json:"app_metadata"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUsersRead) {
			return
		}
		users, err := a.store.Users().List(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermUsersCreate) {
			return
		}
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateUserFields(req.Username, req.Email); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := &auth.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		RoleIDs:      req.RoleIDs,
		Active:       active,
		AppMetadata:  req.AppMetadata,
	}
	if err := a.store.Users().Create(r.Context(), user); err != nil {
		handleStoreError(w, r, err,
			"username or email already exists",
			"user is referenced by another resource")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.create", map[string]any{
		"target_id": user.ID,
		"username":  user.Username,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := resourceID(r.URL.Path, "/admin/users/")
	if !ok || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUsersRead) {
			return
		}
		user, err := a.store.Users().FindByID(r.Context(), id)
		if err != nil {
			handleStoreError(w, r, err, "", "")
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermUsersUpdate) {
			return
		}
		a.updateUser(w, r, id)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermUsersDelete) {
			return
		}
		if err := a.store.Users().Delete(r.Context(), id); err != nil {
			handleStoreError(w, r, err, "", "user is referenced by another resource")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.user.delete", map[string]any{
			"target_id": id,
		})
		writeJSON(w, http.StatusOK, map[string]any{"message": "user deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	current, err := a.store.Users().FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateUserFields(req.Username, req.Email); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	current.Username = req.Username
	current.Email = req.Email
	current.FirstName = strings.TrimSpace(req.FirstName)
	current.LastName = strings.TrimSpace(req.LastName)
	current.RoleIDs = req.RoleIDs
	current.AppMetadata = req.AppMetadata
	if req.Active != nil {
		current.Active = *req.Active
	}
	if req.Password != "" {
		if len(req.Password) < 8 {
			writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		current.PasswordHash = hash
	}
	if err := a.store.Users().Update(r.Context(), current); err != nil {
		handleStoreError(w, r, err,
			"username or email already exists",
			"user is referenced by another resource")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.update", map[string]any{
		"target_id": current.ID,
	})
	writeJSON(w, http.StatusOK, current)
}

func validateUserFields(username, email string) string {
	if strings.TrimSpace(username) == "" {
		return "username is required"
	}
	if strings.TrimSpace(email) == "" {
		return "email is required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "email is invalid"
	}
	return ""
}
