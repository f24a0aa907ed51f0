package httpapi

import (
	"net/http"
	"strings"

	"authcore.org/internal/audit"
	"authcore.org/internal/auth"
)

type roleRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permissions"`
	ClientID      string   `json:"client_id"`
}

type permissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
}

// --- roles ---

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermRolesRead) {
			return
		}
		roles, err := a.store.Roles().List(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermRolesCreate) {
			return
		}
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, r, http.StatusBadRequest, "name is required")
			return
		}
		role := &auth.Role{
			Name:          strings.TrimSpace(req.Name),
			Description:   req.Description,
			PermissionIDs: req.PermissionIDs,
			ClientID:      strings.TrimSpace(req.ClientID),
		}
		if err := a.store.Roles().Create(r.Context(), role); err != nil {
			handleStoreError(w, r, err,
				"role name already exists for this client",
				"role is referenced by another resource")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.role.create", map[string]any{
			"target_id": role.ID,
			"name":      role.Name,
		})
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := resourceID(r.URL.Path, "/admin/roles/")
	if !ok || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermRolesRead) {
			return
		}
		role, err := a.store.Roles().FindByID(r.Context(), id)
		if err != nil {
			handleStoreError(w, r, err, "", "")
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermRolesUpdate) {
			return
		}
		a.updateRole(w, r, id)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermRolesDelete) {
			return
		}
		a.deleteRole(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request, id string) {
	current, err := a.store.Roles().FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	if current.System {
		writeError(w, r, http.StatusBadRequest, "system roles cannot be modified")
		return
	}
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	current.Name = strings.TrimSpace(req.Name)
	current.Description = req.Description
	current.PermissionIDs = req.PermissionIDs
	current.ClientID = strings.TrimSpace(req.ClientID)
	if err := a.store.Roles().Update(r.Context(), current); err != nil {
		handleStoreError(w, r, err,
			"role name already exists for this client",
			"role is referenced by another resource")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.update", map[string]any{
		"target_id": current.ID,
	})
	writeJSON(w, http.StatusOK, current)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request, id string) {
	current, err := a.store.Roles().FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	if current.System {
		writeError(w, r, http.StatusBadRequest, "system roles cannot be deleted")
		return
	}
	assigned, err := a.store.Users().CountByRole(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if assigned > 0 {
		writeError(w, r, http.StatusBadRequest, "role is still assigned to users")
		return
	}
	if err := a.store.Roles().Delete(r.Context(), id); err != nil {
		handleStoreError(w, r, err, "",
			"role is still assigned to users")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.delete", map[string]any{
		"target_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "role deleted"})
}

// --- permissions ---

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermPermissionsRead) {
			return
		}
		perms, err := a.store.Permissions().List(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermPermissionsCreate) {
			return
		}
		var req permissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if msg := validatePermissionFields(req); msg != "" {
			writeError(w, r, http.StatusBadRequest, msg)
			return
		}
		perm := &auth.Permission{
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Resource:    strings.TrimSpace(req.Resource),
			Action:      strings.TrimSpace(req.Action),
		}
		if err := a.store.Permissions().Create(r.Context(), perm); err != nil {
			handleStoreError(w, r, err,
				"permission name already exists",
				"permission is referenced by another resource")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.permission.create", map[string]any{
			"target_id": perm.ID,
			"name":      perm.Name,
		})
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := resourceID(r.URL.Path, "/admin/permissions/")
	if !ok || action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermPermissionsRead) {
			return
		}
		perm, err := a.store.Permissions().FindByID(r.Context(), id)
		if err != nil {
			handleStoreError(w, r, err, "", "")
			return
		}
		writeJSON(w, http.StatusOK, perm)
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermPermissionsUpdate) {
			return
		}
		a.updatePermission(w, r, id)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermPermissionsDelete) {
			return
		}
		if err := a.store.Permissions().Delete(r.Context(), id); err != nil {
			handleStoreError(w, r, err, "",
				"permission is still attached to roles")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.permission.delete", map[string]any{
			"target_id": id,
		})
		writeJSON(w, http.StatusOK, map[string]any{"message": "permission deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updatePermission(w http.ResponseWriter, r *http.Request, id string) {
	current, err := a.store.Permissions().FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePermissionFields(req); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	current.Name = strings.TrimSpace(req.Name)
	current.Description = req.Description
	current.Resource = strings.TrimSpace(req.Resource)
	current.Action = strings.TrimSpace(req.Action)
	if err := a.store.Permissions().Update(r.Context(), current); err != nil {
		handleStoreError(w, r, err,
			"permission name already exists",
			"permission is referenced by another resource")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.update", map[string]any{
		"target_id": current.ID,
	})
	writeJSON(w, http.StatusOK, current)
}

func validatePermissionFields(req permissionRequest) string {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(req.Resource) == "" {
		return "resource is required"
	}
	if strings.TrimSpace(req.Action) == "" {
		return "action is required"
	}
	return ""
}
