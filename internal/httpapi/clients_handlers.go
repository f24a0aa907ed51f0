package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"authcore.org/internal/audit"
	"authcore.org/internal/auth"
)

type clientRequest struct {
	ClientID                string   `json:"client_id"`
	Name                    string   `json:"name"`
	Description             string   `json:"description"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scopes                  []string `json:"scopes"`
	Confidential            *bool    `json:"is_confidential"`
	Active                  *bool    `json:"is_active"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermClientsRead) {
			return
		}
		clients, err := a.store.Clients().List(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		redacted := make([]auth.Client, 0, len(clients))
		for _, c := range clients {
			redacted = append(redacted, c.Redacted())
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": redacted})
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermClientsCreate) {
			return
		}
		a.createClient(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, r, http.StatusBadRequest, "client_id is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if msg := validateClientConfig(req); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	secret, err := auth.NewClientSecret()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	confidential := true
	if req.Confidential != nil {
		confidential = *req.Confidential
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	authMethod := strings.TrimSpace(req.TokenEndpointAuthMethod)
	if authMethod == "" {
		authMethod = auth.AuthMethodSecretBasic
	}
	client := &auth.Client{
		ClientID:                strings.TrimSpace(req.ClientID),
		Secret:                  secret,
		Name:                    strings.TrimSpace(req.Name),
		Description:             req.Description,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		Scopes:                  req.Scopes,
		Confidential:            confidential,
		Active:                  active,
		TokenEndpointAuthMethod: authMethod,
	}
	if err := a.store.Clients().Create(r.Context(), client); err != nil {
		handleStoreError(w, r, err,
			"client_id already exists",
			"client is referenced by another resource")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.client.create", map[string]any{
		"target_id": client.ID,
		"client_id": client.ClientID,
	})
	// The only response that ever carries the secret.
	writeJSON(w, http.StatusCreated, client)
}

func (a *API) handleClientByID(w http.ResponseWriter, r *http.Request) {
	id, action, ok := resourceID(r.URL.Path, "/admin/clients/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if action == "regenerate-secret" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if !a.ensurePermission(w, r, auth.PermClientsUpdate) {
			return
		}
		a.regenerateClientSecret(w, r, id)
		return
	}
	if action != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermClientsRead) {
			return
		}
		client, err := a.store.Clients().FindByID(r.Context(), id)
		if err != nil {
			handleStoreError(w, r, err, "", "")
			return
		}
		writeJSON(w, http.StatusOK, client.Redacted())
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermClientsUpdate) {
			return
		}
		a.updateClient(w, r, id)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermClientsDelete) {
			return
		}
		if err := a.store.Clients().Delete(r.Context(), id); err != nil {
			handleStoreError(w, r, err, "", "client is referenced by another resource")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.client.delete", map[string]any{
			"target_id": id,
		})
		writeJSON(w, http.StatusOK, map[string]any{"message": "client deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateClient(w http.ResponseWriter, r *http.Request, id string) {
	current, err := a.store.Clients().FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	var req clientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if msg := validateClientConfig(req); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	// client_id and secret never change through this path.
	current.Name = strings.TrimSpace(req.Name)
	current.Description = req.Description
	current.RedirectURIs = req.RedirectURIs
	current.GrantTypes = req.GrantTypes
	current.ResponseTypes = req.ResponseTypes
	current.Scopes = req.Scopes
	if req.Confidential != nil {
		current.Confidential = *req.Confidential
	}
	if req.Active != nil {
		current.Active = *req.Active
	}
	if m := strings.TrimSpace(req.TokenEndpointAuthMethod); m != "" {
		current.TokenEndpointAuthMethod = m
	}
	if err := a.store.Clients().Update(r.Context(), current); err != nil {
		handleStoreError(w, r, err,
			"client_id already exists",
			"client is referenced by another resource")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.client.update", map[string]any{
		"target_id": current.ID,
	})
	writeJSON(w, http.StatusOK, current.Redacted())
}

// validateClientConfig checks the enumerated fields against their allowed sets.
func validateClientConfig(req clientRequest) string {
	for _, g := range req.GrantTypes {
		if !auth.ValidGrantType(g) {
			return fmt.Sprintf("unsupported grant type %q", g)
		}
	}
	for _, rt := range req.ResponseTypes {
		if !auth.ValidResponseType(rt) {
			return fmt.Sprintf("unsupported response type %q", rt)
		}
	}
	if m := strings.TrimSpace(req.TokenEndpointAuthMethod); m != "" && !auth.ValidTokenEndpointAuthMethod(m) {
		return fmt.Sprintf("unsupported token endpoint auth method %q", m)
	}
	return ""
}

func (a *API) regenerateClientSecret(w http.ResponseWriter, r *http.Request, id string) {
	client, err := a.store.Clients().FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	secret, err := auth.NewClientSecret()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.store.Clients().UpdateSecret(r.Context(), client.ID, secret); err != nil {
		handleStoreError(w, r, err, "", "")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.client.regenerate_secret", map[string]any{
		"target_id": client.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"client_id":     client.ClientID,
		"client_secret": secret,
	})
}
