package auth

import "time"

// Enumerated client configuration values. Anything outside these sets is
// rejected at the API boundary.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"

	ResponseTypeCode    = "code"
	ResponseTypeIDToken = "id_token"
	ResponseTypeToken   = "token"

	AuthMethodSecretBasic = "client_secret_basic"
	AuthMethodSecretPost  = "client_secret_post"
	AuthMethodNone        = "none"
)

// ValidGrantType reports whether g is a supported OAuth2 grant.
func ValidGrantType(g string) bool {
	switch g {
	case GrantAuthorizationCode, GrantClientCredentials, GrantRefreshToken:
		return true
	}
	return false
}

// ValidResponseType reports whether rt is a supported authorization response type.
func ValidResponseType(rt string) bool {
	switch rt {
	case ResponseTypeCode, ResponseTypeIDToken, ResponseTypeToken:
		return true
	}
	return false
}

// ValidTokenEndpointAuthMethod reports whether m is a supported client
// authentication method.
func ValidTokenEndpointAuthMethod(m string) bool {
	switch m {
	case AuthMethodSecretBasic, AuthMethodSecretPost, AuthMethodNone:
		return true
	}
	return false
}

// User is a human account managed by the admin console. Username and email are
// stored lower-cased and are globally unique. PasswordHash is the only form the
// secret ever takes after creation.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	RoleIDs      []string       `json:"roles"`
	Active       bool           `json:"is_active"`
	LastLogin    *time.Time     `json:"last_login,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Role groups permissions. A role is either global (empty ClientID) or owned by
// one OAuth2 client; (Name, ClientID) is unique. System roles are seeded and must
// not be mutated or deleted.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PermissionIDs []string  `json:"permissions"`
	ClientID      string    `json:"client_id,omitempty"`
	System        bool      `json:"is_system"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability named "resource:action".
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Client is a registered OAuth2 relying party. ClientID is immutable after
// creation; Secret is shown only on creation and regeneration.
type Client struct {
	ID                      string    `json:"id"`
	ClientID                string    `json:"client_id"`
	Secret                  string    `json:"client_secret,omitempty"`
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	Scopes                  []string  `json:"scopes"`
	Confidential            bool      `json:"is_confidential"`
	Active                  bool      `json:"is_active"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Redacted returns a copy safe to return from read endpoints: the secret is
// never shown again after creation or regeneration.
func (c Client) Redacted() Client {
	c.Secret = ""
	return c
}

// Claims is the decoded payload of a signed token. For access tokens all fields
// are populated and Metadata holds the caller-supplied appMetadata keys that were
// merged into the top level of the payload. Refresh tokens carry only Subject and
// TokenType.
type Claims struct {
	Subject     string
	Username    string
	Email       string
	Roles       []string
	Permissions []string
	Metadata    map[string]any
	TokenType   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Session is the caller identity resolved for one request. Role and permission
// sets are unordered; membership checks go through HasRole/HasPermission.
type Session struct {
	UserID      string         `json:"userId"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	Roles       []string       `json:"roles"`
	Permissions []string       `json:"permissions"`
	Metadata    map[string]any `json:"appMetadata,omitempty"`

	roleSet map[string]struct{}
	permSet map[string]struct{}
}

// NewSession builds a session from verified access-token claims.
func NewSession(c *Claims) *Session {
	s := &Session{
		UserID:      c.Subject,
		Username:    c.Username,
		Email:       c.Email,
		Roles:       c.Roles,
		Permissions: c.Permissions,
		Metadata:    c.Metadata,
	}
	s.index()
	return s
}

func (s *Session) index() {
	s.roleSet = make(map[string]struct{}, len(s.Roles))
	for _, r := range s.Roles {
		s.roleSet[r] = struct{}{}
	}
	s.permSet = make(map[string]struct{}, len(s.Permissions))
	for _, p := range s.Permissions {
		s.permSet[p] = struct{}{}
	}
}

// HasPermission reports whether the session's permission set contains name.
func (s *Session) HasPermission(name string) bool {
	if s == nil {
		return false
	}
	if s.permSet == nil {
		s.index()
	}
	_, ok := s.permSet[name]
	return ok
}

// HasRole reports whether the session's role set contains name.
func (s *Session) HasRole(name string) bool {
	if s == nil {
		return false
	}
	if s.roleSet == nil {
		s.index()
	}
	_, ok := s.roleSet[name]
	return ok
}
