package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the auth subsystem consumes. The
// admin console owns the records; this core only reads identities and RBAC
// references, apart from the last-login write on successful login.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Clients() ClientStore

	// Ping reports backend reachability for readiness probes.
	Ping(ctx context.Context) error
}

// UserStore manages user accounts. Username and email lookups are
// case-insensitive; implementations store both lower-cased.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	// FindByUsernameOrEmail matches the identifier against either unique field.
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, when time.Time) error
	// CountByRole reports how many users hold the role; used to block deletes.
	CountByRole(ctx context.Context, roleID string) (int, error)
}

// RoleStore manages roles.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
	// CountByPermission reports how many roles reference the permission.
	CountByPermission(ctx context.Context, permissionID string) (int, error)
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Create(ctx context.Context, p *Permission) error
	FindByID(ctx context.Context, id string) (*Permission, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	List(ctx context.Context) ([]*Permission, error)
	Update(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, id string) error
	// Ensure inserts any of the given permissions that are missing, by name.
	Ensure(ctx context.Context, perms []Permission) error
}

// ClientStore manages registered OAuth2 clients.
type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	FindByID(ctx context.Context, id string) (*Client, error)
	FindByClientID(ctx context.Context, clientID string) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id string) error
	// UpdateSecret replaces the client secret; the old value becomes invalid.
	UpdateSecret(ctx context.Context, id, secret string) error
}
