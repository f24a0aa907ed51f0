package auth

import (
	"context"
	"errors"
	"fmt"
)

// Demo credentials installed by Seed. Matches what the admin console documents
// for first login.
const (
	SeedAdminUsername = "admin"
	SeedTestUsername  = "testuser"
	SeedPassword      = "admin123"
)

// Seed installs the builtin permission catalog, the system admin/user roles
// scoped to the admin-panel client, two demo users, and the admin-panel client
// itself. It is idempotent: existing records are left untouched.
func Seed(ctx context.Context, store Store) error {
	catalog := BuiltinPermissions()
	if err := store.Permissions().Ensure(ctx, catalog); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	// Resolve the catalog by name so the system roles carry exactly the builtin
	// permissions, never custom ones added later.
	allIDs := make([]string, 0, len(catalog))
	readIDs := make([]string, 0, 4)
	for _, entry := range catalog {
		p, err := store.Permissions().FindByName(ctx, entry.Name)
		if err != nil {
			return fmt.Errorf("seed lookup %s: %w", entry.Name, err)
		}
		allIDs = append(allIDs, p.ID)
		if p.Action == "read" {
			readIDs = append(readIDs, p.ID)
		}
	}

	adminRole, err := ensureRole(ctx, store, &Role{
		Name:          "admin",
		Description:   "Administrator role with full access",
		PermissionIDs: allIDs,
		ClientID:      AdminClientID,
		System:        true,
	})
	if err != nil {
		return fmt.Errorf("seed admin role: %w", err)
	}
	userRole, err := ensureRole(ctx, store, &Role{
		Name:          "user",
		Description:   "Regular user role",
		PermissionIDs: readIDs,
		ClientID:      AdminClientID,
		System:        true,
	})
	if err != nil {
		return fmt.Errorf("seed user role: %w", err)
	}

	if err := ensureUser(ctx, store, &User{
		Username:  SeedAdminUsername,
		Email:     "admin@example.com",
		FirstName: "Admin",
		LastName:  "User",
		RoleIDs:   []string{adminRole.ID},
		Active:    true,
	}); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	if err := ensureUser(ctx, store, &User{
		Username:  SeedTestUsername,
		Email:     "test@example.com",
		FirstName: "Test",
		LastName:  "User",
		RoleIDs:   []string{userRole.ID},
		Active:    true,
	}); err != nil {
		return fmt.Errorf("seed test user: %w", err)
	}

	if err := ensureAdminClient(ctx, store); err != nil {
		return fmt.Errorf("seed admin client: %w", err)
	}
	return nil
}

func ensureRole(ctx context.Context, store Store, role *Role) (*Role, error) {
	existing, err := store.Roles().List(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Name == role.Name && r.ClientID == role.ClientID {
			return r, nil
		}
	}
	if err := store.Roles().Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func ensureUser(ctx context.Context, store Store, user *User) error {
	_, err := store.Users().FindByUsernameOrEmail(ctx, user.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := HashPassword(SeedPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return store.Users().Create(ctx, user)
}

func ensureAdminClient(ctx context.Context, store Store) error {
	_, err := store.Clients().FindByClientID(ctx, AdminClientID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	secret, err := NewClientSecret()
	if err != nil {
		return err
	}
	return store.Clients().Create(ctx, &Client{
		ClientID:                AdminClientID,
		Secret:                  secret,
		Name:                    "Admin Panel",
		Description:             "OAuth2 admin console application",
		RedirectURIs:            []string{"http://localhost:3000/admin", "http://localhost:3000/login"},
		GrantTypes:              []string{GrantAuthorizationCode, GrantClientCredentials, GrantRefreshToken},
		ResponseTypes:           []string{"code"},
		Scopes:                  []string{"openid", "profile", "email", "roles", "permissions", "admin"},
		Confidential:            true,
		Active:                  true,
		TokenEndpointAuthMethod: AuthMethodSecretBasic,
	})
}
