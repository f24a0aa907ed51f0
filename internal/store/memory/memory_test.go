package memory

import (
	"context"
	"errors"
	"testing"

	"authcore.org/internal/auth"
)

func TestUserUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	first := &auth.User{Username: "alice", Email: "alice@example.com", Active: true}
	if err := store.Users().Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dupeName := &auth.User{Username: "Alice", Email: "other@example.com"}
	if err := store.Users().Create(ctx, dupeName); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict for username, got %v", err)
	}
	dupeMail := &auth.User{Username: "bob", Email: "ALICE@example.com"}
	if err := store.Users().Create(ctx, dupeMail); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict for email, got %v", err)
	}
}

func TestUserLookupByEitherIdentifier(t *testing.T) {
	store := New()
	ctx := context.Background()

	u := &auth.User{Username: "alice", Email: "alice@example.com"}
	if err := store.Users().Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byName, err := store.Users().FindByUsernameOrEmail(ctx, " ALICE ")
	if err != nil || byName.ID != u.ID {
		t.Fatalf("lookup by username: %v %v", byName, err)
	}
	byMail, err := store.Users().FindByUsernameOrEmail(ctx, "alice@example.com")
	if err != nil || byMail.ID != u.ID {
		t.Fatalf("lookup by email: %v %v", byMail, err)
	}
	if _, err := store.Users().FindByUsernameOrEmail(ctx, "nobody"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnedUserIsACopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	u := &auth.User{
		Username:    "alice",
		Email:       "alice@example.com",
		RoleIDs:     []string{"role-1"},
		AppMetadata: map[string]any{"tenant": "acme"},
	}
	if err := store.Users().Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Users().FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	got.RoleIDs[0] = "mutated"
	got.AppMetadata["tenant"] = "mutated"

	again, err := store.Users().FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if again.RoleIDs[0] != "role-1" || again.AppMetadata["tenant"] != "acme" {
		t.Fatalf("stored user was mutated through a returned copy: %+v", again)
	}
}

func TestRoleDeleteBlockedWhileAssigned(t *testing.T) {
	store := New()
	ctx := context.Background()

	role := &auth.Role{Name: "admin", ClientID: "admin-panel"}
	if err := store.Roles().Create(ctx, role); err != nil {
		t.Fatalf("Create role: %v", err)
	}
	user := &auth.User{Username: "alice", Email: "a@b.c", RoleIDs: []string{role.ID}}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	if err := store.Roles().Delete(ctx, role.ID); !errors.Is(err, auth.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}

	user.RoleIDs = nil
	if err := store.Users().Update(ctx, user); err != nil {
		t.Fatalf("Update user: %v", err)
	}
	if err := store.Roles().Delete(ctx, role.ID); err != nil {
		t.Fatalf("Delete after unassign: %v", err)
	}
}

func TestPermissionDeleteBlockedWhileAttached(t *testing.T) {
	store := New()
	ctx := context.Background()

	perm := &auth.Permission{Name: "users:read", Resource: "users", Action: "read"}
	if err := store.Permissions().Create(ctx, perm); err != nil {
		t.Fatalf("Create permission: %v", err)
	}
	role := &auth.Role{Name: "viewer", ClientID: "admin-panel", PermissionIDs: []string{perm.ID}}
	if err := store.Roles().Create(ctx, role); err != nil {
		t.Fatalf("Create role: %v", err)
	}

	if err := store.Permissions().Delete(ctx, perm.ID); !errors.Is(err, auth.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
}

func TestRoleNameUniquePerClient(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Roles().Create(ctx, &auth.Role{Name: "admin", ClientID: "app-a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Same name under a different client is fine.
	if err := store.Roles().Create(ctx, &auth.Role{Name: "admin", ClientID: "app-b"}); err != nil {
		t.Fatalf("Create under second client: %v", err)
	}
	if err := store.Roles().Create(ctx, &auth.Role{Name: "admin", ClientID: "app-a"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPermissionEnsureIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	catalog := auth.BuiltinPermissions()
	if err := store.Permissions().Ensure(ctx, catalog); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := store.Permissions().Ensure(ctx, catalog); err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	perms, err := store.Permissions().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(perms) != len(catalog) {
		t.Fatalf("expected %d permissions, got %d", len(catalog), len(perms))
	}
}

func TestClientIdentityImmutableOnUpdate(t *testing.T) {
	store := New()
	ctx := context.Background()

	c := &auth.Client{ClientID: "admin-panel", Secret: "original", Name: "Admin Panel"}
	if err := store.Clients().Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	c.ClientID = "hijacked"
	c.Secret = "guessed"
	c.Name = "Renamed"
	if err := store.Clients().Update(ctx, c); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Clients().FindByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.ClientID != "admin-panel" || got.Secret != "original" {
		t.Fatalf("client identity changed on update: %+v", got)
	}
	if got.Name != "Renamed" {
		t.Fatalf("mutable field not updated: %+v", got)
	}
}

func TestClientSecretRotation(t *testing.T) {
	store := New()
	ctx := context.Background()

	c := &auth.Client{ClientID: "admin-panel", Secret: "old"}
	if err := store.Clients().Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Clients().UpdateSecret(ctx, c.ID, "new"); err != nil {
		t.Fatalf("UpdateSecret: %v", err)
	}
	got, err := store.Clients().FindByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Secret != "new" {
		t.Fatalf("secret not rotated: %q", got.Secret)
	}
	if err := store.Clients().UpdateSecret(ctx, "missing", "x"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := auth.Seed(ctx, store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := auth.Seed(ctx, store); err != nil {
		t.Fatalf("Seed again: %v", err)
	}

	perms, _ := store.Permissions().List(ctx)
	if len(perms) != 16 {
		t.Fatalf("expected 16 builtin permissions, got %d", len(perms))
	}
	roles, _ := store.Roles().List(ctx)
	if len(roles) != 2 {
		t.Fatalf("expected 2 system roles, got %d", len(roles))
	}
	admin, err := store.Users().FindByUsernameOrEmail(ctx, auth.SeedAdminUsername)
	if err != nil {
		t.Fatalf("admin user missing: %v", err)
	}
	if !auth.VerifyPassword(auth.SeedPassword, admin.PasswordHash) {
		t.Fatalf("seeded password does not verify")
	}
	if _, err := store.Clients().FindByClientID(ctx, auth.AdminClientID); err != nil {
		t.Fatalf("admin client missing: %v", err)
	}
}
