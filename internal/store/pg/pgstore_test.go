package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"authcore.org/internal/auth"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestUserCreateAssignsRoles(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", sqlmock.AnyArg(),
			"Alice", "Smith", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("delete from user_roles").WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into user_roles").WithArgs(sqlmock.AnyArg(), "role-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	u := &auth.User{
		Username:     "Alice",
		Email:        "Alice@Example.com",
		PasswordHash: "x",
		FirstName:    "Alice",
		LastName:     "Smith",
		Active:       true,
		RoleIDs:      []string{"role-1"},
	}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}
	if u.Username != "alice" || u.Email != "alice@example.com" {
		t.Fatalf("identifiers not normalized: %s %s", u.Username, u.Email)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserCreateDuplicateMapsToConflict(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	err := store.Users().Create(context.Background(), &auth.User{Username: "alice", Email: "a@b.c"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserFindByUsernameOrEmail(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	cols := []string{"id", "username", "email", "password_hash", "first_name", "last_name",
		"is_active", "last_login", "app_metadata", "created_at", "updated_at"}
	mock.ExpectQuery("where u.username = .+ or u.email =").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u-1", "alice", "alice@example.com", "hash", "Alice", "Smith",
				true, nil, []byte(`{"tenant":"acme"}`), now, now))
	mock.ExpectQuery("select role_id from user_roles").WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow("role-1").AddRow("role-2"))

	u, err := store.Users().FindByUsernameOrEmail(context.Background(), " Alice ")
	if err != nil {
		t.Fatalf("FindByUsernameOrEmail: %v", err)
	}
	if u.ID != "u-1" || len(u.RoleIDs) != 2 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.AppMetadata["tenant"] != "acme" {
		t.Fatalf("metadata not decoded: %v", u.AppMetadata)
	}
	if u.LastLogin != nil {
		t.Fatalf("expected nil last login")
	}
}

func TestUserFindMissingReturnsNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("from users u where u.id =").WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Users().FindByID(context.Background(), "nope")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleDeleteReferencedByUser(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("delete from roles").WithArgs("role-1").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := store.Roles().Delete(context.Background(), "role-1")
	if !errors.Is(err, auth.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
}

func TestPermissionDeleteReferencedByRole(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("delete from permissions").WithArgs("perm-1").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := store.Permissions().Delete(context.Background(), "perm-1")
	if !errors.Is(err, auth.ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
}

func TestRoleUpdateRewritesPermissions(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("update roles").
		WithArgs("role-1", "editor", "Editors", "admin-panel").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from role_permissions").WithArgs("role-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("insert into role_permissions").WithArgs("role-1", "perm-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Roles().Update(context.Background(), &auth.Role{
		ID:            "role-1",
		Name:          "editor",
		Description:   "Editors",
		ClientID:      "admin-panel",
		PermissionIDs: []string{"perm-1"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClientRoundTripDecodesLists(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	cols := []string{"id", "client_id", "client_secret", "name", "description",
		"redirect_uris", "grant_types", "response_types", "scopes",
		"is_confidential", "is_active", "token_endpoint_auth_method", "created_at", "updated_at"}
	mock.ExpectQuery("from clients c where c.client_id =").WithArgs("admin-panel").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"c-1", "admin-panel", "s3cret", "Admin Panel", "",
			[]byte(`["http://localhost:3000/admin"]`),
			[]byte(`["authorization_code","refresh_token"]`),
			[]byte(`["code"]`),
			[]byte(`["openid","admin"]`),
			true, true, "client_secret_basic", now, now))

	c, err := store.Clients().FindByClientID(context.Background(), "admin-panel")
	if err != nil {
		t.Fatalf("FindByClientID: %v", err)
	}
	if len(c.RedirectURIs) != 1 || len(c.GrantTypes) != 2 || len(c.Scopes) != 2 {
		t.Fatalf("list columns not decoded: %+v", c)
	}
	if !c.Confidential || c.TokenEndpointAuthMethod != "client_secret_basic" {
		t.Fatalf("unexpected client: %+v", c)
	}
}

func TestClientUpdateSecretMissing(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("update clients set client_secret").WithArgs("nope", "new").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Clients().UpdateSecret(context.Background(), "nope", "new")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountByRole(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("select count").WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.Users().CountByRole(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("CountByRole: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}
