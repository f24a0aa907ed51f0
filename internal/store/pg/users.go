package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"authcore.org/internal/auth"
	"authcore.org/internal/ids"
)

type userStore struct{ db *sql.DB }

const userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name,
	u.is_active, u.last_login, u.app_metadata, u.created_at, u.updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	meta, err := marshalMetadata(u.AppMetadata)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash, first_name, last_name, is_active, app_metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Active, meta)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	if err := replaceUserRoles(ctx, tx, u.ID, u.RoleIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findOne(ctx, `where u.id = $1`, id)
}

func (s *userStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*auth.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	return s.findOne(ctx, `where u.username = $1 or u.email = $1`, identifier)
}

func (s *userStore) findOne(ctx context.Context, where string, args ...any) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users u `+where, args...)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	roleIDs, err := userRoleIDs(ctx, s.db, u.ID)
	if err != nil {
		return nil, err
	}
	u.RoleIDs = roleIDs
	return u, nil
}

func (s *userStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users u order by u.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range users {
		roleIDs, err := userRoleIDs(ctx, s.db, u.ID)
		if err != nil {
			return nil, err
		}
		u.RoleIDs = roleIDs
	}
	return users, nil
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	meta, err := marshalMetadata(u.AppMetadata)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update users
		set username = $2, email = $3, password_hash = $4, first_name = $5,
		    last_name = $6, is_active = $7, app_metadata = $8, updated_at = now()
		where id = $1
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Active, meta)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	if err := replaceUserRoles(ctx, tx, u.ID, u.RoleIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *userStore) UpdateLastLogin(ctx context.Context, id string, when time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set last_login = $2, updated_at = now() where id = $1`, id, when.UTC())
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *userStore) CountByRole(ctx context.Context, roleID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from user_roles where role_id = $1`, roleID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u         auth.User
		lastLogin sql.NullTime
		meta      []byte
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
		&u.LastName, &u.Active, &lastLogin, &meta, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.AppMetadata); err != nil {
			return nil, fmt.Errorf("decode app_metadata: %w", err)
		}
	}
	return &u, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func replaceUserRoles(ctx context.Context, tx execQuerier, userID string, roleIDs []string) error {
	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into user_roles (user_id, role_id) values ($1, $2) on conflict do nothing`,
			userID, roleID); err != nil {
			return mapConstraintErr(err)
		}
	}
	return nil
}

func userRoleIDs(ctx context.Context, db *sql.DB, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`select role_id from user_roles where user_id = $1 order by role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal app_metadata: %w", err)
	}
	return out, nil
}
