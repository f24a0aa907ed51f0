package pg

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"authcore.org/internal/auth"
	"authcore.org/internal/ids"
)

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

const roleColumns = `r.id, r.name, r.description, r.client_id, r.is_system, r.created_at, r.updated_at`

func (s *roleStore) Create(ctx context.Context, r *auth.Role) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into roles (id, name, description, client_id, is_system)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, r.ID, r.Name, r.Description, r.ClientID, r.System)
	if err := row.Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	if err := replaceRolePermissions(ctx, tx, r.ID, r.PermissionIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) FindByID(ctx context.Context, id string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles r where r.id = $1`, id)
	r, err := scanRole(row)
	if err != nil {
		return nil, err
	}
	permIDs, err := rolePermissionIDs(ctx, s.db, r.ID)
	if err != nil {
		return nil, err
	}
	r.PermissionIDs = permIDs
	return r, nil
}

func (s *roleStore) FindByIDs(ctx context.Context, roleIDs []string) ([]*auth.Role, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(roleIDs))
	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from roles r where r.id in (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		permIDs, err := rolePermissionIDs(ctx, s.db, r.ID)
		if err != nil {
			return nil, err
		}
		r.PermissionIDs = permIDs
	}
	return roles, nil
}

func (s *roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from roles r order by r.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		permIDs, err := rolePermissionIDs(ctx, s.db, r.ID)
		if err != nil {
			return nil, err
		}
		r.PermissionIDs = permIDs
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, r *auth.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update roles
		set name = $2, description = $3, client_id = $4, updated_at = now()
		where id = $1
	`, r.ID, r.Name, r.Description, r.ClientID)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	if err := replaceRolePermissions(ctx, tx, r.ID, r.PermissionIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	// user_roles.role_id is a restricting foreign key: deleting a role still
	// assigned to users surfaces ErrReferenced instead of cascading.
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *roleStore) CountByPermission(ctx context.Context, permissionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from role_permissions where permission_id = $1`, permissionID).Scan(&count)
	return count, err
}

func scanRole(row rowScanner) (*auth.Role, error) {
	var r auth.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.ClientID, &r.System, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRoles(rows *sql.Rows) ([]*auth.Role, error) {
	var roles []*auth.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func replaceRolePermissions(ctx context.Context, tx execQuerier, roleID string, permIDs []string) error {
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, permID := range permIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into role_permissions (role_id, permission_id) values ($1, $2) on conflict do nothing`,
			roleID, permID); err != nil {
			return mapConstraintErr(err)
		}
	}
	return nil
}

func rolePermissionIDs(ctx context.Context, db *sql.DB, roleID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`select permission_id from role_permissions where role_id = $1 order by permission_id`, roleID)
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

// Permission store -----------------------------------------------------------

type permissionStore struct{ db *sql.DB }

const permColumns = `p.id, p.name, p.description, p.resource, p.action, p.created_at, p.updated_at`

func (s *permissionStore) Create(ctx context.Context, p *auth.Permission) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (id, name, description, resource, action)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Resource, p.Action)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *permissionStore) FindByID(ctx context.Context, id string) (*auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+permColumns+` from permissions p where p.id = $1`, id)
	return scanPermission(row)
}

func (s *permissionStore) FindByName(ctx context.Context, name string) (*auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+permColumns+` from permissions p where p.name = $1`, name)
	return scanPermission(row)
}

func (s *permissionStore) FindByIDs(ctx context.Context, permIDs []string) ([]*auth.Permission, error) {
	if len(permIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(permIDs))
	args := make([]any, len(permIDs))
	for i, id := range permIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+permColumns+` from permissions p where p.id in (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *permissionStore) List(ctx context.Context) ([]*auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `select `+permColumns+` from permissions p order by p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *permissionStore) Update(ctx context.Context, p *auth.Permission) error {
	res, err := s.db.ExecContext(ctx, `
		update permissions
		set name = $2, description = $3, resource = $4, action = $5, updated_at = now()
		where id = $1
	`, p.ID, p.Name, p.Description, p.Resource, p.Action)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *permissionStore) Delete(ctx context.Context, id string) error {
	// role_permissions.permission_id restricts: a permission still attached to
	// a role surfaces ErrReferenced and stays in the store.
	res, err := s.db.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into permissions (id, name, description, resource, action)
			values ($1, $2, $3, $4, $5)
			on conflict (name) do nothing
		`, p.ID, p.Name, p.Description, p.Resource, p.Action); err != nil {
			return err
		}
	}
	return nil
}

func scanPermission(row rowScanner) (*auth.Permission, error) {
	var p auth.Permission
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPermissions(rows *sql.Rows) ([]*auth.Permission, error) {
	var perms []*auth.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
