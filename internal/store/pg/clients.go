package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"authcore.org/internal/auth"
	"authcore.org/internal/ids"
)

type clientStore struct{ db *sql.DB }

const clientColumns = `c.id, c.client_id, c.client_secret, c.name, c.description,
	c.redirect_uris, c.grant_types, c.response_types, c.scopes,
	c.is_confidential, c.is_active, c.token_endpoint_auth_method, c.created_at, c.updated_at`

func (s *clientStore) Create(ctx context.Context, c *auth.Client) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	uris, grants, responses, scopes, err := marshalClientLists(c)
	if err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into clients (id, client_id, client_secret, name, description,
			redirect_uris, grant_types, response_types, scopes,
			is_confidential, is_active, token_endpoint_auth_method)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		returning created_at, updated_at
	`, c.ID, c.ClientID, c.Secret, c.Name, c.Description,
		uris, grants, responses, scopes,
		c.Confidential, c.Active, c.TokenEndpointAuthMethod)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

func (s *clientStore) FindByID(ctx context.Context, id string) (*auth.Client, error) {
	row := s.db.QueryRowContext(ctx, `select `+clientColumns+` from clients c where c.id = $1`, id)
	return scanClient(row)
}

func (s *clientStore) FindByClientID(ctx context.Context, clientID string) (*auth.Client, error) {
	row := s.db.QueryRowContext(ctx, `select `+clientColumns+` from clients c where c.client_id = $1`, clientID)
	return scanClient(row)
}

func (s *clientStore) List(ctx context.Context) ([]*auth.Client, error) {
	rows, err := s.db.QueryContext(ctx, `select `+clientColumns+` from clients c order by c.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*auth.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *clientStore) Update(ctx context.Context, c *auth.Client) error {
	// client_id and client_secret are immutable here; the secret only changes
	// through UpdateSecret.
	uris, grants, responses, scopes, err := marshalClientLists(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update clients
		set name = $2, description = $3, redirect_uris = $4, grant_types = $5,
		    response_types = $6, scopes = $7, is_confidential = $8, is_active = $9,
		    token_endpoint_auth_method = $10, updated_at = now()
		where id = $1
	`, c.ID, c.Name, c.Description, uris, grants,
		responses, scopes, c.Confidential, c.Active, c.TokenEndpointAuthMethod)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *clientStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from clients where id = $1`, id)
	if err != nil {
		return mapConstraintErr(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *clientStore) UpdateSecret(ctx context.Context, id, secret string) error {
	res, err := s.db.ExecContext(ctx,
		`update clients set client_secret = $2, updated_at = now() where id = $1`, id, secret)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func scanClient(row rowScanner) (*auth.Client, error) {
	var (
		c                               auth.Client
		uris, grants, responses, scopes []byte
	)
	err := row.Scan(&c.ID, &c.ClientID, &c.Secret, &c.Name, &c.Description,
		&uris, &grants, &responses, &scopes,
		&c.Confidential, &c.Active, &c.TokenEndpointAuthMethod, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{
		{uris, &c.RedirectURIs},
		{grants, &c.GrantTypes},
		{responses, &c.ResponseTypes},
		{scopes, &c.Scopes},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decode client list column: %w", err)
		}
	}
	return &c, nil
}

func marshalClientLists(c *auth.Client) (uris, grants, responses, scopes []byte, err error) {
	if uris, err = marshalStrings(c.RedirectURIs); err != nil {
		return
	}
	if grants, err = marshalStrings(c.GrantTypes); err != nil {
		return
	}
	if responses, err = marshalStrings(c.ResponseTypes); err != nil {
		return
	}
	scopes, err = marshalStrings(c.Scopes)
	return
}

func marshalStrings(in []string) ([]byte, error) {
	if in == nil {
		in = []string{}
	}
	return json.Marshal(in)
}
