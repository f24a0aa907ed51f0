// Package memory implements the auth store in process memory. It backs the
// dev-mode server and the HTTP layer tests; production deployments use the
// PostgreSQL store.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"authcore.org/internal/auth"
	"authcore.org/internal/ids"
)

// Store is a mutex-guarded map-backed implementation of auth.Store.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*auth.User
	roles       map[string]*auth.Role
	permissions map[string]*auth.Permission
	clients     map[string]*auth.Client
}

var _ auth.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*auth.User),
		roles:       make(map[string]*auth.Role),
		permissions: make(map[string]*auth.Permission),
		clients:     make(map[string]*auth.Client),
	}
}

func (s *Store) Users() auth.UserStore             { return (*userStore)(s) }
func (s *Store) Roles() auth.RoleStore             { return (*roleStore)(s) }
func (s *Store) Permissions() auth.PermissionStore { return (*permissionStore)(s) }
func (s *Store) Clients() auth.ClientStore         { return (*clientStore)(s) }

func (s *Store) Ping(context.Context) error { return nil }

func now() time.Time { return time.Now().UTC() }

// User store ---------------------------------------------------------------

type userStore Store

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *userStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *userStore) FindByUsernameOrEmail(_ context.Context, identifier string) (*auth.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) List(context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (s *userStore) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return auth.ErrNotFound
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for id, existing := range s.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	u.CreatedAt = current.CreatedAt
	u.UpdatedAt = now()
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *userStore) UpdateLastLogin(_ context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	w := when.UTC()
	u.LastLogin = &w
	u.UpdatedAt = now()
	return nil
}

func (s *userStore) CountByRole(_ context.Context, roleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, u := range s.users {
		for _, rid := range u.RoleIDs {
			if rid == roleID {
				count++
				break
			}
		}
	}
	return count, nil
}

// Role store ---------------------------------------------------------------

type roleStore Store

func (s *roleStore) Create(_ context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name && existing.ClientID == r.ClientID {
			return auth.ErrConflict
		}
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	r.CreatedAt = now()
	r.UpdatedAt = r.CreatedAt
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *roleStore) FindByID(_ context.Context, id string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneRole(r), nil
}

func (s *roleStore) FindByIDs(_ context.Context, roleIDs []string) ([]*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		if r, ok := s.roles[id]; ok {
			out = append(out, cloneRole(r))
		}
	}
	return out, nil
}

func (s *roleStore) List(context.Context) ([]*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	return out, nil
}

func (s *roleStore) Update(_ context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.roles[r.ID]
	if !ok {
		return auth.ErrNotFound
	}
	for id, existing := range s.roles {
		if id == r.ID {
			continue
		}
		if existing.Name == r.Name && existing.ClientID == r.ClientID {
			return auth.ErrConflict
		}
	}
	r.CreatedAt = current.CreatedAt
	r.UpdatedAt = now()
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *roleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	for _, u := range s.users {
		for _, rid := range u.RoleIDs {
			if rid == id {
				return auth.ErrReferenced
			}
		}
	}
	delete(s.roles, id)
	return nil
}

func (s *roleStore) CountByPermission(_ context.Context, permissionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.roles {
		for _, pid := range r.PermissionIDs {
			if pid == permissionID {
				count++
				break
			}
		}
	}
	return count, nil
}

// Permission store -----------------------------------------------------------

type permissionStore Store

func (s *permissionStore) Create(_ context.Context, p *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Name == p.Name {
			return auth.ErrConflict
		}
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	s.permissions[p.ID] = clonePermission(p)
	return nil
}

func (s *permissionStore) FindByID(_ context.Context, id string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return clonePermission(p), nil
}

func (s *permissionStore) FindByIDs(_ context.Context, permIDs []string) ([]*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.Permission, 0, len(permIDs))
	for _, id := range permIDs {
		if p, ok := s.permissions[id]; ok {
			out = append(out, clonePermission(p))
		}
	}
	return out, nil
}

func (s *permissionStore) FindByName(_ context.Context, name string) (*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Name == name {
			return clonePermission(p), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *permissionStore) List(context.Context) ([]*auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, clonePermission(p))
	}
	return out, nil
}

func (s *permissionStore) Update(_ context.Context, p *auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.permissions[p.ID]
	if !ok {
		return auth.ErrNotFound
	}
	for id, existing := range s.permissions {
		if id != p.ID && existing.Name == p.Name {
			return auth.ErrConflict
		}
	}
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = now()
	s.permissions[p.ID] = clonePermission(p)
	return nil
}

func (s *permissionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return auth.ErrNotFound
	}
	for _, r := range s.roles {
		for _, pid := range r.PermissionIDs {
			if pid == id {
				return auth.ErrReferenced
			}
		}
	}
	delete(s.permissions, id)
	return nil
}

func (s *permissionStore) Ensure(_ context.Context, perms []auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]struct{}, len(s.permissions))
	for _, p := range s.permissions {
		existing[p.Name] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := existing[p.Name]; ok {
			continue
		}
		p.ID = ids.New()
		p.CreatedAt = now()
		p.UpdatedAt = p.CreatedAt
		s.permissions[p.ID] = clonePermission(&p)
	}
	return nil
}

// Client store ---------------------------------------------------------------

type clientStore Store

func (s *clientStore) Create(_ context.Context, c *auth.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.clients {
		if existing.ClientID == c.ClientID {
			return auth.ErrConflict
		}
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	s.clients[c.ID] = cloneClient(c)
	return nil
}

func (s *clientStore) FindByID(_ context.Context, id string) (*auth.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneClient(c), nil
}

func (s *clientStore) FindByClientID(_ context.Context, clientID string) (*auth.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.ClientID == clientID {
			return cloneClient(c), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *clientStore) List(context.Context) ([]*auth.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, cloneClient(c))
	}
	return out, nil
}

func (s *clientStore) Update(_ context.Context, c *auth.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.clients[c.ID]
	if !ok {
		return auth.ErrNotFound
	}
	// client_id is immutable after creation
	c.ClientID = current.ClientID
	c.Secret = current.Secret
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = now()
	s.clients[c.ID] = cloneClient(c)
	return nil
}

func (s *clientStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

func (s *clientStore) UpdateSecret(_ context.Context, id, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return auth.ErrNotFound
	}
	c.Secret = secret
	c.UpdatedAt = now()
	return nil
}

// clone helpers keep callers from mutating shared state.

func cloneUser(u *auth.User) *auth.User {
	out := *u
	out.RoleIDs = append([]string(nil), u.RoleIDs...)
	if u.AppMetadata != nil {
		out.AppMetadata = make(map[string]any, len(u.AppMetadata))
		for k, v := range u.AppMetadata {
			out.AppMetadata[k] = v
		}
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		out.LastLogin = &t
	}
	return &out
}

func cloneRole(r *auth.Role) *auth.Role {
	out := *r
	out.PermissionIDs = append([]string(nil), r.PermissionIDs...)
	return &out
}

func clonePermission(p *auth.Permission) *auth.Permission {
	out := *p
	return &out
}

func cloneClient(c *auth.Client) *auth.Client {
	out := *c
	out.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	out.GrantTypes = append([]string(nil), c.GrantTypes...)
	out.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	out.Scopes = append([]string(nil), c.Scopes...)
	return &out
}
