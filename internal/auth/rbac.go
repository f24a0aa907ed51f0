package auth

import (
	"context"
	"sort"
	"strings"
)

// Resolver expands a user's role assignments into the flattened role-name and
// permission-name sets embedded into access tokens. Expansion is read-only and
// safe for concurrent use.
type Resolver struct {
	roles RoleStore
	perms PermissionStore
}

// NewResolver constructs a Resolver over the role and permission stores.
func NewResolver(roles RoleStore, perms PermissionStore) *Resolver {
	return &Resolver{roles: roles, perms: perms}
}

// Expand loads each of the user's roles and their permissions, returning the
// deduplicated role-name and permission-name sets. Both are unordered; callers
// must not depend on element order. A user with zero roles resolves to two
// empty sets, not an error.
func (r *Resolver) Expand(ctx context.Context, user *User) (roleNames, permissionNames []string, err error) {
	if user == nil {
		return []string{}, []string{}, nil
	}
	roleIDs := dedupeStrings(user.RoleIDs)
	if len(roleIDs) == 0 {
		return []string{}, []string{}, nil
	}

	roles, err := r.roles.FindByIDs(ctx, roleIDs)
	if err != nil {
		return nil, nil, err
	}

	roleSet := make(map[string]struct{}, len(roles))
	permIDSet := make(map[string]struct{})
	for _, role := range roles {
		roleSet[role.Name] = struct{}{}
		for _, pid := range role.PermissionIDs {
			permIDSet[pid] = struct{}{}
		}
	}

	permIDs := make([]string, 0, len(permIDSet))
	for id := range permIDSet {
		permIDs = append(permIDs, id)
	}
	perms, err := r.perms.FindByIDs(ctx, permIDs)
	if err != nil {
		return nil, nil, err
	}

	permSet := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		permSet[p.Name] = struct{}{}
	}

	return setToSlice(roleSet), setToSlice(permSet), nil
}

// setToSlice flattens a set into a sorted slice. Sorting is for stable logs and
// JSON output only; the result remains semantically unordered.
func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
