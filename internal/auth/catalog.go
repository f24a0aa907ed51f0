package auth

// Permission names gating the admin surface. Convention: "resource:action".
const (
	PermUsersRead   = "users:read"
	PermUsersCreate = "users:create"
	PermUsersUpdate = "users:update"
	PermUsersDelete = "users:delete"

	PermRolesRead   = "roles:read"
	PermRolesCreate = "roles:create"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"

	PermPermissionsRead   = "permissions:read"
	PermPermissionsCreate = "permissions:create"
	PermPermissionsUpdate = "permissions:update"
	PermPermissionsDelete = "permissions:delete"

	PermClientsRead   = "clients:read"
	PermClientsCreate = "clients:create"
	PermClientsUpdate = "clients:update"
	PermClientsDelete = "clients:delete"
)

// AdminClientID is the OAuth2 client that owns the seeded system roles.
const AdminClientID = "admin-panel"

// BuiltinPermissions returns the seeded permission catalog: CRUD over users,
// roles, permissions, and clients.
func BuiltinPermissions() []Permission {
	entries := []struct{ resource, action string }{
		{"users", "read"}, {"users", "create"}, {"users", "update"}, {"users", "delete"},
		{"roles", "read"}, {"roles", "create"}, {"roles", "update"}, {"roles", "delete"},
		{"permissions", "read"}, {"permissions", "create"}, {"permissions", "update"}, {"permissions", "delete"},
		{"clients", "read"}, {"clients", "create"}, {"clients", "update"}, {"clients", "delete"},
	}
	perms := make([]Permission, 0, len(entries))
	for _, e := range entries {
		perms = append(perms, Permission{
			Name:        e.resource + ":" + e.action,
			Description: describe(e.action) + " " + e.resource,
			Resource:    e.resource,
			Action:      e.action,
		})
	}
	return perms
}

func describe(action string) string {
	switch action {
	case "read":
		return "Read"
	case "create":
		return "Create"
	case "update":
		return "Update"
	case "delete":
		return "Delete"
	default:
		return action
	}
}
