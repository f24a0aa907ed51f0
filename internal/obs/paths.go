package obs

import "strings"

// CanonicalPath collapses resource identifiers in admin paths so metric labels
// stay low-cardinality. Unknown paths pass through unchanged (query stripped).
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	const adminPrefix = "/admin/"
	if !strings.HasPrefix(path, adminPrefix) {
		return path
	}
	parts := strings.Split(strings.Trim(path[len(adminPrefix):], "/"), "/")
	switch parts[0] {
	case "users", "roles", "permissions", "clients":
	default:
		return path
	}
	switch len(parts) {
	case 1:
		return path
	case 2:
		return adminPrefix + parts[0] + "/:id"
	case 3:
		if parts[0] == "clients" && parts[2] == "regenerate-secret" {
			return adminPrefix + "clients/:id/regenerate-secret"
		}
	}
	return path
}
