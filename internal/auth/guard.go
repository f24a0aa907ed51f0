package auth

import "fmt"

// The permission guard is the single gate every protected operation calls
// before performing its effect. A nil session always denies with
// ErrUnauthenticated; a present session lacking the requirement denies with
// ErrPermissionDenied. Callers map the two to 401 and 403 respectively and
// must short-circuit on deny.

// RequirePermission allows iff the session holds the named permission.
func RequirePermission(s *Session, name string) error {
	if s == nil {
		return ErrUnauthenticated
	}
	if !s.HasPermission(name) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, name)
	}
	return nil
}

// RequireRole allows iff the session holds the named role.
func RequireRole(s *Session, name string) error {
	if s == nil {
		return ErrUnauthenticated
	}
	if !s.HasRole(name) {
		return fmt.Errorf("%w: role %s", ErrPermissionDenied, name)
	}
	return nil
}

// RequireAnyRole allows iff the session holds at least one of the named roles.
func RequireAnyRole(s *Session, names ...string) error {
	if s == nil {
		return ErrUnauthenticated
	}
	for _, name := range names {
		if s.HasRole(name) {
			return nil
		}
	}
	return fmt.Errorf("%w: any of roles %v", ErrPermissionDenied, names)
}

// RequireAllRoles allows iff the session holds every named role.
func RequireAllRoles(s *Session, names ...string) error {
	if s == nil {
		return ErrUnauthenticated
	}
	for _, name := range names {
		if !s.HasRole(name) {
			return fmt.Errorf("%w: role %s", ErrPermissionDenied, name)
		}
	}
	return nil
}
