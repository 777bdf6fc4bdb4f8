package auth

import "fmt"

// Role grants access to admin endpoints
type Role string

const (
	// RoleAdmin may read and change accounts
	RoleAdmin Role = "admin"

	// RoleViewer may only read accounts
	RoleViewer Role = "viewer"
)

func (r Role) String() string {
	return string(r)
}

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleAdmin, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// HasPermission reports whether r satisfies required. Admin satisfies every role.
func (r Role) HasPermission(required Role) bool {
	return r == RoleAdmin || r == required
}

// Allowed reports whether any granted role satisfies any required role.
// No required roles means any authenticated caller is allowed.
func Allowed(granted []string, required ...Role) bool {
	if len(required) == 0 {
		return true
	}
	for _, g := range granted {
		for _, req := range required {
			if Role(g).HasPermission(req) {
				return true
			}
		}
	}
	return false
}
