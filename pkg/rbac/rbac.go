// Package rbac provides role-based access control checks for HubLink.
package rbac

import "github.com/hublinkchat/hublink/pkg/model"

// Permission represents a specific action that can be checked against a role.
type Permission int

const (
	// PermShutdown gates @shutdown — the only privileged action spec.md
	// names (spec.md §1: "Privileged users may shut the server down").
	PermShutdown Permission = iota
)

// permissionMatrix maps roles to their allowed permissions. Kept as a
// matrix (rather than a single if-statement) so that future admin-only
// actions have somewhere to go without restructuring the package.
var permissionMatrix = map[model.Role]map[Permission]bool{
	model.RoleAdmin: {
		PermShutdown: true,
	},
	model.RoleUser: {
		// No privileged permissions.
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role model.Role, perm Permission) bool {
	perms, ok := permissionMatrix[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// RequirePermission returns an error message if the role lacks the
// permission, or empty string if allowed.
func RequirePermission(role model.Role, perm Permission) string {
	if HasPermission(role, perm) {
		return ""
	}
	return "permission denied: " + permName(perm) + " requires ADMIN role"
}

func permName(p Permission) string {
	switch p {
	case PermShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
