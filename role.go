package nsprov

import "fmt"

// InterfaceRole is one of the fixed logical positions a test interface
// may occupy.
type InterfaceRole int

const (
	// RolePrimary is the primary test link.
	RolePrimary InterfaceRole = iota
	// RolePrimaryAux1 to RolePrimaryAux3 are auxiliary links on the
	// primary test network.
	RolePrimaryAux1
	RolePrimaryAux2
	RolePrimaryAux3
	// RoleSecondary is the link on the secondary test network.
	RoleSecondary
)

// NumRoles is the number of interface roles.
const NumRoles = 5

// Roles returns every role in migration order.
func Roles() []InterfaceRole {
	return []InterfaceRole{RolePrimary, RolePrimaryAux1, RolePrimaryAux2, RolePrimaryAux3, RoleSecondary}
}

func (r InterfaceRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RolePrimaryAux1:
		return "primary-aux1"
	case RolePrimaryAux2:
		return "primary-aux2"
	case RolePrimaryAux3:
		return "primary-aux3"
	case RoleSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("InterfaceRole(%d)", int(r))
	}
}
