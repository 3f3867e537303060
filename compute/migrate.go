package compute

import (
	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/action"
)

// Move is one interface to hand over to the namespaced agent.
type Move struct {
	Role nsprov.InterfaceRole
	Name string
}

// MigrationPlan returns the interfaces to move, in role order. Roles
// without a name, or with an empty one, are left out.
func MigrationPlan(cfg nsprov.ProvisioningConfig, original bool) []Move {
	var moves []Move
	for _, role := range nsprov.Roles() {
		name, ok := cfg.RoleName(role, original).Get()
		if !ok || name == "" {
			continue
		}
		moves = append(moves, Move{Role: role, Name: name})
	}
	return moves
}

// ReturnMove is the action that undoes moving ifname from one agent to
// another.
func ReturnMove(from, to, ifname string) action.Action {
	return action.MoveInterface{From: to, To: from, Name: ifname}
}
