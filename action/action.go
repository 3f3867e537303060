// Package action contains reified effects - descriptions of what to do
// without actually doing it. These are pure data structures.
//
// Provisioning records one action per completed step that undoes it;
// tree synchronization computes instance actions from live state.
package action

import (
	"github.com/google/uuid"

	"github.com/frobware/go-nsprov"
)

// Action represents an effect to be executed.
// Actions are data - they describe what to do, not how.
type Action interface {
	isAction()
}

// Store actions - operations on the state database

// PutInstance creates or updates a configuration tree instance.
type PutInstance struct {
	Instance nsprov.Instance
}

func (PutInstance) isAction() {}

// DeleteInstance removes a single configuration tree instance.
type DeleteInstance struct {
	OID string
}

func (DeleteInstance) isAction() {}

// DeleteSubtree removes an instance and every descendant.
type DeleteSubtree struct {
	OID string
}

func (DeleteSubtree) isAction() {}

// DeleteRun removes a provisioning run record.
type DeleteRun struct {
	ID uuid.UUID
}

func (DeleteRun) isAction() {}

// Network actions - operations on namespaces and links

// DestroyMacvlanNamespace removes a macvlan-bridged namespace.
type DestroyMacvlanNamespace struct {
	Channel nsprov.MacvlanChannel
}

func (DestroyMacvlanNamespace) isAction() {}

// DestroyVethNamespace removes a veth-bridged namespace.
type DestroyVethNamespace struct {
	Channel nsprov.VethChannel
}

func (DestroyVethNamespace) isAction() {}

// MoveInterface hands an interface from one agent to another.
type MoveInterface struct {
	From string
	To   string
	Name string
}

func (MoveInterface) isAction() {}

// DeleteRoute removes a route installed on an agent.
type DeleteRoute struct {
	Agent string
	Route nsprov.Route
}

func (DeleteRoute) isAction() {}

// Agent actions - operations on the agent registry

// DeleteAgent removes an agent registration.
type DeleteAgent struct {
	Name string
}

func (DeleteAgent) isAction() {}

// UnbindNamespaceHost removes an agent's namespace-host binding.
type UnbindNamespaceHost struct {
	Agent string
}

func (UnbindNamespaceHost) isAction() {}

// Tree actions - operations on the configuration tree

// SyncTree synchronizes a configuration subtree with live state.
type SyncTree struct {
	OID string
}

func (SyncTree) isAction() {}

// Batch groups multiple actions to be executed together.
type Batch struct {
	Actions []Action
}

func (Batch) isAction() {}

// Sequence executes actions in order, stopping on first error.
type Sequence struct {
	Actions []Action
}

func (Sequence) isAction() {}
