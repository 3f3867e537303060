package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-nsprov/action"
)

// ActionExecutor executes reified actions.
type ActionExecutor interface {
	Execute(ctx context.Context, a action.Action) error
	ExecuteAll(ctx context.Context, actions []action.Action) error
}

// ExecutorDeps lists what an executor may act upon. Nil members are
// allowed; executing an action that needs one fails.
type ExecutorDeps struct {
	Instances InstanceStore
	Runs      RunStore
	Network   NetworkOperations
	Agents    AgentRegistry
	Tree      ConfigWriter
}

// executor interprets and executes actions.
type executor struct {
	deps ExecutorDeps
}

// NewExecutor creates a new action executor.
func NewExecutor(deps ExecutorDeps) ActionExecutor {
	return &executor{deps: deps}
}

var errNoCollaborator = errors.New("executor has no collaborator for action")

// Execute runs a single action.
func (e *executor) Execute(ctx context.Context, a action.Action) error {
	switch a := a.(type) {
	case action.PutInstance:
		if e.deps.Instances == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Instances.PutInstance(ctx, a.Instance)

	case action.DeleteInstance:
		if e.deps.Instances == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Instances.DeleteInstance(ctx, a.OID)

	case action.DeleteSubtree:
		if e.deps.Instances == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Instances.DeleteSubtree(ctx, a.OID)

	case action.DeleteRun:
		if e.deps.Runs == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Runs.DeleteRun(ctx, a.ID)

	case action.DestroyMacvlanNamespace:
		if e.deps.Network == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Network.DestroyNamespaceWithMacvlan(ctx, a.Channel)

	case action.DestroyVethNamespace:
		if e.deps.Network == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Network.DestroyNamespaceWithVeth(ctx, a.Channel)

	case action.MoveInterface:
		if e.deps.Network == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Network.MoveInterface(ctx, a.From, a.To, a.Name)

	case action.DeleteRoute:
		if e.deps.Network == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Network.DeleteRoute(ctx, a.Agent, a.Route)

	case action.DeleteAgent:
		if e.deps.Agents == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Agents.DeleteAgent(ctx, a.Name)

	case action.UnbindNamespaceHost:
		if e.deps.Agents == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Agents.UnbindNamespaceHost(ctx, a.Agent)

	case action.SyncTree:
		if e.deps.Tree == nil {
			return fmt.Errorf("%T: %w", a, errNoCollaborator)
		}
		return e.deps.Tree.Synchronize(ctx, a.OID)

	case action.Batch:
		return e.ExecuteAll(ctx, a.Actions)

	case action.Sequence:
		return e.ExecuteAll(ctx, a.Actions)

	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
}

// ExecuteAll runs multiple actions, stopping on first error.
func (e *executor) ExecuteAll(ctx context.Context, actions []action.Action) error {
	for _, a := range actions {
		if err := e.Execute(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
