package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frobware/go-nsprov/action"
	"github.com/frobware/go-nsprov/interpreter"
)

// undoStack accumulates compensating actions that are executed in
// reverse order when provisioning fails partway through. Each action
// undoes one completed step.
type undoStack []action.Action

func (u *undoStack) push(a action.Action) {
	*u = append(*u, a)
}

// rollback executes every action in reverse order, logging and
// collecting failures. A failed action does not stop the ones before
// it. Returns nil if every action succeeds.
func (u undoStack) rollback(ctx context.Context, exec interpreter.ActionExecutor, logger *slog.Logger) error {
	var errs []error
	for i := len(u) - 1; i >= 0; i-- {
		if err := exec.Execute(ctx, u[i]); err != nil {
			logger.ErrorContext(ctx, "rollback step failed", "step", i, "action", actionName(u[i]), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func actionName(a action.Action) string {
	switch a := a.(type) {
	case action.DestroyMacvlanNamespace:
		return "destroy macvlan namespace " + a.Channel.Namespace
	case action.DestroyVethNamespace:
		return "destroy veth namespace " + a.Channel.Namespace
	case action.DeleteAgent:
		return "delete agent " + a.Name
	case action.UnbindNamespaceHost:
		return "unbind " + a.Agent
	case action.MoveInterface:
		return "move " + a.Name + " to " + a.To
	case action.DeleteRoute:
		return "delete route " + a.Route.String()
	case action.Sequence:
		if len(a.Actions) > 0 {
			return actionName(a.Actions[0])
		}
	}
	return "action"
}
