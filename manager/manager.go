// Package manager orchestrates provisioning and teardown of a test
// namespace and its control agent.
//
// # Provisioning Model
//
// A provisioning run is a fixed sequence of steps:
//
//  1. Resolve the configuration and the control interface
//  2. Create the namespace and bridge it to the main namespace
//  3. Register the namespaced agent, bind it and sync the tree
//  4. Move the configured test interfaces into the namespace
//  5. Install the local-network route (veth only)
//  6. Replay the interface history, then the configuration history
//
// Each completed step records an action that undoes it. When a step
// fails, the rollback policy decides whether those actions run in
// reverse order or the partial state is left for diagnosis. A run
// record is saved as soon as the control interface is known and
// updated as stages complete, so teardown and status never have to
// guess what was built.
//
// # Teardown Model
//
// Teardown removes the namespaced agent and its binding. For veth
// channels, dropping the last binding releases the namespace; macvlan
// namespaces are destroyed explicitly. Failures are collected and
// reported together rather than stopping at the first.
package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/interpreter"
)

// ConfigSource supplies the resolved configuration for a run.
type ConfigSource interface {
	Enabled() bool
	Resolve() (nsprov.ProvisioningConfig, error)
	ResolveTeardown() nsprov.TeardownConfig
	ResolveControlled() (nsprov.ControlledConfig, error)
}

// Manager runs provisioning, teardown and the queries around them.
type Manager struct {
	fabric   interpreter.Fabric
	executor interpreter.ActionExecutor
	policy   config.RollbackPolicy
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a new Manager.
func New(fabric interpreter.Fabric, policy config.RollbackPolicy, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = config.RollbackNone
	}
	return &Manager{
		fabric: fabric,
		executor: interpreter.NewExecutor(interpreter.ExecutorDeps{
			Runs:    fabric.Runs,
			Network: fabric.Network,
			Agents:  fabric.Agents,
			Tree:    fabric.Tree,
		}),
		policy: policy,
		now:    time.Now,
		logger: WithRunIDHandler(logger).With("component", "manager"),
	}
}

// Status returns every recorded provisioning run.
func (m *Manager) Status(ctx context.Context) ([]nsprov.Run, error) {
	return m.fabric.Runs.ListRuns(ctx)
}
