// Package agent implements the agent registry: control agents are
// processes serving gRPC inside their namespace, launched detached and
// tracked in the state store.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// Launcher starts and stops agent processes.
type Launcher interface {
	Launch(ctx context.Context, spec nsprov.AgentSpec) (pid int, err error)
	Stop(ctx context.Context, pid int) error
}

// Prober waits for a launched agent to become ready.
type Prober interface {
	WaitReady(ctx context.Context, spec nsprov.AgentSpec) error
}

// Network is what the registry needs from the host network fabric.
type Network interface {
	DefaultRouteInterface(ctx context.Context, agent string) (string, error)
	// ReleaseNamespace is called once no agent is bound to namespace.
	ReleaseNamespace(ctx context.Context, namespace string) error
}

// Registry implements interpreter.AgentRegistry.
type Registry struct {
	store    interpreter.Store
	network  Network
	launcher Launcher
	prober   Prober
	now      func() time.Time
	logger   *slog.Logger
}

var _ interpreter.AgentRegistry = (*Registry)(nil)

// NewRegistry returns a Registry.
func NewRegistry(s interpreter.Store, network Network, launcher Launcher, prober Prober, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    s,
		network:  network,
		launcher: launcher,
		prober:   prober,
		now:      time.Now,
		logger:   logger.With("component", "agent"),
	}
}

// EnsureLocal records an agent living in the host namespace that the
// registry does not launch. An existing record is left unchanged.
func (r *Registry) EnsureLocal(ctx context.Context, name, agentType, host string) error {
	_, err := r.store.GetAgent(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	r.logger.DebugContext(ctx, "registering local agent", "agent", name)
	return r.store.SaveAgent(ctx, nsprov.Agent{
		AgentSpec: nsprov.AgentSpec{Name: name, Type: agentType, Host: host},
		Local:     true,
		CreatedAt: r.now(),
	})
}

// AddAgent launches the agent described by spec, waits until it
// serves and records it.
func (r *Registry) AddAgent(ctx context.Context, spec nsprov.AgentSpec) error {
	if _, err := r.store.GetAgent(ctx, spec.Name); err == nil {
		return fmt.Errorf("agent %s is already registered", spec.Name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	r.logger.InfoContext(ctx, "launching agent",
		"agent", spec.Name, "type", spec.Type, "netns", spec.Namespace,
		"addr", spec.Addr, "port", spec.Port, "preload", spec.Preload)

	pid, err := r.launcher.Launch(ctx, spec)
	if err != nil {
		return fmt.Errorf("launch agent %s: %w", spec.Name, err)
	}
	if err := r.prober.WaitReady(ctx, spec); err != nil {
		return errors.Join(
			fmt.Errorf("agent %s not ready: %w", spec.Name, err),
			r.launcher.Stop(ctx, pid),
		)
	}

	if err := r.store.SaveAgent(ctx, nsprov.Agent{AgentSpec: spec, PID: pid, CreatedAt: r.now()}); err != nil {
		return errors.Join(err, r.launcher.Stop(ctx, pid))
	}
	r.logger.InfoContext(ctx, "agent ready", "agent", spec.Name, "pid", pid)
	return nil
}

// DeleteAgent stops a launched agent and removes its record.
func (r *Registry) DeleteAgent(ctx context.Context, name string) error {
	a, err := r.store.GetAgent(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nsprov.ErrNotFound{What: "agent", Name: name, Err: err}
	}
	if err != nil {
		return err
	}

	if !a.Local && a.PID > 0 {
		r.logger.InfoContext(ctx, "stopping agent", "agent", name, "pid", a.PID)
		if err := r.launcher.Stop(ctx, a.PID); err != nil {
			return fmt.Errorf("stop agent %s: %w", name, err)
		}
	}
	return r.store.DeleteAgent(ctx, name)
}

// BindNamespaceHost records that agent serves namespace on host.
func (r *Registry) BindNamespaceHost(ctx context.Context, host, namespace, agent string) error {
	if _, err := r.store.GetAgent(ctx, agent); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nsprov.ErrNotFound{What: "agent", Name: agent, Err: err}
		}
		return err
	}
	r.logger.DebugContext(ctx, "binding agent", "agent", agent, "host", host, "netns", namespace)
	return r.store.SaveBinding(ctx, nsprov.Binding{Agent: agent, Host: host, Namespace: namespace})
}

// UnbindNamespaceHost removes the binding of agent. The namespace is
// released when this was its last binding.
func (r *Registry) UnbindNamespaceHost(ctx context.Context, agent string) error {
	b, err := r.store.GetBinding(ctx, agent)
	if errors.Is(err, store.ErrNotFound) {
		return nsprov.ErrNotFound{What: "binding", Name: agent, Err: err}
	}
	if err != nil {
		return err
	}
	if err := r.store.DeleteBinding(ctx, agent); err != nil {
		return err
	}

	n, err := r.store.CountBindings(ctx, b.Namespace)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	r.logger.InfoContext(ctx, "releasing namespace", "netns", b.Namespace)
	return r.network.ReleaseNamespace(ctx, b.Namespace)
}

// DefaultRouteInterface returns the interface carrying the IPv4 default
// route of agent.
func (r *Registry) DefaultRouteInterface(ctx context.Context, agent string) (string, error) {
	return r.network.DefaultRouteInterface(ctx, agent)
}
