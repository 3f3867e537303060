package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter/store"
	"github.com/frobware/go-nsprov/lock"
)

// Teardown removes what Provision built. When the feature flag is off
// it returns immediately without consulting anything else.
//
// Agent removal and namespace destruction are both attempted; when
// both fail the destruction error comes first in the joined result.
// The namespaced agent's subtree is resynchronized and the run record
// deleted only when everything succeeded.
func (m *Manager) Teardown(ctx context.Context, _ lock.WriterScope, src ConfigSource) error {
	if !src.Enabled() {
		m.logger.DebugContext(ctx, "namespace provisioning disabled")
		return nil
	}

	tc := src.ResolveTeardown()
	nsAgent, haveAgent := tc.NSAgent.Get()

	var agentErr error
	if haveAgent {
		agentErr = m.removeAgent(ctx, nsAgent)
	} else {
		agentErr = nsprov.ErrNotFound{What: "namespaced agent", Name: "identity"}
	}

	run, haveRun := m.lookupRun(ctx, nsAgent, haveAgent)
	if haveRun {
		ctx = ContextWithRunID(ctx, run.ID)
	}
	mode := m.teardownMode(run, haveRun, tc)
	m.logger.InfoContext(ctx, "tearing down namespace",
		"namespace", tc.Namespace.Value(),
		"ns_agent", nsAgent,
		"mode", mode)

	var destroyErr error
	if mode == nsprov.ConnMacvlan {
		ch, err := m.macvlanChannel(ctx, tc)
		if err != nil {
			return errors.Join(err, agentErr)
		}
		if err := m.fabric.Network.DestroyNamespaceWithMacvlan(ctx, ch); err != nil {
			destroyErr = nsprov.ErrNetworkProvisioning{Op: "destroy macvlan namespace", Name: ch.Namespace, Err: err}
		}
	}

	if destroyErr != nil || agentErr != nil {
		m.logger.ErrorContext(ctx, "teardown incomplete", "destroy_error", destroyErr, "agent_error", agentErr)
		return errors.Join(destroyErr, agentErr)
	}

	oid := nsprov.AgentOID(nsAgent)
	if err := m.fabric.Tree.Synchronize(ctx, oid); err != nil {
		return nsprov.ErrConfigSync{OID: oid, Err: err}
	}
	if haveRun {
		if err := m.fabric.Runs.DeleteRun(ctx, run.ID); err != nil {
			return fmt.Errorf("delete run %s: %w", run.ID, err)
		}
	}
	m.logger.InfoContext(ctx, "namespace torn down", "ns_agent", nsAgent)
	return nil
}

// removeAgent deletes the namespaced agent and then its binding. The
// binding is left alone if the agent could not be deleted.
func (m *Manager) removeAgent(ctx context.Context, name string) error {
	if err := m.fabric.Agents.DeleteAgent(ctx, name); err != nil {
		return nsprov.ErrAgentRegistration{Op: "delete", Agent: name, Err: err}
	}
	if err := m.fabric.Agents.UnbindNamespaceHost(ctx, name); err != nil {
		return nsprov.ErrAgentRegistration{Op: "unbind", Agent: name, Err: err}
	}
	m.logger.InfoContext(ctx, "removed agent", "agent", name)
	return nil
}

// lookupRun returns the run that created nsAgent, if one is recorded.
func (m *Manager) lookupRun(ctx context.Context, nsAgent string, known bool) (nsprov.Run, bool) {
	if !known {
		return nsprov.Run{}, false
	}
	run, err := m.fabric.Runs.GetRunByAgent(ctx, nsAgent)
	switch {
	case err == nil:
		return run, true
	case errors.Is(err, store.ErrNotFound):
		m.logger.DebugContext(ctx, "no run recorded", "ns_agent", nsAgent)
	default:
		m.logger.WarnContext(ctx, "reading run record failed", "ns_agent", nsAgent, "error", err)
	}
	return nsprov.Run{}, false
}

// teardownMode prefers the recorded mode. Without a record, a
// configured macvlan name means macvlan.
func (m *Manager) teardownMode(run nsprov.Run, haveRun bool, tc nsprov.TeardownConfig) nsprov.ConnMode {
	if haveRun && run.Mode != "" {
		return run.Mode
	}
	if tc.Macvlan.IsSet() {
		return nsprov.ConnMacvlan
	}
	return nsprov.ConnVeth
}

func (m *Manager) macvlanChannel(ctx context.Context, tc nsprov.TeardownConfig) (nsprov.MacvlanChannel, error) {
	source, ok := tc.SourceAgent.Get()
	if !ok {
		return nsprov.MacvlanChannel{}, nsprov.ErrMissingConfig{Key: "source agent"}
	}
	namespace, ok := tc.Namespace.Get()
	if !ok {
		return nsprov.MacvlanChannel{}, nsprov.ErrMissingConfig{Key: "namespace"}
	}
	ctlIf, err := m.controlInterface(ctx, source, tc.ControlIf)
	if err != nil {
		return nsprov.MacvlanChannel{}, fmt.Errorf("resolve control interface: %w", err)
	}
	return nsprov.MacvlanChannel{
		SourceAgent: source,
		Namespace:   namespace,
		ControlIf:   ctlIf,
		Macvlan:     tc.Macvlan.Value(),
	}, nil
}
