package manager

import (
	"context"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/action"
)

// registerAgent starts the namespaced agent at the bridge address,
// binds it to the host and namespace, resynchronizes the whole tree so
// the agent's subtree appears, then points the agent at the RPC
// provider.
func (m *Manager) registerAgent(ctx context.Context, p *provisioning) error {
	cfg := p.cfg

	spec := nsprov.AgentSpec{
		Name:      cfg.NSAgent,
		Type:      cfg.AgentType,
		Host:      cfg.Host,
		Namespace: cfg.Namespace,
		Addr:      p.bridge.Addr.Addr(),
		Port:      p.bridge.Port,
		Preload:   cfg.Preload,
	}
	if err := m.fabric.Agents.AddAgent(ctx, spec); err != nil {
		return nsprov.ErrAgentRegistration{Op: "add", Agent: cfg.NSAgent, Err: err}
	}
	p.undo.push(action.Sequence{Actions: []action.Action{
		action.DeleteAgent{Name: cfg.NSAgent},
		action.SyncTree{OID: nsprov.AgentOID(cfg.NSAgent)},
	}})
	m.logger.InfoContext(ctx, "registered agent",
		"agent", cfg.NSAgent,
		"type", cfg.AgentType,
		"endpoint", p.bridge.AddrPort())

	if err := m.fabric.Agents.BindNamespaceHost(ctx, cfg.Host, cfg.Namespace, cfg.NSAgent); err != nil {
		return nsprov.ErrAgentRegistration{Op: "bind", Agent: cfg.NSAgent, Err: err}
	}
	p.undo.push(action.UnbindNamespaceHost{Agent: cfg.NSAgent})

	if err := m.fabric.Tree.Synchronize(ctx, nsprov.RootOID); err != nil {
		return nsprov.ErrConfigSync{OID: nsprov.RootOID, Err: err}
	}

	oid := nsprov.RPCProviderOID(cfg.NSAgent)
	if err := m.fabric.Tree.Set(ctx, oid, cfg.RPCProvider); err != nil {
		return nsprov.ErrConfigSync{OID: oid, Err: err}
	}
	return nil
}
