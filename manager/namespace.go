package manager

import (
	"context"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/action"
)

// createNamespace builds the namespace and its bridge for the
// configured mode. The macvlan fabric does not know the control port,
// so the configured one is filled in here.
func (m *Manager) createNamespace(ctx context.Context, p *provisioning) error {
	cfg := p.cfg

	switch cfg.Mode {
	case nsprov.ConnMacvlan:
		ch := nsprov.MacvlanChannel{
			SourceAgent: cfg.SourceAgent,
			Namespace:   cfg.Namespace,
			ControlIf:   p.ctlIf,
			Macvlan:     cfg.Macvlan,
			Addr:        cfg.MacvlanAddr,
		}
		bridge, err := m.fabric.Network.CreateNamespaceWithMacvlan(ctx, ch)
		if err != nil {
			return nsprov.ErrNetworkProvisioning{Op: "create macvlan namespace", Name: cfg.Namespace, Err: err}
		}
		bridge.Port = cfg.Port
		p.bridge = bridge
		p.undo.push(action.DestroyMacvlanNamespace{Channel: ch})

	default:
		ch := nsprov.VethChannel{
			SourceAgent: cfg.SourceAgent,
			Namespace:   cfg.Namespace,
			ControlIf:   p.ctlIf,
			Veth1:       cfg.Veth1,
			Veth2:       cfg.Veth2,
			Port:        cfg.Port,
		}
		bridge, err := m.fabric.Network.CreateNamespaceWithVeth(ctx, ch)
		if err != nil {
			return nsprov.ErrNetworkProvisioning{Op: "create veth namespace", Name: cfg.Namespace, Err: err}
		}
		p.bridge = bridge
		p.undo.push(action.DestroyVethNamespace{Channel: ch})
	}

	m.logger.InfoContext(ctx, "created namespace",
		"namespace", cfg.Namespace,
		"mode", cfg.Mode,
		"control_if", p.ctlIf,
		"addr", p.bridge.Addr)
	return nil
}
