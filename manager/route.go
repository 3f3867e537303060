package manager

import (
	"context"
	"net/netip"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/action"
	"github.com/frobware/go-nsprov/compute"
)

// installRoute keeps the local network reachable from inside a veth
// namespace by routing it back through the source end of the pair.
// It does nothing in macvlan mode or when no local network is set.
func (m *Manager) installRoute(ctx context.Context, p *provisioning) error {
	cfg := p.cfg
	if cfg.Mode != nsprov.ConnVeth {
		return nil
	}
	network, ok := cfg.LocalNetwork.Get()
	if !ok {
		return nil
	}

	lr, err := compute.ParseLocalRoute(network)
	if err != nil {
		return err
	}

	pattern := nsprov.NetAddrPattern(cfg.SourceAgent, cfg.Veth1)
	oids, err := m.fabric.Tree.Find(ctx, pattern)
	if err != nil {
		return nsprov.ErrConfigSync{OID: pattern, Err: err}
	}
	candidates := make([]string, 0, len(oids))
	for _, oid := range oids {
		candidates = append(candidates, nsprov.InstanceName(oid))
	}

	gw, ok := compute.SelectGateway(candidates)
	if !ok {
		return nsprov.ErrNotFound{What: "IPv4 address on", Name: cfg.Veth1}
	}
	gateway, err := netip.ParseAddr(gw)
	if err != nil {
		return nsprov.ErrInvalidFormat{What: "gateway address", Value: gw, Err: err}
	}

	route := nsprov.Route{Dst: lr.Dst(), Gateway: gateway, Dev: cfg.Veth2}
	if err := m.fabric.Network.AddRoute(ctx, cfg.NSAgent, route); err != nil {
		return nsprov.ErrNetworkProvisioning{Op: "add route", Name: route.String(), Err: err}
	}
	p.undo.push(action.DeleteRoute{Agent: cfg.NSAgent, Route: route})
	m.logger.InfoContext(ctx, "installed local network route", "agent", cfg.NSAgent, "route", route)
	return nil
}
