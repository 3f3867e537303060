package manager

import (
	"context"

	"github.com/frobware/go-nsprov"
)

// controlInterface returns the interface agent is reached through: the
// override when one is configured, otherwise the interface carrying
// agent's default route. Either way the name must fit IfNameCapacity.
func (m *Manager) controlInterface(ctx context.Context, agent string, override nsprov.Setting) (nsprov.IfName, error) {
	if name, ok := override.Get(); ok {
		if name == "" {
			return nsprov.IfName{}, nsprov.ErrInvalidFormat{What: "control interface override", Value: name}
		}
		return nsprov.NewIfName(name)
	}

	name, err := m.fabric.Agents.DefaultRouteInterface(ctx, agent)
	if err != nil {
		return nsprov.IfName{}, nsprov.ErrNotFound{What: "default route interface of agent", Name: agent, Err: err}
	}
	m.logger.DebugContext(ctx, "resolved control interface", "agent", agent, "ifname", name)
	return nsprov.NewIfName(name)
}
