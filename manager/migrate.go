package manager

import (
	"context"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/compute"
)

// migrateInterfaces hands each configured test interface from the
// source agent to the namespaced agent, in role order. The first
// failure stops the migration.
func (m *Manager) migrateInterfaces(ctx context.Context, p *provisioning) error {
	cfg := p.cfg

	for _, mv := range compute.MigrationPlan(cfg, p.run.OriginalNames) {
		if err := m.fabric.Network.MoveInterface(ctx, cfg.SourceAgent, cfg.NSAgent, mv.Name); err != nil {
			return nsprov.ErrNetworkProvisioning{Op: "move " + mv.Role.String() + " interface", Name: mv.Name, Err: err}
		}
		p.undo.push(compute.ReturnMove(cfg.SourceAgent, cfg.NSAgent, mv.Name))
		m.logger.InfoContext(ctx, "moved interface",
			"role", mv.Role,
			"ifname", mv.Name,
			"from", cfg.SourceAgent,
			"to", cfg.NSAgent)
	}
	return nil
}
