package manager

import (
	"context"

	"github.com/frobware/go-nsprov"
)

// replayHistory restores the interface history, when one is
// configured, and then the configuration history. A failed interface
// replay stops before the configuration history is touched.
//
// Replays are not undone on rollback; the tree is resynchronized from
// live state when the agents they touched are removed.
func (m *Manager) replayHistory(ctx context.Context, p *provisioning) error {
	if path, ok := p.cfg.IfsHistory.Get(); ok {
		if err := m.fabric.History.Replay(ctx, path, ""); err != nil {
			return nsprov.ErrHistoryReplay{Path: path, Err: err}
		}
		m.logger.InfoContext(ctx, "replayed interface history", "path", path)
	}

	path := p.cfg.ConfigHistory
	if err := m.fabric.History.Replay(ctx, path, ""); err != nil {
		return nsprov.ErrHistoryReplay{Path: path, Err: err}
	}
	m.logger.InfoContext(ctx, "replayed configuration history", "path", path)
	return nil
}
