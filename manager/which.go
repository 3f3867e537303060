package manager

import (
	"context"
	"errors"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// ControlledAgent returns the agent that currently owns the test
// interfaces. With provisioning disabled that is always the source
// agent. Otherwise the source agent owns them while its original
// primary interface still appears in the tree, and the namespaced
// agent owns them once it has gone.
func (m *Manager) ControlledAgent(ctx context.Context, src ConfigSource) (string, error) {
	cc, err := src.ResolveControlled()
	if err != nil {
		return "", err
	}
	if !src.Enabled() {
		return cc.SourceAgent, nil
	}

	oid := nsprov.InterfaceStatusOID(cc.SourceAgent, cc.OriginalPrimary)
	_, err = m.fabric.Tree.Get(ctx, oid)
	switch {
	case err == nil:
		return cc.SourceAgent, nil
	case errors.Is(err, store.ErrNotFound):
		return cc.NSAgent, nil
	default:
		return "", nsprov.ErrConfigSync{OID: oid, Err: err}
	}
}
