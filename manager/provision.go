package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/lock"
)

// provisioning is the state of one run in progress.
type provisioning struct {
	cfg    nsprov.ProvisioningConfig
	run    nsprov.Run
	ctlIf  nsprov.IfName
	bridge nsprov.BridgeAddress
	undo   undoStack
	saved  bool
}

// Provision builds the test namespace, its control agent and the
// interface layout described by src. When the feature flag is off it
// returns immediately without consulting anything else.
//
// The returned run is the record as last saved; it is the zero Run if
// provisioning was disabled or the configuration did not resolve.
func (m *Manager) Provision(ctx context.Context, _ lock.WriterScope, src ConfigSource) (nsprov.Run, error) {
	if !src.Enabled() {
		m.logger.DebugContext(ctx, "namespace provisioning disabled")
		return nsprov.Run{}, nil
	}

	cfg, err := src.Resolve()
	if err != nil {
		return nsprov.Run{}, err
	}

	p := &provisioning{cfg: cfg, run: nsprov.NewRun(cfg, m.now())}
	ctx = ContextWithRunID(ctx, p.run.ID)
	m.logger.InfoContext(ctx, "provisioning namespace",
		"namespace", cfg.Namespace,
		"mode", cfg.Mode,
		"source_agent", cfg.SourceAgent,
		"ns_agent", cfg.NSAgent)

	if err := m.provision(ctx, p); err != nil {
		return p.run, m.fail(ctx, p, err)
	}

	m.logger.InfoContext(ctx, "namespace provisioned",
		"namespace", cfg.Namespace,
		"endpoint", p.bridge.AddrPort())
	return p.run, nil
}

func (m *Manager) provision(ctx context.Context, p *provisioning) error {
	ctlIf, err := m.controlInterface(ctx, p.cfg.SourceAgent, p.cfg.ControlIf)
	if err != nil {
		return fmt.Errorf("resolve control interface: %w", err)
	}
	p.ctlIf = ctlIf
	p.run.ControlIf = ctlIf.String()
	if err := m.saveRun(ctx, p, nsprov.StageResolved); err != nil {
		return err
	}

	steps := []struct {
		stage nsprov.Stage
		fn    func(context.Context, *provisioning) error
	}{
		{nsprov.StageNamespaced, m.createNamespace},
		{nsprov.StageRegistered, m.registerAgent},
		{nsprov.StageMigrated, m.migrateInterfaces},
		{nsprov.StageRouted, m.installRoute},
		{nsprov.StageReplayed, m.replayHistory},
	}
	for _, step := range steps {
		if err := step.fn(ctx, p); err != nil {
			return err
		}
		if err := m.saveRun(ctx, p, step.stage); err != nil {
			return err
		}
	}
	return m.saveRun(ctx, p, nsprov.StageActive)
}

func (m *Manager) saveRun(ctx context.Context, p *provisioning, stage nsprov.Stage) error {
	p.run.Stage = stage
	p.run.UpdatedAt = m.now()
	if err := m.fabric.Runs.SaveRun(ctx, p.run); err != nil {
		return fmt.Errorf("record run %s at stage %s: %w", p.run.ID, stage, err)
	}
	p.saved = true
	return nil
}

// fail applies the rollback policy to a run that stopped with err. A
// fully compensated run leaves no record behind; anything else keeps
// the record at the last stage reached.
func (m *Manager) fail(ctx context.Context, p *provisioning, err error) error {
	m.logger.ErrorContext(ctx, "provisioning failed",
		"namespace", p.cfg.Namespace,
		"stage", p.run.Stage,
		"error", err)

	if m.policy != config.RollbackCompensate {
		return err
	}
	m.logger.InfoContext(ctx, "rolling back", "steps", len(p.undo))
	if rbErr := p.undo.rollback(ctx, m.executor, m.logger); rbErr != nil {
		return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
	}
	if p.saved {
		if delErr := m.fabric.Runs.DeleteRun(ctx, p.run.ID); delErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", delErr))
		}
	}
	p.run.Stage = nsprov.StageNone
	return err
}
