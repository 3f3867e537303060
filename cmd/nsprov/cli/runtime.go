package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/agent"
	"github.com/frobware/go-nsprov/interpreter/cfgtree"
	"github.com/frobware/go-nsprov/interpreter/history"
	"github.com/frobware/go-nsprov/interpreter/hostnet"
	"github.com/frobware/go-nsprov/interpreter/store/sqlite"
	"github.com/frobware/go-nsprov/manager"
)

// CLIRuntime holds the collaborators a command works with. It wires
// the state store, host network fabric, agent registry, configuration
// tree and history replayer into a manager.
type CLIRuntime struct {
	Config   config.Config
	Dirs     config.RuntimeDirs
	Resolver *config.Resolver
	Store    interpreter.Store
	Network  *hostnet.Fabric
	Tree     *cfgtree.Tree
	Agents   *agent.Registry
	History  *history.Replayer
	Manager  *manager.Manager
	Logger   *slog.Logger
}

// NewCLIRuntime creates a runtime environment for CLI commands. The
// returned runtime must be closed when no longer needed.
func (c *CLI) NewCLIRuntime(ctx context.Context) (*CLIRuntime, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := c.Logger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	dirs, err := c.RuntimeDirs(cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime directories: %w", err)
	}
	if err := dirs.EnsureDirectories(); err != nil {
		return nil, err
	}
	values, err := c.NamedValues()
	if err != nil {
		return nil, err
	}
	pool, err := cfg.Veth.PoolPrefix()
	if err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	st, err := sqlite.New(ctx, dirs.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dirs.DBPath(), err)
	}

	fabric, err := hostnet.New(st, hostnet.Options{Pool: pool, ChannelBits: cfg.Veth.ChannelPrefix}, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("host network: %w", err)
	}

	tree := cfgtree.New(st, fabric, logger)
	registry := agent.NewRegistry(st, fabric,
		agent.ProcessLauncher{Executable: exe, Dirs: dirs},
		agent.HealthProber{Timeout: cfg.Provision.ReadyTimeout()},
		logger)
	replayer := history.New(tree, values, logger)

	mgr := manager.New(interpreter.Fabric{
		Tree:    tree,
		Agents:  registry,
		Network: cfgtree.SyncingNetwork(fabric, tree),
		History: replayer,
		Runs:    st,
	}, cfg.Provision.Rollback, logger)

	return &CLIRuntime{
		Config:   cfg,
		Dirs:     dirs,
		Resolver: config.NewResolver(values, cfg.Keys),
		Store:    st,
		Network:  fabric,
		Tree:     tree,
		Agents:   registry,
		History:  replayer,
		Manager:  mgr,
		Logger:   logger,
	}, nil
}

// Close releases resources held by the CLI runtime.
func (r *CLIRuntime) Close() error {
	return errors.Join(r.Network.Close(), r.Store.Close())
}
