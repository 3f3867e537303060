package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/lock"
)

// UpCmd provisions the test namespace.
type UpCmd struct {
	Mode nsprov.ConnMode `name:"mode" help:"Override the connection mode (veth or macvlan)."`
}

// Run executes the up command.
func (c *UpCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	src := rt.Resolver
	src.Mode = c.Mode

	var run nsprov.Run
	err = lock.Run(ctx, rt.Dirs.Lock(), func(ctx context.Context, scope lock.WriterScope) error {
		if src.Enabled() {
			cfg, err := src.Resolve()
			if err != nil {
				return err
			}
			if err := rt.Agents.EnsureLocal(ctx, cfg.SourceAgent, cfg.AgentType, cfg.Host); err != nil {
				return fmt.Errorf("register source agent %s: %w", cfg.SourceAgent, err)
			}
		}
		var err error
		run, err = rt.Manager.Provision(ctx, scope, src)
		return err
	})
	if err != nil {
		return err
	}

	if run.Stage == "" {
		return cli.PrintOut("namespace provisioning disabled\n")
	}
	return cli.PrintOut(fmt.Sprintf("%s %s namespace %s agent %s\n", run.ID, run.Mode, run.Namespace, run.NSAgent))
}
