package cli

import (
	"context"

	"github.com/frobware/go-nsprov/lock"
)

// DownCmd tears down the test namespace.
type DownCmd struct{}

// Run executes the down command.
func (c *DownCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return lock.Run(ctx, rt.Dirs.Lock(), func(ctx context.Context, scope lock.WriterScope) error {
		return rt.Manager.Teardown(ctx, scope, rt.Resolver)
	})
}
