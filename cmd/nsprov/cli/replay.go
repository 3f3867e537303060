package cli

import (
	"context"

	"github.com/frobware/go-nsprov/lock"
)

// ReplayCmd replays a configuration history file.
type ReplayCmd struct {
	Path   string `arg:"" help:"History file." type:"existingfile"`
	Target string `name:"target" help:"Only apply entries within this OID subtree."`
}

// Run executes the replay command.
func (c *ReplayCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return lock.Run(ctx, rt.Dirs.Lock(), func(ctx context.Context, _ lock.WriterScope) error {
		return rt.History.Replay(ctx, c.Path, c.Target)
	})
}
