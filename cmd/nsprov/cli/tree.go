package cli

import (
	"context"
	"strings"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/lock"
)

// TreeCmd groups configuration tree commands.
type TreeCmd struct {
	Get  TreeGetCmd  `cmd:"" help:"Print the value of an instance."`
	Find TreeFindCmd `cmd:"" help:"List instances matching a pattern."`
	Sync TreeSyncCmd `cmd:"" help:"Refresh a subtree from live state."`
}

// TreeGetCmd prints one instance value.
type TreeGetCmd struct {
	OID string `arg:"" help:"Object identifier, e.g. /agent:Agt_A/interface:eth1/status:."`
}

// Run executes the tree get command.
func (c *TreeGetCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	v, err := rt.Tree.Get(ctx, c.OID)
	if err != nil {
		return err
	}
	return cli.PrintOut(v + "\n")
}

// TreeFindCmd lists matching instances.
type TreeFindCmd struct {
	Pattern string `arg:"" help:"OID pattern; any instance may be '*'."`
}

// Run executes the tree find command.
func (c *TreeFindCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	oids, err := rt.Tree.Find(ctx, c.Pattern)
	if err != nil {
		return err
	}
	if len(oids) == 0 {
		return nil
	}
	return cli.PrintOut(strings.Join(oids, "\n") + "\n")
}

// TreeSyncCmd synchronizes a subtree.
type TreeSyncCmd struct {
	OID string `arg:"" optional:"" help:"Subtree to synchronize (default: whole tree)."`
}

// Run executes the tree sync command.
func (c *TreeSyncCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	oid := c.OID
	if oid == "" {
		oid = nsprov.RootOID
	}
	return lock.Run(ctx, rt.Dirs.Lock(), func(ctx context.Context, _ lock.WriterScope) error {
		return rt.Tree.Synchronize(ctx, oid)
	})
}
