// nsprov provisions a network namespace and control agent for a test
// harness, and tears them down again.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nsprov/cmd/nsprov/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var c cli.CLI
	kctx := kong.Parse(&c, cli.KongOptions()...)
	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run(&c))
}
