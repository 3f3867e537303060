package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-nsprov/interpreter/agent"
)

// AgentCmd groups the commands a launched control agent runs.
type AgentCmd struct {
	Serve AgentServeCmd `cmd:"" help:"Serve the control endpoint."`
}

// AgentServeCmd runs a control agent. The registry launches it with
// the arguments built by agent.ServeArgs.
type AgentServeCmd struct {
	Name   string `name:"name" required:"" help:"Agent name."`
	Netns  string `name:"netns" help:"Named network namespace to listen in (default: current)."`
	Listen string `name:"listen" required:"" help:"Listen address, host:port."`
}

// Run executes the agent serve command.
func (c *AgentServeCmd) Run(cli *CLI, ctx context.Context) error {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := cli.LoggerFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	lis, err := agent.Listen(c.Netns, c.Listen)
	if err != nil {
		return err
	}
	logger.Info("agent listening", "agent", c.Name, "netns", c.Netns, "addr", lis.Addr())
	return agent.Serve(ctx, lis, c.Name, logger)
}
