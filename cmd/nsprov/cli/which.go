package cli

import "context"

// WhichAgentCmd prints the agent owning the test interfaces.
type WhichAgentCmd struct{}

// Run executes the which-agent command.
func (c *WhichAgentCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	agent, err := rt.Manager.ControlledAgent(ctx, rt.Resolver)
	if err != nil {
		return err
	}
	return cli.PrintOut(agent + "\n")
}
