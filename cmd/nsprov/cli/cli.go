// Package cli provides the command-line interface for nsprov.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/logging"
)

// CLI is the root command structure for nsprov.
type CLI struct {
	Config     string   `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log        string   `name:"log" help:"Log spec (e.g., 'info,manager=debug')." env:"NSPROV_LOG"`
	RuntimeDir string   `name:"runtime-dir" help:"Override the runtime directory from the config file."`
	EnvFile    []string `name:"env-file" help:"Read named values from a KEY=value file (can be repeated)." type:"existingfile"`
	Values     string   `name:"values" help:"Read named values from a YAML, TOML or JSON file." type:"existingfile"`

	Up         UpCmd         `cmd:"" help:"Provision the test namespace and its control agent."`
	Down       DownCmd       `cmd:"" help:"Tear down the test namespace and its control agent."`
	Status     StatusCmd     `cmd:"" help:"Show provisioning runs and registered agents."`
	WhichAgent WhichAgentCmd `cmd:"" name:"which-agent" help:"Print the agent that controls the test interfaces."`
	Replay     ReplayCmd     `cmd:"" help:"Replay a configuration history file."`
	Tree       TreeCmd       `cmd:"" help:"Inspect and synchronize the configuration tree."`
	Agent      AgentCmd      `cmd:"" hidden:"" help:"Control agent process."`

	out io.Writer
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("nsprov"),
		kong.Description("Test-network namespace provisioner."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(nsprov.ConnMode("")), connModeMapper()),
		kong.Vars{
			"default_config_path": config.DefaultConfigPath,
		},
	}
}

// LoadConfig loads the configuration from the config file path.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// RuntimeDirs returns the runtime directories, honouring --runtime-dir.
func (c *CLI) RuntimeDirs(cfg config.Config) (config.RuntimeDirs, error) {
	base := cfg.Runtime.Dir
	if c.RuntimeDir != "" {
		base = c.RuntimeDir
	}
	return config.NewRuntimeDirs(base)
}

// Logger creates a logger for CLI commands.
// CLI commands default to WARN level for quieter output.
// Use LoggerFromConfig for long-running services like agent serve.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	spec := c.Log
	if spec == "" {
		spec = "warn"
	}
	return c.newLogger(cfg, spec, os.Stderr)
}

// LoggerFromConfig creates a logger using config file settings.
// Output goes to stdout, which a launched agent has redirected to its
// log file.
func (c *CLI) LoggerFromConfig(cfg config.Config) (*slog.Logger, error) {
	return c.newLogger(cfg, c.Log, os.Stdout)
}

func (c *CLI) newLogger(cfg config.Config, spec string, w io.Writer) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		CLISpec:    spec,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     w,
	})
}

// NamedValues returns the sources named values are read from: the
// process environment first, then --env-file, then --values.
func (c *CLI) NamedValues() (config.Values, error) {
	chain := config.Chain{config.Env{}}
	if len(c.EnvFile) > 0 {
		m, err := config.ReadDotEnv(c.EnvFile...)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
	}
	if c.Values != "" {
		v, err := config.NewViperValues(c.Values)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	return chain, nil
}

// PrintOut writes s to the command output.
func (c *CLI) PrintOut(s string) error {
	w := c.out
	if w == nil {
		w = os.Stdout
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// SetOutput redirects command output, for tests.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}
