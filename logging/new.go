package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" (or empty) and "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

// Options configures New. The first non-empty of CLISpec, EnvSpec
// (NSPROV_LOG) and ConfigSpec is used.
type Options struct {
	CLISpec    string
	EnvSpec    string
	ConfigSpec string
	Format     Format
	// Output defaults to os.Stdout.
	Output io.Writer
}

func (o Options) spec() string {
	for _, s := range []string{o.CLISpec, o.EnvSpec, o.ConfigSpec} {
		if s != "" {
			return s
		}
	}
	return ""
}

// New returns a logger filtering by component.
func New(opts Options) (*slog.Logger, error) {
	spec, err := ParseSpec(opts.spec())
	if err != nil {
		return nil, fmt.Errorf("invalid log spec: %w", err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	ho := &slog.HandlerOptions{Level: LevelTrace, ReplaceAttr: renameTrace}

	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(out, ho)
	} else {
		h = slog.NewTextHandler(out, ho)
	}
	return slog.New(NewHandler(h, spec)), nil
}

// renameTrace prints LevelTrace as TRACE rather than DEBUG-4.
func renameTrace(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
