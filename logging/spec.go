// Package logging builds the slog loggers used across nsprov.
//
// Every component logs through logger.With("component", name). The
// handler installed by New filters records by that attribute, so a
// spec such as "warn,hostnet=debug" quietens everything except netlink
// activity.
package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// LevelTrace sits below slog.LevelDebug and is used for SQL statements
// and per-link snapshot detail.
const LevelTrace = slog.LevelDebug - 4

var levelNames = map[string]slog.Level{
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"err":     slog.LevelError,
}

// ParseLevel accepts trace, debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func levelName(l slog.Level) string {
	if l == LevelTrace {
		return "trace"
	}
	return strings.ToLower(l.String())
}

// Spec is a base level plus per-component overrides, written as
// "<level>[,<component>=<level>]...". The base level, when present,
// must come first.
//
// Components: manager, store, hostnet, agent, cfgtree, history, cli.
type Spec struct {
	Base       slog.Level
	Components map[string]slog.Level
}

// ParseSpec parses s. The empty spec is info for everything.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{Base: slog.LevelInfo, Components: map[string]slog.Level{}}

	for i, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		component, lvl, isOverride := strings.Cut(field, "=")
		if !isOverride {
			if i != 0 {
				return spec, fmt.Errorf("base level %q must be first in spec", field)
			}
			l, err := ParseLevel(field)
			if err != nil {
				return spec, err
			}
			spec.Base = l
			continue
		}
		component = strings.TrimSpace(component)
		if component == "" {
			return spec, fmt.Errorf("empty component name in %q", field)
		}
		l, err := ParseLevel(lvl)
		if err != nil {
			return spec, fmt.Errorf("component %s: %w", component, err)
		}
		spec.Components[component] = l
	}
	return spec, nil
}

// Level returns the level in force for component.
func (s Spec) Level(component string) slog.Level {
	if l, ok := s.Components[component]; ok {
		return l
	}
	return s.Base
}

// String renders the spec with components in name order.
func (s Spec) String() string {
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(levelName(s.Base))
	for _, name := range names {
		fmt.Fprintf(&b, ",%s=%s", name, levelName(s.Components[name]))
	}
	return b.String()
}
