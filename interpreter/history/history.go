// Package history replays recorded configuration histories against the
// configuration tree.
//
// A history file holds one or more YAML documents, each a list of
// operations applied in order:
//
//	- op: add
//	  oid: /agent:${TE_IUT_TA_NAME_NS}/interface:${TE_IUT}/net_addr:10.0.0.2
//	  value: "24"
//	- op: set
//	  oid: /agent:${TE_IUT_TA_NAME_NS}/interface:${TE_IUT}/status:
//	  value: "1"
//	- op: del
//	  oid: /local:/obsolete:
//
// ${NAME} references in oid and value are replaced with named values.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/interpreter"
)

// Op is a history operation.
type Op string

const (
	OpAdd    Op = "add"
	OpSet    Op = "set"
	OpDelete Op = "del"
)

// Entry is one recorded operation.
type Entry struct {
	Op    Op     `yaml:"op"`
	OID   string `yaml:"oid"`
	Value string `yaml:"value,omitempty"`
}

// Replayer implements interpreter.HistoryReplayer.
type Replayer struct {
	tree   interpreter.ConfigEditor
	values config.Values
	logger *slog.Logger
}

var _ interpreter.HistoryReplayer = (*Replayer)(nil)

// New returns a Replayer applying histories to tree. values resolves
// ${NAME} references.
func New(tree interpreter.ConfigEditor, values config.Values, logger *slog.Logger) *Replayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{tree: tree, values: values, logger: logger.With("component", "history")}
}

// Replay applies the history at path. A non-empty target restricts the
// replay to operations on target and its descendants; others are
// skipped.
func (r *Replayer) Replay(ctx context.Context, path, target string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	entries, err := Decode(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	r.logger.InfoContext(ctx, "replaying history", "path", path, "target", target, "entries", len(entries))

	var applied, skipped int
	for i, e := range entries {
		e, err := r.expand(e)
		if err != nil {
			return fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
		if target != "" && !nsprov.WithinSubtree(e.OID, target) {
			r.logger.DebugContext(ctx, "skipping entry outside target", "op", e.Op, "oid", e.OID)
			skipped++
			continue
		}
		if err := r.apply(ctx, e); err != nil {
			return fmt.Errorf("%s: entry %d (%s %s): %w", path, i+1, e.Op, e.OID, err)
		}
		applied++
	}

	r.logger.InfoContext(ctx, "replayed history", "path", path, "applied", applied, "skipped", skipped)
	return nil
}

func (r *Replayer) apply(ctx context.Context, e Entry) error {
	r.logger.DebugContext(ctx, "apply", "op", e.Op, "oid", e.OID, "value", e.Value)
	switch e.Op {
	case OpAdd:
		return r.tree.Add(ctx, e.OID, e.Value)
	case OpSet:
		return r.tree.Set(ctx, e.OID, e.Value)
	case OpDelete:
		return r.tree.Delete(ctx, e.OID)
	default:
		return nsprov.ErrInvalidFormat{What: "history op", Value: string(e.Op)}
	}
}

// Decode reads every document of a history stream.
func Decode(r io.Reader) ([]Entry, error) {
	dec := yaml.NewDecoder(r)
	var all []Entry
	for {
		var doc []Entry
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		for _, e := range doc {
			if e.OID == "" {
				return nil, nsprov.ErrInvalidFormat{What: "history entry", Value: string(e.Op) + " without oid"}
			}
		}
		all = append(all, doc...)
	}
	return all, nil
}

var varRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func (r *Replayer) expand(e Entry) (Entry, error) {
	var missing []string
	sub := func(s string) string {
		return varRef.ReplaceAllStringFunc(s, func(match string) string {
			name := match[2 : len(match)-1]
			if v, ok := r.values.Lookup(name); ok {
				return v
			}
			missing = append(missing, name)
			return match
		})
	}
	e.OID = sub(e.OID)
	e.Value = sub(e.Value)
	if len(missing) > 0 {
		return Entry{}, nsprov.ErrMissingConfig{Key: strings.Join(missing, ",")}
	}
	return e, nil
}
