package history_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/interpreter/history"
)

type recordingEditor struct {
	ops    []string
	failOn string
}

func (e *recordingEditor) record(op, oid, value string) error {
	if oid == e.failOn {
		return errors.New("refused")
	}
	e.ops = append(e.ops, strings.TrimSpace(op+" "+oid+" "+value))
	return nil
}

func (e *recordingEditor) Get(context.Context, string) (string, error)    { return "", nil }
func (e *recordingEditor) Find(context.Context, string) ([]string, error) { return nil, nil }
func (e *recordingEditor) Synchronize(context.Context, string) error      { return nil }

func (e *recordingEditor) Set(_ context.Context, oid, value string) error {
	return e.record("set", oid, value)
}

func (e *recordingEditor) Add(_ context.Context, oid, value string) error {
	return e.record("add", oid, value)
}

func (e *recordingEditor) Delete(_ context.Context, oid string) error {
	return e.record("del", oid, "")
}

func writeHistory(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newReplayer(ed *recordingEditor, vals config.Map) *history.Replayer {
	return history.New(ed, vals, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const twoDocs = `
- op: add
  oid: /agent:${NS_AGENT}/interface:${IUT}/net_addr:10.0.0.2
  value: "24"
- op: set
  oid: /agent:${NS_AGENT}/interface:${IUT}/status:
  value: "1"
---
- op: del
  oid: /local:/obsolete:
- op: set
  oid: /agent:Agt_A/interface:eth0/status:
  value: "0"
`

func TestReplay_AppliesAllDocumentsInOrder(t *testing.T) {
	ed := &recordingEditor{}
	r := newReplayer(ed, config.Map{"NS_AGENT": "Agt_A_ns", "IUT": "eth1"})

	require.NoError(t, r.Replay(context.Background(), writeHistory(t, twoDocs), ""))
	assert.Equal(t, []string{
		"add /agent:Agt_A_ns/interface:eth1/net_addr:10.0.0.2 24",
		"set /agent:Agt_A_ns/interface:eth1/status: 1",
		"del /local:/obsolete:",
		"set /agent:Agt_A/interface:eth0/status: 0",
	}, ed.ops)
}

func TestReplay_TargetSkipsOtherSubtrees(t *testing.T) {
	ed := &recordingEditor{}
	r := newReplayer(ed, config.Map{"NS_AGENT": "Agt_A_ns", "IUT": "eth1"})

	require.NoError(t, r.Replay(context.Background(), writeHistory(t, twoDocs), "/agent:Agt_A_ns"))
	assert.Equal(t, []string{
		"add /agent:Agt_A_ns/interface:eth1/net_addr:10.0.0.2 24",
		"set /agent:Agt_A_ns/interface:eth1/status: 1",
	}, ed.ops)
}

func TestReplay_UnresolvedVariable(t *testing.T) {
	ed := &recordingEditor{}
	r := newReplayer(ed, config.Map{"IUT": "eth1"})

	err := r.Replay(context.Background(), writeHistory(t, twoDocs), "")
	var mc nsprov.ErrMissingConfig
	require.True(t, errors.As(err, &mc), "got %v", err)
	assert.Equal(t, "NS_AGENT", mc.Key)
	assert.Empty(t, ed.ops)
}

func TestReplay_StopsAtFirstFailure(t *testing.T) {
	ed := &recordingEditor{failOn: "/local:/obsolete:"}
	r := newReplayer(ed, config.Map{"NS_AGENT": "Agt_A_ns", "IUT": "eth1"})

	err := r.Replay(context.Background(), writeHistory(t, twoDocs), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 3 (del /local:/obsolete:)")
	assert.Len(t, ed.ops, 2)
}

func TestReplay_MissingFile(t *testing.T) {
	r := newReplayer(&recordingEditor{}, config.Map{})
	err := r.Replay(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecode_RejectsBadEntries(t *testing.T) {
	_, err := history.Decode(strings.NewReader("- op: add\n  value: x\n"))
	var fe nsprov.ErrInvalidFormat
	assert.True(t, errors.As(err, &fe))

	_, err = history.Decode(strings.NewReader("op: add\n"))
	assert.Error(t, err, "a document must be a list")

	r := newReplayer(&recordingEditor{}, config.Map{})
	err = r.Replay(context.Background(), writeHistory(t, "- op: frob\n  oid: /a:\n"), "")
	assert.True(t, errors.As(err, &fe))
}
