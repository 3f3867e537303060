package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
	"github.com/frobware/go-nsprov/interpreter/store/sqlite"
)

// testLogger returns a logger for tests. By default it discards all output.
// Set NSPROV_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("NSPROV_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) interpreter.Store {
	t.Helper()
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func oids(insts []nsprov.Instance) []string {
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.OID)
	}
	return out
}

func TestInstances_PutKeepsInsertionOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, oid := range []string{"/agent:b", "/agent:a", "/agent:a/interface:eth0"} {
		require.NoError(t, s.PutInstance(ctx, nsprov.Instance{OID: oid, Volatile: true}))
	}
	// Updating an existing instance must not move it.
	require.NoError(t, s.PutInstance(ctx, nsprov.Instance{OID: "/agent:b", Value: "x"}))

	all, err := s.ListInstances(ctx, nsprov.RootOID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/agent:b", "/agent:a", "/agent:a/interface:eth0"}, oids(all))

	got, err := s.GetInstance(ctx, "/agent:b")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Value)
	assert.False(t, got.Volatile)
}

func TestInstances_SubtreeMatchesWholeSegments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, oid := range []string{"/agent:ns", "/agent:ns/interface:eth0", "/agent:ns_2", "/agent:ns_2/interface:eth0"} {
		require.NoError(t, s.PutInstance(ctx, nsprov.Instance{OID: oid}))
	}

	sub, err := s.ListInstances(ctx, "/agent:ns")
	require.NoError(t, err)
	assert.Equal(t, []string{"/agent:ns", "/agent:ns/interface:eth0"}, oids(sub))

	require.NoError(t, s.DeleteSubtree(ctx, "/agent:ns"))
	all, err := s.ListInstances(ctx, nsprov.RootOID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/agent:ns_2", "/agent:ns_2/interface:eth0"}, oids(all))

	require.NoError(t, s.DeleteSubtree(ctx, "/agent:missing"), "deleting an absent subtree is not an error")
}

func TestInstances_NotFound(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.GetInstance(ctx, "/agent:none")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.ErrorIs(t, s.DeleteInstance(ctx, "/agent:none"), store.ErrNotFound)
}

func TestAgents_SaveGetListDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := nsprov.Agent{
		AgentSpec: nsprov.AgentSpec{
			Name:      "Agt_A_ns",
			Type:      "linux",
			Host:      "iut",
			Namespace: "test_ns",
			Addr:      netip.MustParseAddr("10.254.0.2"),
			Port:      23571,
			Preload:   nsprov.SetTo("/usr/lib/libsock.so"),
		},
		PID:       1234,
		CreatedAt: now,
	}
	require.NoError(t, s.SaveAgent(ctx, a))
	require.NoError(t, s.SaveAgent(ctx, nsprov.Agent{AgentSpec: nsprov.AgentSpec{Name: "Agt_A", Type: "linux", Host: "iut"}, Local: true, CreatedAt: now.Add(-time.Hour)}))

	got, err := s.GetAgent(ctx, "Agt_A_ns")
	require.NoError(t, err)
	assert.Equal(t, a.AgentSpec, got.AgentSpec)
	assert.Equal(t, 1234, got.PID)
	assert.True(t, now.Equal(got.CreatedAt))

	list, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Agt_A", list[0].Name)
	assert.True(t, list[0].Local)
	assert.False(t, list[0].Preload.IsSet())
	assert.False(t, list[0].Addr.IsValid())

	require.NoError(t, s.DeleteAgent(ctx, "Agt_A_ns"))
	_, err = s.GetAgent(ctx, "Agt_A_ns")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAgent(ctx, "Agt_A_ns"), store.ErrNotFound)
}

func TestBindings_CountByNamespace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBinding(ctx, nsprov.Binding{Agent: "a1", Host: "iut", Namespace: "ns1"}))
	require.NoError(t, s.SaveBinding(ctx, nsprov.Binding{Agent: "a2", Host: "iut", Namespace: "ns1"}))
	require.NoError(t, s.SaveBinding(ctx, nsprov.Binding{Agent: "a3", Host: "iut", Namespace: "ns2"}))

	n, err := s.CountBindings(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteBinding(ctx, "a1"))
	n, err = s.CountBindings(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b, err := s.GetBinding(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, nsprov.Binding{Agent: "a3", Host: "iut", Namespace: "ns2"}, b)

	assert.ErrorIs(t, s.DeleteBinding(ctx, "a1"), store.ErrNotFound)
}

func TestChannels_RoundTripsAddresses(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	veth := interpreter.Channel{
		Namespace:   "test_ns",
		Mode:        nsprov.ConnVeth,
		SourceAgent: "Agt_A",
		ControlIf:   "eth0",
		Link:        "veth1",
		Peer:        "veth2",
		Port:        23571,
		SourceAddr:  netip.MustParsePrefix("10.254.0.1/30"),
		NSAddr:      netip.MustParsePrefix("10.254.0.2/30"),
	}
	macvlan := interpreter.Channel{
		Namespace:   "other_ns",
		Mode:        nsprov.ConnMacvlan,
		SourceAgent: "Agt_A",
		ControlIf:   "eth0",
		Link:        "mv0",
	}
	require.NoError(t, s.SaveChannel(ctx, veth))
	require.NoError(t, s.SaveChannel(ctx, macvlan))

	got, err := s.GetChannel(ctx, "test_ns")
	require.NoError(t, err)
	assert.Equal(t, veth, got)

	list, err := s.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, macvlan, list[0])

	require.NoError(t, s.DeleteChannel(ctx, "test_ns"))
	_, err = s.GetChannel(ctx, "test_ns")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRuns_SaveReplacesPerAgent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cfg := nsprov.ProvisioningConfig{Mode: nsprov.ConnMacvlan, SourceAgent: "Agt_A", NSAgent: "Agt_A_ns", Namespace: "test_ns"}
	first := nsprov.NewRun(cfg, now)
	require.NoError(t, s.SaveRun(ctx, first))

	second := nsprov.NewRun(cfg, now.Add(time.Minute))
	second.Stage = nsprov.StageActive
	second.ControlIf = "eth0"
	require.NoError(t, s.SaveRun(ctx, second))

	got, err := s.GetRunByAgent(ctx, "Agt_A_ns")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, nsprov.ConnMacvlan, got.Mode)
	assert.Equal(t, nsprov.StageActive, got.Stage)
	assert.Equal(t, "eth0", got.ControlIf)
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	assert.ErrorIs(t, s.DeleteRun(ctx, first.ID), store.ErrNotFound)
	require.NoError(t, s.DeleteRun(ctx, second.ID))
	_, err = s.GetRunByAgent(ctx, "Agt_A_ns")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx interpreter.Store) error {
		require.NoError(t, tx.PutInstance(ctx, nsprov.Instance{OID: "/agent:a"}))
		require.NoError(t, tx.SaveBinding(ctx, nsprov.Binding{Agent: "a", Host: "h", Namespace: "ns"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetInstance(ctx, "/agent:a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	n, err := s.CountBindings(ctx, "ns")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.RunInTransaction(ctx, func(tx interpreter.Store) error {
		return tx.PutInstance(ctx, nsprov.Instance{OID: "/agent:a"})
	}))
	_, err = s.GetInstance(ctx, "/agent:a")
	assert.NoError(t, err)
}

func TestNew_CreatesDatabaseDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "store.db")
	s, err := sqlite.New(context.Background(), path, testLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutInstance(context.Background(), nsprov.Instance{OID: "/agent:a"}))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
