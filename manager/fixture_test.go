package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/config"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
	"github.com/frobware/go-nsprov/interpreter/store/sqlite"
)

// testLogger returns a logger for tests. Set NSPROV_TEST_VERBOSE=1 to
// see the output.
func testLogger() *slog.Logger {
	if os.Getenv("NSPROV_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFabric stands in for every collaborator except the run store.
// Each call is appended to ops as "verb args..."; fail makes the named
// verb return an error.
type fakeFabric struct {
	ops  []string
	fail map[string]error

	defaultRouteIf map[string]string
	namespaces     map[string]nsprov.ConnMode
	agents         map[string]nsprov.AgentSpec
	bindings       map[string]string
	routes         map[string][]nsprov.Route

	tree      map[string]string
	treeOrder []string

	// veth1Addrs are mirrored into the tree for the source end of a
	// new veth pair.
	veth1Addrs map[string]string
}

func newFakeFabric() *fakeFabric {
	f := &fakeFabric{
		fail:           map[string]error{},
		defaultRouteIf: map[string]string{"Agt_A": "eth0"},
		namespaces:     map[string]nsprov.ConnMode{},
		agents:         map[string]nsprov.AgentSpec{},
		bindings:       map[string]string{},
		routes:         map[string][]nsprov.Route{},
		tree:           map[string]string{},
		veth1Addrs:     map[string]string{"fe80::1": "64", "10.254.0.1": "30"},
	}
	for _, ifname := range []string{"eth0", "eth1", "eth2", "eth3"} {
		f.put(nsprov.InterfaceStatusOID("Agt_A", ifname), "1")
	}
	return f
}

func (f *fakeFabric) record(verb string, args ...string) error {
	f.ops = append(f.ops, strings.Join(append([]string{verb}, args...), " "))
	return f.fail[verb]
}

// verbs returns the verb of each recorded op, in order.
func (f *fakeFabric) verbs() []string {
	out := make([]string, 0, len(f.ops))
	for _, op := range f.ops {
		verb, _, _ := strings.Cut(op, " ")
		out = append(out, verb)
	}
	return out
}

// opsWith returns the recorded ops whose verb is verb.
func (f *fakeFabric) opsWith(verb string) []string {
	var out []string
	for _, op := range f.ops {
		if v, _, _ := strings.Cut(op, " "); v == verb {
			out = append(out, op)
		}
	}
	return out
}

func (f *fakeFabric) put(oid, value string) {
	if _, ok := f.tree[oid]; !ok {
		f.treeOrder = append(f.treeOrder, oid)
	}
	f.tree[oid] = value
}

func (f *fakeFabric) drop(oid string) {
	for _, o := range slices.Clone(f.treeOrder) {
		if nsprov.WithinSubtree(o, oid) {
			delete(f.tree, o)
			f.treeOrder = slices.DeleteFunc(f.treeOrder, func(s string) bool { return s == o })
		}
	}
}

// ConfigTree

func (f *fakeFabric) Get(_ context.Context, oid string) (string, error) {
	if err := f.fail["get"]; err != nil {
		return "", err
	}
	v, ok := f.tree[oid]
	if !ok {
		return "", fmt.Errorf("instance %s: %w", oid, store.ErrNotFound)
	}
	return v, nil
}

func (f *fakeFabric) Find(_ context.Context, pattern string) ([]string, error) {
	var out []string
	for _, oid := range f.treeOrder {
		if ok, _ := path.Match(pattern, oid); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}

func (f *fakeFabric) Set(_ context.Context, oid, value string) error {
	if err := f.record("set", oid, value); err != nil {
		return err
	}
	f.put(oid, value)
	return nil
}

func (f *fakeFabric) Synchronize(_ context.Context, oid string) error {
	if err := f.record("sync", oid); err != nil {
		return err
	}
	if agent := nsprov.AgentOf(oid); agent != "" && agent != "Agt_A" {
		if _, ok := f.agents[agent]; !ok {
			f.drop(nsprov.AgentOID(agent))
		}
	}
	return nil
}

// AgentRegistry

func (f *fakeFabric) AddAgent(_ context.Context, spec nsprov.AgentSpec) error {
	if err := f.record("add-agent", spec.Name, netip.AddrPortFrom(spec.Addr, spec.Port).String()); err != nil {
		return err
	}
	f.agents[spec.Name] = spec
	return nil
}

func (f *fakeFabric) DeleteAgent(_ context.Context, name string) error {
	if err := f.record("delete-agent", name); err != nil {
		return err
	}
	if _, ok := f.agents[name]; !ok {
		return fmt.Errorf("agent %s: %w", name, store.ErrNotFound)
	}
	delete(f.agents, name)
	return nil
}

func (f *fakeFabric) BindNamespaceHost(_ context.Context, host, namespace, agent string) error {
	if err := f.record("bind", agent, host, namespace); err != nil {
		return err
	}
	f.bindings[agent] = namespace
	return nil
}

// UnbindNamespaceHost releases a veth namespace with its last binding,
// along with every route installed inside it.
func (f *fakeFabric) UnbindNamespaceHost(_ context.Context, agent string) error {
	if err := f.record("unbind", agent); err != nil {
		return err
	}
	ns, ok := f.bindings[agent]
	if !ok {
		return fmt.Errorf("binding %s: %w", agent, store.ErrNotFound)
	}
	delete(f.bindings, agent)
	for _, other := range f.bindings {
		if other == ns {
			return nil
		}
	}
	if f.namespaces[ns] == nsprov.ConnVeth {
		delete(f.namespaces, ns)
		delete(f.routes, agent)
	}
	return nil
}

func (f *fakeFabric) DefaultRouteInterface(_ context.Context, agent string) (string, error) {
	if err := f.record("default-route-if", agent); err != nil {
		return "", err
	}
	name, ok := f.defaultRouteIf[agent]
	if !ok {
		return "", fmt.Errorf("no default route on %s", agent)
	}
	return name, nil
}

// NetworkOperations

func (f *fakeFabric) CreateNamespaceWithMacvlan(_ context.Context, ch nsprov.MacvlanChannel) (nsprov.BridgeAddress, error) {
	if err := f.record("create-macvlan", ch.Namespace, ch.Macvlan, ch.ControlIf.String()); err != nil {
		return nsprov.BridgeAddress{}, err
	}
	f.namespaces[ch.Namespace] = nsprov.ConnMacvlan
	return nsprov.BridgeAddress{Addr: netip.MustParsePrefix("192.0.2.10/24")}, nil
}

func (f *fakeFabric) DestroyNamespaceWithMacvlan(_ context.Context, ch nsprov.MacvlanChannel) error {
	if err := f.record("destroy-macvlan", ch.Namespace, ch.Macvlan, ch.ControlIf.String()); err != nil {
		return err
	}
	delete(f.namespaces, ch.Namespace)
	return nil
}

func (f *fakeFabric) CreateNamespaceWithVeth(_ context.Context, ch nsprov.VethChannel) (nsprov.BridgeAddress, error) {
	if err := f.record("create-veth", ch.Namespace, ch.Veth1, ch.Veth2, ch.ControlIf.String()); err != nil {
		return nsprov.BridgeAddress{}, err
	}
	f.namespaces[ch.Namespace] = nsprov.ConnVeth
	for _, addr := range []string{"fe80::1", "10.254.0.1"} {
		if bits, ok := f.veth1Addrs[addr]; ok {
			f.put(nsprov.NetAddrOID(ch.SourceAgent, ch.Veth1, addr), bits)
		}
	}
	return nsprov.BridgeAddress{Addr: netip.MustParsePrefix("10.254.0.2/30"), Port: ch.Port}, nil
}

func (f *fakeFabric) DestroyNamespaceWithVeth(_ context.Context, ch nsprov.VethChannel) error {
	if err := f.record("destroy-veth", ch.Namespace); err != nil {
		return err
	}
	delete(f.namespaces, ch.Namespace)
	return nil
}

func (f *fakeFabric) MoveInterface(_ context.Context, from, to, ifname string) error {
	if err := f.record("move", ifname, from, to); err != nil {
		return err
	}
	if v, ok := f.tree[nsprov.InterfaceStatusOID(from, ifname)]; ok {
		f.drop(nsprov.InterfaceOID(from, ifname))
		f.put(nsprov.InterfaceStatusOID(to, ifname), v)
	}
	return nil
}

func (f *fakeFabric) AddRoute(_ context.Context, agent string, r nsprov.Route) error {
	if err := f.record("add-route", agent, r.String()); err != nil {
		return err
	}
	f.routes[agent] = append(f.routes[agent], r)
	return nil
}

func (f *fakeFabric) DeleteRoute(_ context.Context, agent string, r nsprov.Route) error {
	if err := f.record("delete-route", agent, r.String()); err != nil {
		return err
	}
	f.routes[agent] = slices.DeleteFunc(f.routes[agent], func(x nsprov.Route) bool { return x == r })
	return nil
}

// HistoryReplayer

func (f *fakeFabric) Replay(_ context.Context, path, target string) error {
	return f.record("replay", path)
}

// fixture wires a Manager to a fake fabric and an in-memory run store.
type fixture struct {
	t     *testing.T
	fab   *fakeFabric
	store interpreter.Store
	mgr   *Manager
}

func newFixture(t *testing.T, policy config.RollbackPolicy) *fixture {
	t.Helper()
	st, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fab := newFakeFabric()
	mgr := New(interpreter.Fabric{
		Tree:    fab,
		Agents:  fab,
		Network: fab,
		History: fab,
		Runs:    st,
	}, policy, testLogger())
	return &fixture{t: t, fab: fab, store: st, mgr: mgr}
}

// runs returns the persisted run records.
func (f *fixture) runs() []nsprov.Run {
	f.t.Helper()
	runs, err := f.store.ListRuns(context.Background())
	require.NoError(f.t, err)
	return runs
}

// vethValues is a complete veth configuration with provisioning
// enabled.
func vethValues() config.Map {
	return config.Map{
		"NETNS_ENABLE":        "true",
		"NETNS_AGENT":         "Agt_A",
		"NETNS_AGENT_TYPE":    "linux",
		"NETNS_HOST":          "testhost",
		"NETNS_NS_AGENT":      "Agt_NS",
		"NETNS_NAME":          "testns",
		"NETNS_RPCPROVIDER":   "local",
		"NETNS_CFG_HISTORY":   "/tmp/cfg.yaml",
		"NETNS_VETH1":         "veth1",
		"NETNS_VETH2":         "veth2",
		"NETNS_PORT":          "23571",
		"NETNS_LOCAL_NETWORK": "192.168.1.0/24",
		"NETNS_IF_PRIMARY":    "eth1",
		"NETNS_IF_SECONDARY":  "eth2",
	}
}

// macvlanValues is a complete macvlan configuration with provisioning
// enabled.
func macvlanValues() config.Map {
	v := vethValues()
	delete(v, "NETNS_VETH1")
	delete(v, "NETNS_VETH2")
	delete(v, "NETNS_LOCAL_NETWORK")
	v["NETNS_MODE"] = "macvlan"
	v["NETNS_MACVLAN"] = "mv0"
	return v
}

func resolver(values config.Map) *config.Resolver {
	return config.NewResolver(values, config.DefaultKeys())
}
