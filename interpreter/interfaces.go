// Package interpreter contains interfaces and executors for effects.
// Packages below it are the only ones that perform actual I/O: the
// state database, host networking, agent processes, the configuration
// tree and history replay.
package interpreter

import (
	"context"
	"net/netip"

	"github.com/google/uuid"

	"github.com/frobware/go-nsprov"
)

// ConfigReader reads the configuration tree.
type ConfigReader interface {
	// Get returns the value of oid. Returns store.ErrNotFound if the
	// instance does not exist.
	Get(ctx context.Context, oid string) (string, error)

	// Find returns the OIDs matching pattern, in insertion order. Any
	// segment instance may be "*".
	Find(ctx context.Context, pattern string) ([]string, error)
}

// ConfigWriter updates the configuration tree.
type ConfigWriter interface {
	// Set stores value at oid, committing it to live state where the
	// node mirrors one.
	Set(ctx context.Context, oid, value string) error

	// Synchronize refreshes the subtree at oid from live state.
	Synchronize(ctx context.Context, oid string) error
}

// ConfigTree combines reading and writing the configuration tree.
type ConfigTree interface {
	ConfigReader
	ConfigWriter
}

// ConfigEditor extends ConfigTree with instance creation and removal,
// as needed to replay recorded history.
type ConfigEditor interface {
	ConfigTree
	Add(ctx context.Context, oid, value string) error
	Delete(ctx context.Context, oid string) error
}

// AgentRegistry manages control agents.
type AgentRegistry interface {
	AddAgent(ctx context.Context, spec nsprov.AgentSpec) error
	DeleteAgent(ctx context.Context, name string) error
	BindNamespaceHost(ctx context.Context, host, namespace, agent string) error
	UnbindNamespaceHost(ctx context.Context, agent string) error

	// DefaultRouteInterface returns the interface carrying agent's IPv4
	// default route.
	DefaultRouteInterface(ctx context.Context, agent string) (string, error)
}

// NetworkOperations creates and destroys namespaces and moves state
// between them.
type NetworkOperations interface {
	CreateNamespaceWithMacvlan(ctx context.Context, ch nsprov.MacvlanChannel) (nsprov.BridgeAddress, error)
	DestroyNamespaceWithMacvlan(ctx context.Context, ch nsprov.MacvlanChannel) error
	CreateNamespaceWithVeth(ctx context.Context, ch nsprov.VethChannel) (nsprov.BridgeAddress, error)
	DestroyNamespaceWithVeth(ctx context.Context, ch nsprov.VethChannel) error

	// MoveInterface hands ifname from agent from to agent to.
	MoveInterface(ctx context.Context, from, to, ifname string) error

	AddRoute(ctx context.Context, agent string, r nsprov.Route) error
	DeleteRoute(ctx context.Context, agent string, r nsprov.Route) error
}

// HistoryReplayer re-applies a recorded configuration history. An empty
// target replays against the whole tree.
type HistoryReplayer interface {
	Replay(ctx context.Context, path, target string) error
}

// RunStore persists provisioning run records.
type RunStore interface {
	SaveRun(ctx context.Context, run nsprov.Run) error
	// GetRunByAgent returns the run that created nsAgent. Returns
	// store.ErrNotFound if there is none.
	GetRunByAgent(ctx context.Context, nsAgent string) (nsprov.Run, error)
	DeleteRun(ctx context.Context, id uuid.UUID) error
	ListRuns(ctx context.Context) ([]nsprov.Run, error)
}

// InstanceStore persists configuration tree instances.
type InstanceStore interface {
	GetInstance(ctx context.Context, oid string) (nsprov.Instance, error)
	PutInstance(ctx context.Context, inst nsprov.Instance) error
	DeleteInstance(ctx context.Context, oid string) error
	// DeleteSubtree removes oid and all of its descendants.
	DeleteSubtree(ctx context.Context, oid string) error
	// ListInstances returns oid and its descendants in insertion
	// order. A root oid lists everything.
	ListInstances(ctx context.Context, oid string) ([]nsprov.Instance, error)
}

// AgentStore persists agent registrations and bindings.
type AgentStore interface {
	SaveAgent(ctx context.Context, agent nsprov.Agent) error
	// GetAgent returns store.ErrNotFound if name is not registered.
	GetAgent(ctx context.Context, name string) (nsprov.Agent, error)
	DeleteAgent(ctx context.Context, name string) error
	ListAgents(ctx context.Context) ([]nsprov.Agent, error)

	SaveBinding(ctx context.Context, b nsprov.Binding) error
	// GetBinding returns store.ErrNotFound if agent has no binding.
	GetBinding(ctx context.Context, agent string) (nsprov.Binding, error)
	DeleteBinding(ctx context.Context, agent string) error
	CountBindings(ctx context.Context, namespace string) (int, error)
}

// Channel is the persisted record of a namespace bridge, kept so the
// bridge can be torn down without the configuration that built it.
type Channel struct {
	Namespace   string
	Mode        nsprov.ConnMode
	SourceAgent string
	ControlIf   string
	Link        string
	Peer        string
	Port        uint16
	SourceAddr  netip.Prefix
	NSAddr      netip.Prefix
}

// ChannelStore persists namespace bridges.
type ChannelStore interface {
	SaveChannel(ctx context.Context, ch Channel) error
	// GetChannel returns store.ErrNotFound if namespace has no channel.
	GetChannel(ctx context.Context, namespace string) (Channel, error)
	DeleteChannel(ctx context.Context, namespace string) error
	ListChannels(ctx context.Context) ([]Channel, error)
}

// Store combines every persisted record type with transactions.
type Store interface {
	InstanceStore
	AgentStore
	ChannelStore
	RunStore

	// RunInTransaction executes fn inside a transaction. If fn returns
	// nil the transaction commits, otherwise it rolls back.
	RunInTransaction(ctx context.Context, fn func(Store) error) error
	Close() error
}

// Fabric bundles the collaborators provisioning runs against.
type Fabric struct {
	Tree    ConfigTree
	Agents  AgentRegistry
	Network NetworkOperations
	History HistoryReplayer
	Runs    RunStore
}
