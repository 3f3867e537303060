// Package hostnet implements the namespace network operations on the
// local host with netlink. Agents are located through the agent store:
// an agent registered without a namespace lives in the namespace nsprov
// was started in.
package hostnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/coreos/go-iptables/iptables"
	vnetns "github.com/vishvananda/netns"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
	"github.com/frobware/go-nsprov/netns"
)

// Store is the subset of the state store the fabric needs.
type Store interface {
	interpreter.ChannelStore
	GetAgent(ctx context.Context, name string) (nsprov.Agent, error)
}

// Firewall is the subset of *iptables.IPTables used for port
// forwarding.
type Firewall interface {
	AppendUnique(table, chain string, rulespec ...string) error
	DeleteIfExists(table, chain string, rulespec ...string) error
}

// Options configures a Fabric.
type Options struct {
	// Pool is the IPv4 range veth channel subnets are allocated from.
	Pool netip.Prefix
	// ChannelBits is the prefix length of each channel subnet.
	ChannelBits int
	// NewFirewall returns the firewall of the calling thread's
	// namespace. Defaults to iptables for IPv4.
	NewFirewall func() (Firewall, error)
}

// Fabric implements interpreter.NetworkOperations on the local host.
type Fabric struct {
	store       Store
	pool        netip.Prefix
	bits        int
	newFirewall func() (Firewall, error)
	hostNS      vnetns.NsHandle
	logger      *slog.Logger
}

var _ interpreter.NetworkOperations = (*Fabric)(nil)

// New returns a Fabric. The calling thread's namespace becomes the
// namespace of agents registered without one.
func New(s Store, opts Options, logger *slog.Logger) (*Fabric, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NewFirewall == nil {
		opts.NewFirewall = func() (Firewall, error) {
			return iptables.NewWithProtocol(iptables.ProtocolIPv4)
		}
	}
	host, err := vnetns.Get()
	if err != nil {
		return nil, fmt.Errorf("get host netns: %w", err)
	}
	return &Fabric{
		store:       s,
		pool:        opts.Pool,
		bits:        opts.ChannelBits,
		newFirewall: opts.NewFirewall,
		hostNS:      host,
		logger:      logger.With("component", "hostnet"),
	}, nil
}

// Close releases the host namespace handle.
func (f *Fabric) Close() error {
	return f.hostNS.Close()
}

// namespaceOf returns the namespace name agent lives in; "" is the host
// namespace.
func (f *Fabric) namespaceOf(ctx context.Context, agent string) (string, error) {
	a, err := f.store.GetAgent(ctx, agent)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nsprov.ErrNotFound{What: "agent", Name: agent, Err: err}
		}
		return "", err
	}
	return a.Namespace, nil
}

// inAgent runs fn inside the namespace of agent.
func (f *Fabric) inAgent(ctx context.Context, agent string, fn func() error) error {
	ns, err := f.namespaceOf(ctx, agent)
	if err != nil {
		return err
	}
	return netns.Run(netns.Path(ns), fn)
}

// withHandle calls fn with a handle on the namespace named ns; ""
// is the host namespace.
func (f *Fabric) withHandle(ns string, fn func(vnetns.NsHandle) error) error {
	if ns == "" {
		return fn(f.hostNS)
	}
	h, err := vnetns.GetFromName(ns)
	if err != nil {
		return fmt.Errorf("open netns %s: %w", ns, err)
	}
	defer h.Close()
	return fn(h)
}

func (f *Fabric) createNamespace(ctx context.Context, name string) error {
	if err := netns.Create(name); err != nil {
		return err
	}
	if nsid, err := netns.GetNsid(netns.Path(name)); err == nil {
		f.logger.DebugContext(ctx, "created namespace", "netns", name, "nsid", nsid)
	}
	return nil
}
