// Package cfgtree implements the configuration tree over the state
// store. Volatile instances mirror the live network state of each
// registered agent and are rebuilt by Synchronize; the rest persist
// until deleted. Writes to nodes that mirror live state are committed
// to the network first and then read back.
package cfgtree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"path"
	"strconv"
	"strings"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/compute"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// Live reads and changes the network state agents control.
type Live interface {
	Snapshot(ctx context.Context, agent string) (nsprov.AgentState, error)
	SetLinkUp(ctx context.Context, agent, ifname string, up bool) error
	AddAddress(ctx context.Context, agent, ifname string, addr netip.Prefix) error
	DeleteAddress(ctx context.Context, agent, ifname string, addr netip.Prefix) error
	AddRoute(ctx context.Context, agent string, r nsprov.Route) error
	DeleteRoute(ctx context.Context, agent string, r nsprov.Route) error
}

// Tree implements interpreter.ConfigEditor.
type Tree struct {
	store  interpreter.Store
	live   Live
	logger *slog.Logger
}

var _ interpreter.ConfigEditor = (*Tree)(nil)

// New returns a Tree backed by s and live.
func New(s interpreter.Store, live Live, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{store: s, live: live, logger: logger.With("component", "cfgtree")}
}

// Get returns the value at oid.
func (t *Tree) Get(ctx context.Context, oid string) (string, error) {
	inst, err := t.store.GetInstance(ctx, oid)
	if err != nil {
		return "", err
	}
	return inst.Value, nil
}

// Find returns the OIDs matching pattern in insertion order. Each
// segment of pattern is matched with path.Match, so "net_addr:*"
// matches every address.
func (t *Tree) Find(ctx context.Context, pattern string) ([]string, error) {
	insts, err := t.store.ListInstances(ctx, literalPrefix(pattern))
	if err != nil {
		return nil, err
	}
	want := strings.Split(pattern, "/")
	var out []string
	for _, inst := range insts {
		ok, err := matchSegments(want, strings.Split(inst.OID, "/"))
		if err != nil {
			return nil, nsprov.ErrInvalidFormat{What: "pattern", Value: pattern, Err: err}
		}
		if ok {
			out = append(out, inst.OID)
		}
	}
	return out, nil
}

// Set stores value at oid. Setting an interface status brings the link
// up or down.
func (t *Tree) Set(ctx context.Context, oid, value string) error {
	if agent, ifname, ok := statusNode(oid); ok {
		up, err := compute.StatusUp(value)
		if err != nil {
			return err
		}
		if err := t.live.SetLinkUp(ctx, agent, ifname, up); err != nil {
			return err
		}
		return t.Synchronize(ctx, nsprov.AgentOID(agent))
	}

	if err := t.checkWritable(ctx, oid); err != nil {
		return err
	}
	t.logger.DebugContext(ctx, "set", "oid", oid, "value", value)
	return t.store.PutInstance(ctx, nsprov.Instance{OID: oid, Value: value})
}

// Add creates the instance at oid. Adding an address or a route
// installs it on the live interface.
func (t *Tree) Add(ctx context.Context, oid, value string) error {
	if agent, ifname, addr, ok := netAddrNode(oid); ok {
		p, err := addrPrefix(addr, value)
		if err != nil {
			return err
		}
		if err := t.live.AddAddress(ctx, agent, ifname, p); err != nil {
			return err
		}
		return t.Synchronize(ctx, nsprov.AgentOID(agent))
	}
	if agent, ok := routeNode(oid); ok {
		r, err := parseRoute(nsprov.InstanceName(oid), value)
		if err != nil {
			return err
		}
		if err := t.live.AddRoute(ctx, agent, r); err != nil {
			return err
		}
		return t.Synchronize(ctx, nsprov.AgentOID(agent))
	}

	if _, err := t.store.GetInstance(ctx, oid); err == nil {
		return fmt.Errorf("add %s: instance already exists", oid)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	t.logger.DebugContext(ctx, "add", "oid", oid, "value", value)
	return t.store.PutInstance(ctx, nsprov.Instance{OID: oid, Value: value})
}

// Delete removes the instance at oid and its descendants. Deleting an
// address or a route removes it from the live interface.
func (t *Tree) Delete(ctx context.Context, oid string) error {
	if agent, ifname, addr, ok := netAddrNode(oid); ok {
		inst, err := t.store.GetInstance(ctx, oid)
		if err != nil {
			return err
		}
		p, err := addrPrefix(addr, inst.Value)
		if err != nil {
			return err
		}
		if err := t.live.DeleteAddress(ctx, agent, ifname, p); err != nil {
			return err
		}
		return t.Synchronize(ctx, nsprov.AgentOID(agent))
	}
	if agent, ok := routeNode(oid); ok {
		inst, err := t.store.GetInstance(ctx, oid)
		if err != nil {
			return err
		}
		r, err := parseRoute(nsprov.InstanceName(oid), inst.Value)
		if err != nil {
			return err
		}
		if err := t.live.DeleteRoute(ctx, agent, r); err != nil {
			return err
		}
		return t.Synchronize(ctx, nsprov.AgentOID(agent))
	}

	if err := t.checkWritable(ctx, oid); err != nil {
		return err
	}
	if _, err := t.store.GetInstance(ctx, oid); err != nil {
		return err
	}
	t.logger.DebugContext(ctx, "delete", "oid", oid)
	return t.store.DeleteSubtree(ctx, oid)
}

// checkWritable rejects writes to volatile instances, which would be
// lost on the next synchronization.
func (t *Tree) checkWritable(ctx context.Context, oid string) error {
	inst, err := t.store.GetInstance(ctx, oid)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if inst.Volatile {
		return fmt.Errorf("%s mirrors live state and is read-only", oid)
	}
	return nil
}

// literalPrefix returns the longest leading run of pattern segments
// without wildcards, or the root when the first segment has one.
func literalPrefix(pattern string) string {
	segs := strings.Split(pattern, "/")
	n := 0
	for n < len(segs) && !strings.ContainsAny(segs[n], "*?[") {
		n++
	}
	prefix := strings.Join(segs[:n], "/")
	if prefix == "" {
		return nsprov.RootOID
	}
	return prefix
}

func matchSegments(pattern, oid []string) (bool, error) {
	if len(pattern) != len(oid) {
		return false, nil
	}
	for i := range pattern {
		ok, err := path.Match(pattern[i], oid[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// statusNode matches /agent:A/interface:I/status:.
func statusNode(oid string) (agent, ifname string, ok bool) {
	parent, ok := strings.CutSuffix(oid, "/status:")
	if !ok {
		return "", "", false
	}
	agent, ifname, ok = interfaceNode(parent)
	return agent, ifname, ok
}

// netAddrNode matches /agent:A/interface:I/net_addr:X.
func netAddrNode(oid string) (agent, ifname, addr string, ok bool) {
	i := strings.LastIndex(oid, "/net_addr:")
	if i < 0 {
		return "", "", "", false
	}
	agent, ifname, ok = interfaceNode(oid[:i])
	addr = oid[i+len("/net_addr:"):]
	return agent, ifname, addr, ok && addr != "" && !strings.Contains(addr, "/")
}

// routeNode matches /agent:A/route:X.
func routeNode(oid string) (agent string, ok bool) {
	agent = nsprov.AgentOf(oid)
	if agent == "" {
		return "", false
	}
	rest := strings.TrimPrefix(oid, nsprov.AgentOID(agent))
	return agent, strings.HasPrefix(rest, "/route:") && !strings.Contains(rest[1:], "/")
}

// interfaceNode matches /agent:A/interface:I.
func interfaceNode(oid string) (agent, ifname string, ok bool) {
	agent = nsprov.AgentOf(oid)
	if agent == "" {
		return "", "", false
	}
	ifname, ok = strings.CutPrefix(oid, nsprov.AgentOID(agent)+"/interface:")
	return agent, ifname, ok && ifname != "" && !strings.Contains(ifname, "/")
}

// addrPrefix builds a prefix from a net_addr instance name and its
// value, the prefix length. An empty value means a host address.
func addrPrefix(addr, value string) (netip.Prefix, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Prefix{}, nsprov.ErrInvalidFormat{What: "address", Value: addr, Err: err}
	}
	bits := a.BitLen()
	if value != "" {
		bits, err = strconv.Atoi(value)
		if err != nil || bits < 0 || bits > a.BitLen() {
			return netip.Prefix{}, nsprov.ErrInvalidFormat{What: "prefix length", Value: value, Err: err}
		}
	}
	return netip.PrefixFrom(a, bits), nil
}

// parseRoute parses a route instance name "ADDR|PREFIX" and a value
// of the form "via GATEWAY dev DEVICE".
func parseRoute(name, value string) (nsprov.Route, error) {
	addr, bits, ok := strings.Cut(name, "|")
	if !ok {
		return nsprov.Route{}, nsprov.ErrInvalidFormat{What: "route", Value: name}
	}
	lr, err := compute.ParseLocalRoute(addr + "/" + bits)
	if err != nil {
		return nsprov.Route{}, err
	}
	r := nsprov.Route{Dst: lr.Dst()}

	fields := strings.Fields(value)
	for i := 0; i+1 < len(fields); i += 2 {
		switch fields[i] {
		case "via":
			gw, err := netip.ParseAddr(fields[i+1])
			if err != nil {
				return nsprov.Route{}, nsprov.ErrInvalidFormat{What: "route gateway", Value: fields[i+1], Err: err}
			}
			r.Gateway = gw
		case "dev":
			r.Dev = fields[i+1]
		default:
			return nsprov.Route{}, nsprov.ErrInvalidFormat{What: "route", Value: value}
		}
	}
	if len(fields)%2 != 0 || r.Dev == "" {
		return nsprov.Route{}, nsprov.ErrInvalidFormat{What: "route", Value: value}
	}
	return r, nil
}
