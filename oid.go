package nsprov

import (
	"fmt"
	"strings"
)

// Configuration tree object identifiers are slash-separated paths of
// "subid:instance" segments, for example
// /agent:Agt_A/interface:eth1/net_addr:10.0.0.2. A trailing colon with
// no instance names a singleton node.

// RootOID names the whole tree.
const RootOID = "/:"

// AgentOID returns the subtree of agent.
func AgentOID(agent string) string {
	return "/agent:" + agent
}

// InterfaceOID returns the node for ifname on agent.
func InterfaceOID(agent, ifname string) string {
	return fmt.Sprintf("/agent:%s/interface:%s", agent, ifname)
}

// InterfaceStatusOID returns the administrative status node of ifname.
func InterfaceStatusOID(agent, ifname string) string {
	return InterfaceOID(agent, ifname) + "/status:"
}

// NetAddrOID returns the node for addr on ifname.
func NetAddrOID(agent, ifname, addr string) string {
	return InterfaceOID(agent, ifname) + "/net_addr:" + addr
}

// NetAddrPattern matches every address on ifname.
func NetAddrPattern(agent, ifname string) string {
	return NetAddrOID(agent, ifname, "*")
}

// RPCProviderOID returns the RPC provider node of agent.
func RPCProviderOID(agent string) string {
	return AgentOID(agent) + "/rpcprovider:"
}

// DefaultRouteIfOID returns the node holding agent's IPv4 default-route
// interface.
func DefaultRouteIfOID(agent string) string {
	return AgentOID(agent) + "/ip4_rt_default_if:"
}

// RouteOID returns the node for a route on agent. The prefix separator
// is '|' since '/' delimits segments.
func RouteOID(agent string, r LocalRoute) string {
	return fmt.Sprintf("%s/route:%s|%d", AgentOID(agent), r.Addr, r.Prefix)
}

// InstanceName returns the instance part of the last segment of oid.
func InstanceName(oid string) string {
	seg := oid
	if i := strings.LastIndexByte(oid, '/'); i >= 0 {
		seg = oid[i+1:]
	}
	if i := strings.IndexByte(seg, ':'); i >= 0 {
		return seg[i+1:]
	}
	return ""
}

// AgentOf returns the agent an OID belongs to, or "" if it is not
// inside an agent subtree.
func AgentOf(oid string) string {
	rest, ok := strings.CutPrefix(oid, "/agent:")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// IsRoot reports whether oid names the whole tree.
func IsRoot(oid string) bool {
	return oid == "/" || oid == RootOID || oid == ""
}

// WithinSubtree reports whether oid is root itself or a descendant of
// it.
func WithinSubtree(oid, root string) bool {
	if IsRoot(root) {
		return true
	}
	root = strings.TrimSuffix(root, "/")
	return oid == root || strings.HasPrefix(oid, root+"/")
}
