package nsprov

import (
	"fmt"
	"net/netip"
)

// BridgeAddress is how the new agent is reached once the namespace and
// its bridge exist.
type BridgeAddress struct {
	// Addr is the namespace-side address, with its prefix length.
	Addr netip.Prefix
	// Port is the control port the agent listens on.
	Port uint16
}

// AddrPort returns the agent endpoint.
func (b BridgeAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(b.Addr.Addr(), b.Port)
}

// LocalRoute is a local network that must stay reachable from inside
// the namespace.
type LocalRoute struct {
	Addr   netip.Addr
	Prefix int
}

// Dst returns the route destination as a masked prefix.
func (r LocalRoute) Dst() netip.Prefix {
	return netip.PrefixFrom(r.Addr, r.Prefix).Masked()
}

func (r LocalRoute) String() string {
	return fmt.Sprintf("%s/%d", r.Addr, r.Prefix)
}

// Route is a unicast route installed on an agent.
type Route struct {
	Dst     netip.Prefix
	Gateway netip.Addr
	Dev     string
}

func (r Route) String() string {
	return fmt.Sprintf("%s via %s dev %s", r.Dst, r.Gateway, r.Dev)
}

// MacvlanChannel describes a namespace bridged by a macvlan interface
// layered on the source agent's control interface.
type MacvlanChannel struct {
	SourceAgent string
	Namespace   string
	ControlIf   IfName
	Macvlan     string
	// Addr is the address to assign inside the namespace. When unset
	// the fabric chooses one.
	Addr Setting
}

// VethChannel describes a namespace bridged by a veth pair. Veth1 stays
// with the source agent, Veth2 moves into the namespace and the control
// port is forwarded through the control interface.
type VethChannel struct {
	SourceAgent string
	Namespace   string
	ControlIf   IfName
	Veth1       string
	Veth2       string
	Port        uint16
}
