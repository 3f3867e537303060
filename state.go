package nsprov

import "net/netip"

// Instance is one node of the configuration tree.
type Instance struct {
	OID   string
	Value string
	// Volatile instances mirror live state and are rebuilt on every
	// synchronization; the rest persist until deleted.
	Volatile bool
}

// LinkState is the live state of one interface.
type LinkState struct {
	Name  string
	Index int
	Up    bool
	Addrs []netip.Prefix
}

// AgentState is a snapshot of the network state an agent controls.
type AgentState struct {
	DefaultRouteIf string
	Links          []LinkState
	Routes         []Route
}
