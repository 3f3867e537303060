package nsprov

import (
	"net/netip"
	"time"
)

// AgentSpec describes a control agent to register.
type AgentSpec struct {
	Name      string
	Type      string
	Host      string
	Namespace string
	Addr      netip.Addr
	Port      uint16
	Preload   Setting
}

// Agent is a registered control agent.
type Agent struct {
	AgentSpec
	// PID is the agent process, zero for agents that run in-process.
	PID int
	// Local marks agents living in the main namespace that are known to
	// the registry but not launched by it.
	Local     bool
	CreatedAt time.Time
}

// Binding associates an agent with the host and namespace it serves.
type Binding struct {
	Agent     string
	Host      string
	Namespace string
}
