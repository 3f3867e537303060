package nsprov

// ProvisioningConfig is the resolved configuration for one provisioning
// run. It is built once and passed by value; downstream steps never
// consult the named values again.
type ProvisioningConfig struct {
	Mode ConnMode

	// SourceAgent is the agent that owns the test interfaces before
	// migration; AgentType is its type, reused for the new agent.
	SourceAgent string
	AgentType   string
	Host        string

	// NSAgent is the control agent created inside the namespace.
	NSAgent   string
	Namespace string

	// Macvlan is set in macvlan mode; Veth1 (source side) and Veth2
	// (namespace side) in veth mode.
	Macvlan string
	Veth1   string
	Veth2   string

	Port        uint16
	RPCProvider string

	Preload       Setting
	ControlIf     Setting
	MacvlanAddr   Setting
	LocalNetwork  Setting
	IfsHistory    Setting
	ConfigHistory string

	// Current and Original hold the per-role interface names, indexed
	// by InterfaceRole.
	Current  [NumRoles]Setting
	Original [NumRoles]Setting
}

// UseOriginalNames reports whether interfaces are migrated under their
// original names. That is the case whenever an interface history is
// configured, since replaying it restores the current names.
func (c ProvisioningConfig) UseOriginalNames() bool {
	return c.IfsHistory.IsSet()
}

// RoleName returns the configured name for role from the original or
// current name set.
func (c ProvisioningConfig) RoleName(role InterfaceRole, original bool) Setting {
	if role < 0 || int(role) >= NumRoles {
		return Unset()
	}
	if original {
		return c.Original[role]
	}
	return c.Current[role]
}

// TeardownConfig is the subset of named values teardown consults. Every
// field is optional; teardown decides what absence means.
type TeardownConfig struct {
	SourceAgent Setting
	NSAgent     Setting
	Namespace   Setting
	Macvlan     Setting
	ControlIf   Setting
}

// ControlledConfig holds the values needed to work out which agent
// currently controls the test interfaces.
type ControlledConfig struct {
	SourceAgent     string
	NSAgent         string
	OriginalPrimary string
}
