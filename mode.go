// Package nsprov holds the domain types shared by the namespace
// provisioner: connection modes, interface roles, bounded interface
// names, the resolved provisioning configuration and the run record
// carried from provisioning to teardown.
package nsprov

// ConnMode selects how the test namespace is bridged to the main
// namespace.
type ConnMode string

const (
	ConnVeth    ConnMode = "veth"
	ConnMacvlan ConnMode = "macvlan"
)

// ParseConnMode parses a string into a ConnMode.
// Returns the ConnMode and true if valid, or empty string and false if invalid.
func ParseConnMode(s string) (ConnMode, bool) {
	switch s {
	case "veth":
		return ConnVeth, true
	case "macvlan":
		return ConnMacvlan, true
	default:
		return "", false
	}
}

func (m ConnMode) String() string { return string(m) }
