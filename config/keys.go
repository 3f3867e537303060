package config

import (
	"fmt"

	"github.com/frobware/go-nsprov"
)

// Keys names the values the resolver reads. Defaults come from the
// [keys] table of default.toml.
type Keys struct {
	Enable       string   `toml:"enable"`
	Mode         string   `toml:"mode"`
	Agent        string   `toml:"agent"`
	AgentType    string   `toml:"agent_type"`
	Host         string   `toml:"host"`
	NSAgent      string   `toml:"ns_agent"`
	Namespace    string   `toml:"namespace"`
	RPCProvider  string   `toml:"rpcprovider"`
	CfgHistory   string   `toml:"cfg_history"`
	IfsHistory   string   `toml:"ifs_history"`
	Macvlan      string   `toml:"macvlan"`
	MacvlanAddr  string   `toml:"macvlan_addr"`
	Veth1        string   `toml:"veth1"`
	Veth2        string   `toml:"veth2"`
	Port         string   `toml:"port"`
	ControlIf    string   `toml:"ctl_if"`
	Preload      string   `toml:"preload"`
	LocalNetwork string   `toml:"local_network"`
	Roles        []string `toml:"roles"`
	OrigRoles    []string `toml:"orig_roles"`
}

// DefaultKeys returns the key names from the embedded defaults.
func DefaultKeys() Keys {
	return DefaultConfig().Keys
}

// Validate checks that every key is named and that both role tables
// cover every interface role.
func (k Keys) Validate() error {
	named := map[string]string{
		"enable":        k.Enable,
		"mode":          k.Mode,
		"agent":         k.Agent,
		"agent_type":    k.AgentType,
		"host":          k.Host,
		"ns_agent":      k.NSAgent,
		"namespace":     k.Namespace,
		"rpcprovider":   k.RPCProvider,
		"cfg_history":   k.CfgHistory,
		"ifs_history":   k.IfsHistory,
		"macvlan":       k.Macvlan,
		"macvlan_addr":  k.MacvlanAddr,
		"veth1":         k.Veth1,
		"veth2":         k.Veth2,
		"port":          k.Port,
		"ctl_if":        k.ControlIf,
		"preload":       k.Preload,
		"local_network": k.LocalNetwork,
	}
	for field, name := range named {
		if name == "" {
			return fmt.Errorf("keys.%s: empty key name", field)
		}
	}
	if len(k.Roles) != nsprov.NumRoles {
		return fmt.Errorf("keys.roles: want %d names, got %d", nsprov.NumRoles, len(k.Roles))
	}
	if len(k.OrigRoles) != nsprov.NumRoles {
		return fmt.Errorf("keys.orig_roles: want %d names, got %d", nsprov.NumRoles, len(k.OrigRoles))
	}
	return nil
}
