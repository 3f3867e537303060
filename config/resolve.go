package config

import (
	"strconv"

	"github.com/frobware/go-nsprov"
)

// Resolver turns named values into provisioning configuration.
type Resolver struct {
	Values Values
	Keys   Keys
	// Mode, when non-empty, overrides the mode named value.
	Mode nsprov.ConnMode
}

// NewResolver returns a Resolver over values using keys.
func NewResolver(values Values, keys Keys) *Resolver {
	return &Resolver{Values: values, Keys: keys}
}

func (r *Resolver) lookup(key string) nsprov.Setting {
	if v, ok := r.Values.Lookup(key); ok {
		return nsprov.SetTo(v)
	}
	return nsprov.Unset()
}

// Enabled reports whether namespace provisioning is switched on. Only
// the exact value "true" enables it.
func (r *Resolver) Enabled() bool {
	return r.lookup(r.Keys.Enable).Value() == "true"
}

// mode returns the override, the mode named value, or veth.
func (r *Resolver) mode() (nsprov.ConnMode, error) {
	if r.Mode != "" {
		return r.Mode, nil
	}
	s, ok := r.lookup(r.Keys.Mode).Get()
	if !ok || s == "" {
		return nsprov.ConnVeth, nil
	}
	m, ok := nsprov.ParseConnMode(s)
	if !ok {
		return "", nsprov.ErrInvalidFormat{What: "connection mode", Value: s}
	}
	return m, nil
}

// required returns the value of key or ErrMissingConfig.
func (r *Resolver) required(key string) (string, error) {
	v, ok := r.Values.Lookup(key)
	if !ok {
		return "", nsprov.ErrMissingConfig{Key: key}
	}
	return v, nil
}

// requiredValue binds a required key to the field it populates.
type requiredValue struct {
	key string
	dst *string
}

// Resolve builds the provisioning configuration. Required values are
// checked in a fixed order and the first absent one is reported.
func (r *Resolver) Resolve() (nsprov.ProvisioningConfig, error) {
	var cfg nsprov.ProvisioningConfig

	mode, err := r.mode()
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode

	required := []requiredValue{
		{r.Keys.Agent, &cfg.SourceAgent},
		{r.Keys.RPCProvider, &cfg.RPCProvider},
		{r.Keys.AgentType, &cfg.AgentType},
		{r.Keys.Host, &cfg.Host},
		{r.Keys.NSAgent, &cfg.NSAgent},
		{r.Keys.Namespace, &cfg.Namespace},
		{r.Keys.CfgHistory, &cfg.ConfigHistory},
	}
	if mode == nsprov.ConnMacvlan {
		required = append(required, requiredValue{r.Keys.Macvlan, &cfg.Macvlan})
	} else {
		required = append(required,
			requiredValue{r.Keys.Veth1, &cfg.Veth1},
			requiredValue{r.Keys.Veth2, &cfg.Veth2})
	}
	for _, req := range required {
		v, err := r.required(req.key)
		if err != nil {
			return nsprov.ProvisioningConfig{}, err
		}
		*req.dst = v
	}

	portStr, err := r.required(r.Keys.Port)
	if err != nil {
		return nsprov.ProvisioningConfig{}, err
	}
	port, err := ParsePort(portStr)
	if err != nil {
		return nsprov.ProvisioningConfig{}, err
	}
	cfg.Port = port

	cfg.Preload = r.lookup(r.Keys.Preload)
	cfg.ControlIf = r.lookup(r.Keys.ControlIf)
	cfg.MacvlanAddr = r.lookup(r.Keys.MacvlanAddr)
	cfg.LocalNetwork = r.lookup(r.Keys.LocalNetwork)
	cfg.IfsHistory = r.lookup(r.Keys.IfsHistory)

	for i := 0; i < nsprov.NumRoles; i++ {
		cfg.Current[i] = r.lookup(r.Keys.Roles[i])
		cfg.Original[i] = r.lookup(r.Keys.OrigRoles[i])
	}

	return cfg, nil
}

// ResolveTeardown snapshots the values teardown consults. It never
// fails; absent values are reported as unset settings.
func (r *Resolver) ResolveTeardown() nsprov.TeardownConfig {
	return nsprov.TeardownConfig{
		SourceAgent: r.lookup(r.Keys.Agent),
		NSAgent:     r.lookup(r.Keys.NSAgent),
		Namespace:   r.lookup(r.Keys.Namespace),
		Macvlan:     r.lookup(r.Keys.Macvlan),
		ControlIf:   r.lookup(r.Keys.ControlIf),
	}
}

// ResolveControlled returns the values needed to tell which agent owns
// the test interfaces. The namespaced agent and original primary name
// are only required when provisioning is enabled.
func (r *Resolver) ResolveControlled() (nsprov.ControlledConfig, error) {
	var cc nsprov.ControlledConfig
	var err error
	if cc.SourceAgent, err = r.required(r.Keys.Agent); err != nil {
		return cc, err
	}
	if !r.Enabled() {
		return cc, nil
	}
	if cc.OriginalPrimary, err = r.required(r.Keys.OrigRoles[nsprov.RolePrimary]); err != nil {
		return cc, err
	}
	if cc.NSAgent, err = r.required(r.Keys.NSAgent); err != nil {
		return cc, err
	}
	return cc, nil
}

// ParsePort parses a control port in the range 1..65535.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		if err == nil {
			err = strconv.ErrRange
		}
		return 0, nsprov.ErrInvalidFormat{What: "port", Value: s, Err: err}
	}
	return uint16(n), nil
}
