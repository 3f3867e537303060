package nsprov

import "fmt"

// ErrMissingConfig is returned when a required named value is absent.
type ErrMissingConfig struct {
	Key string
}

func (e ErrMissingConfig) Error() string {
	return fmt.Sprintf("missing required configuration value %s", e.Key)
}

// ErrInvalidFormat is returned when a named value or derived string
// cannot be parsed.
type ErrInvalidFormat struct {
	What  string
	Value string
	Err   error
}

func (e ErrInvalidFormat) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.What, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.What, e.Value)
}

func (e ErrInvalidFormat) Unwrap() error { return e.Err }

// ErrNotFound is returned when an interface, address or agent lookup
// yields nothing.
type ErrNotFound struct {
	What string
	Name string
	Err  error
}

func (e ErrNotFound) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s not found: %v", e.What, e.Name, e.Err)
	}
	return fmt.Sprintf("%s %s not found", e.What, e.Name)
}

func (e ErrNotFound) Unwrap() error { return e.Err }

// ErrBufferTooSmall is returned when a name exceeds the fixed capacity
// of the container it must fit into.
type ErrBufferTooSmall struct {
	Name     string
	Capacity int
}

func (e ErrBufferTooSmall) Error() string {
	return fmt.Sprintf("name %q is %d bytes, capacity is %d", e.Name, len(e.Name), e.Capacity)
}

// ErrNetworkProvisioning is returned when namespace or link creation or
// destruction fails.
type ErrNetworkProvisioning struct {
	Op   string
	Name string
	Err  error
}

func (e ErrNetworkProvisioning) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e ErrNetworkProvisioning) Unwrap() error { return e.Err }

// ErrAgentRegistration is returned when adding, removing or binding a
// control agent fails.
type ErrAgentRegistration struct {
	Op    string
	Agent string
	Err   error
}

func (e ErrAgentRegistration) Error() string {
	return fmt.Sprintf("%s agent %s: %v", e.Op, e.Agent, e.Err)
}

func (e ErrAgentRegistration) Unwrap() error { return e.Err }

// ErrConfigSync is returned when synchronizing or updating the
// configuration tree fails.
type ErrConfigSync struct {
	OID string
	Err error
}

func (e ErrConfigSync) Error() string {
	return fmt.Sprintf("configuration tree %s: %v", e.OID, e.Err)
}

func (e ErrConfigSync) Unwrap() error { return e.Err }

// ErrHistoryReplay is returned when replaying a configuration history
// fails.
type ErrHistoryReplay struct {
	Path   string
	Target string
	Err    error
}

func (e ErrHistoryReplay) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("replay %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("replay %s against %s: %v", e.Path, e.Target, e.Err)
}

func (e ErrHistoryReplay) Unwrap() error { return e.Err }
