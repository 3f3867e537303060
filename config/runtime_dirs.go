package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDirs holds all runtime paths for nsprov.
//
//	{base}/              - runtime root
//	{base}/db/           - database directory
//	{base}/agents/       - control agent logs
//	{base}/.lock         - global writer lock
//
// RuntimeDirs is immutable after construction. Use NewRuntimeDirs to create.
// Fields are unexported to prevent construction of invalid instances.
type RuntimeDirs struct {
	base   string
	db     string
	agents string
	lock   string
}

// DefaultRuntimeDirs returns RuntimeDirs with production defaults.
func DefaultRuntimeDirs() RuntimeDirs {
	dirs, err := NewRuntimeDirs("/run/nsprov")
	if err != nil {
		panic(fmt.Sprintf("DefaultRuntimeDirs: %v", err))
	}
	return dirs
}

// NewRuntimeDirs creates RuntimeDirs rooted at the given base path.
// Returns an error if base is empty or not an absolute path.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	if base == "" {
		return RuntimeDirs{}, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}

	return RuntimeDirs{
		base:   base,
		db:     filepath.Join(base, "db"),
		agents: filepath.Join(base, "agents"),
		lock:   filepath.Join(base, ".lock"),
	}, nil
}

// Base returns the runtime root path (e.g., /run/nsprov).
func (d RuntimeDirs) Base() string { return d.base }

// DB returns the database directory path.
func (d RuntimeDirs) DB() string { return d.db }

// Agents returns the agent log directory path.
func (d RuntimeDirs) Agents() string { return d.agents }

// Lock returns the global writer lock file path.
func (d RuntimeDirs) Lock() string { return d.lock }

// DBPath returns the full path to the SQLite database file.
func (d RuntimeDirs) DBPath() string {
	return filepath.Join(d.db, "store.db")
}

// AgentLogPath returns the log file of the named agent.
func (d RuntimeDirs) AgentLogPath(agent string) string {
	return filepath.Join(d.agents, agent+".log")
}

// EnsureDirectories creates the runtime directories. MkdirAll is
// idempotent, so this is safe to call on every invocation.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.db, d.agents} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
