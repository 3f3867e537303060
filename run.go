package nsprov

import (
	"time"

	"github.com/google/uuid"
)

// Stage records how far a provisioning run progressed.
type Stage string

const (
	StageNone       Stage = "none"
	StageResolved   Stage = "resolved"
	StageNamespaced Stage = "namespaced"
	StageRegistered Stage = "registered"
	StageMigrated   Stage = "migrated"
	StageRouted     Stage = "routed"
	StageReplayed   Stage = "replayed"
	StageActive     Stage = "active"
)

// Run is the persisted record of a provisioning run. Teardown reads the
// connection mode from it instead of inferring one from the named
// values.
type Run struct {
	ID            uuid.UUID
	SourceAgent   string
	NSAgent       string
	Namespace     string
	Mode          ConnMode
	ControlIf     string
	OriginalNames bool
	Stage         Stage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRun returns a run record for cfg with a fresh ID.
func NewRun(cfg ProvisioningConfig, now time.Time) Run {
	return Run{
		ID:            uuid.New(),
		SourceAgent:   cfg.SourceAgent,
		NSAgent:       cfg.NSAgent,
		Namespace:     cfg.Namespace,
		Mode:          cfg.Mode,
		OriginalNames: cfg.UseOriginalNames(),
		Stage:         StageResolved,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
