package cli

import (
	"context"
	"net/netip"
	"time"

	"github.com/frobware/go-nsprov"
)

// StatusCmd shows provisioning runs and registered agents.
type StatusCmd struct {
	OutputFlags
}

// RunStatus is one provisioning run as reported by status.
type RunStatus struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	Namespace   string    `json:"namespace"`
	SourceAgent string    `json:"source_agent"`
	NSAgent     string    `json:"ns_agent"`
	ControlIf   string    `json:"control_if,omitempty"`
	Stage       string    `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AgentStatus is one registered agent as reported by status.
type AgentStatus struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	Namespace string `json:"namespace,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PID       int    `json:"pid,omitempty"`
	Local     bool   `json:"local"`
}

// Status is the status command's report.
type Status struct {
	Runs   []RunStatus   `json:"runs"`
	Agents []AgentStatus `json:"agents"`
}

// NewStatus builds a report from stored records.
func NewStatus(runs []nsprov.Run, agents []nsprov.Agent) Status {
	s := Status{
		Runs:   make([]RunStatus, 0, len(runs)),
		Agents: make([]AgentStatus, 0, len(agents)),
	}
	for _, r := range runs {
		s.Runs = append(s.Runs, RunStatus{
			ID:          r.ID.String(),
			Mode:        r.Mode.String(),
			Namespace:   r.Namespace,
			SourceAgent: r.SourceAgent,
			NSAgent:     r.NSAgent,
			ControlIf:   r.ControlIf,
			Stage:       string(r.Stage),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	for _, a := range agents {
		as := AgentStatus{
			Name:      a.Name,
			Type:      a.Type,
			Host:      a.Host,
			Namespace: a.Namespace,
			PID:       a.PID,
			Local:     a.Local,
		}
		if a.Addr.IsValid() {
			as.Endpoint = netip.AddrPortFrom(a.Addr, a.Port).String()
		}
		s.Agents = append(s.Agents, as)
	}
	return s
}

// Run executes the status command.
func (c *StatusCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.NewCLIRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	runs, err := rt.Manager.Status(ctx)
	if err != nil {
		return err
	}
	agents, err := rt.Store.ListAgents(ctx)
	if err != nil {
		return err
	}

	output, err := FormatStatus(NewStatus(runs, agents), &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(output)
}
