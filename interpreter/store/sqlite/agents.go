package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// SaveAgent creates or updates an agent registration. CreatedAt is
// preserved on update.
func (s *sqliteStore) SaveAgent(ctx context.Context, a nsprov.Agent) error {
	var addr string
	if a.Addr.IsValid() {
		addr = a.Addr.String()
	}
	var preload sql.NullString
	if v, ok := a.Preload.Get(); ok {
		preload = sql.NullString{String: v, Valid: true}
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	start := time.Now()
	args := []any{a.Name, a.Type, a.Host, a.Namespace, addr, int(a.Port), preload, a.PID, boolToInt(a.Local), createdAt.UTC().Format(timeFormat)}
	res, err := s.stmts.saveAgent.ExecContext(ctx, args...)
	s.logSQL("SaveAgent", start, []any{a.Name}, affected(res), err)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.Name, err)
	}
	return nil
}

// GetAgent returns the registration for name.
func (s *sqliteStore) GetAgent(ctx context.Context, name string) (nsprov.Agent, error) {
	start := time.Now()
	a, err := scanAgent(s.stmts.getAgent.QueryRowContext(ctx, name))
	if errors.Is(err, sql.ErrNoRows) {
		s.logSQL("GetAgent", start, []any{name}, 0, nil)
		return nsprov.Agent{}, fmt.Errorf("agent %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		s.logSQL("GetAgent", start, []any{name}, 0, err)
		return nsprov.Agent{}, fmt.Errorf("get agent %s: %w", name, err)
	}
	s.logSQL("GetAgent", start, []any{name}, 1, nil)
	return a, nil
}

// DeleteAgent removes the registration for name.
func (s *sqliteStore) DeleteAgent(ctx context.Context, name string) error {
	start := time.Now()
	res, err := s.stmts.deleteAgent.ExecContext(ctx, name)
	s.logSQL("DeleteAgent", start, []any{name}, affected(res), err)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", name, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("agent %s: %w", name, store.ErrNotFound)
	}
	return nil
}

// ListAgents returns every registered agent, oldest first.
func (s *sqliteStore) ListAgents(ctx context.Context) ([]nsprov.Agent, error) {
	start := time.Now()
	rows, err := s.stmts.listAgents.QueryContext(ctx)
	if err != nil {
		s.logSQL("ListAgents", start, nil, 0, err)
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	result := make([]nsprov.Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	s.logSQL("ListAgents", start, nil, len(result), nil)
	return result, nil
}

func scanAgent(row rowScanner) (nsprov.Agent, error) {
	var a nsprov.Agent
	var addr, createdAt string
	var port, local int
	var preload sql.NullString
	if err := row.Scan(&a.Name, &a.Type, &a.Host, &a.Namespace, &addr, &port, &preload, &a.PID, &local, &createdAt); err != nil {
		return nsprov.Agent{}, err
	}
	if addr != "" {
		parsed, err := netip.ParseAddr(addr)
		if err != nil {
			return nsprov.Agent{}, fmt.Errorf("agent %s: parse addr %q: %w", a.Name, addr, err)
		}
		a.Addr = parsed
	}
	a.Port = uint16(port)
	if preload.Valid {
		a.Preload = nsprov.SetTo(preload.String)
	}
	a.Local = local != 0
	ts, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nsprov.Agent{}, fmt.Errorf("agent %s: parse created_at: %w", a.Name, err)
	}
	a.CreatedAt = ts
	return a, nil
}

// SaveBinding creates or replaces the namespace-host binding of an agent.
func (s *sqliteStore) SaveBinding(ctx context.Context, b nsprov.Binding) error {
	start := time.Now()
	args := []any{b.Agent, b.Host, b.Namespace}
	res, err := s.stmts.saveBinding.ExecContext(ctx, args...)
	s.logSQL("SaveBinding", start, args, affected(res), err)
	if err != nil {
		return fmt.Errorf("save binding %s: %w", b.Agent, err)
	}
	return nil
}

// GetBinding returns the binding of agent.
func (s *sqliteStore) GetBinding(ctx context.Context, agent string) (nsprov.Binding, error) {
	start := time.Now()
	var b nsprov.Binding
	err := s.stmts.getBinding.QueryRowContext(ctx, agent).Scan(&b.Agent, &b.Host, &b.Namespace)
	if errors.Is(err, sql.ErrNoRows) {
		s.logSQL("GetBinding", start, []any{agent}, 0, nil)
		return nsprov.Binding{}, fmt.Errorf("binding %s: %w", agent, store.ErrNotFound)
	}
	if err != nil {
		s.logSQL("GetBinding", start, []any{agent}, 0, err)
		return nsprov.Binding{}, fmt.Errorf("get binding %s: %w", agent, err)
	}
	s.logSQL("GetBinding", start, []any{agent}, 1, nil)
	return b, nil
}

// DeleteBinding removes the binding of agent.
func (s *sqliteStore) DeleteBinding(ctx context.Context, agent string) error {
	start := time.Now()
	res, err := s.stmts.deleteBinding.ExecContext(ctx, agent)
	s.logSQL("DeleteBinding", start, []any{agent}, affected(res), err)
	if err != nil {
		return fmt.Errorf("delete binding %s: %w", agent, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("binding %s: %w", agent, store.ErrNotFound)
	}
	return nil
}

// CountBindings returns how many agents are bound to namespace.
func (s *sqliteStore) CountBindings(ctx context.Context, namespace string) (int, error) {
	start := time.Now()
	var n int
	err := s.stmts.countBindings.QueryRowContext(ctx, namespace).Scan(&n)
	s.logSQL("CountBindings", start, []any{namespace}, 1, err)
	if err != nil {
		return 0, fmt.Errorf("count bindings %s: %w", namespace, err)
	}
	return n, nil
}
