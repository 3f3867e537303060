package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// SaveRun creates or replaces the run record for run.NSAgent. A new run
// for the same namespaced agent supersedes the previous record.
func (s *sqliteStore) SaveRun(ctx context.Context, run nsprov.Run) error {
	start := time.Now()
	args := []any{
		run.ID.String(), run.NSAgent, run.SourceAgent, run.Namespace,
		string(run.Mode), run.ControlIf, boolToInt(run.OriginalNames), string(run.Stage),
		run.CreatedAt.UTC().Format(timeFormat), run.UpdatedAt.UTC().Format(timeFormat),
	}
	res, err := s.stmts.saveRun.ExecContext(ctx, args...)
	s.logSQL("SaveRun", start, []any{run.ID, run.NSAgent, run.Stage}, affected(res), err)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRunByAgent returns the run that created nsAgent.
func (s *sqliteStore) GetRunByAgent(ctx context.Context, nsAgent string) (nsprov.Run, error) {
	start := time.Now()
	run, err := scanRun(s.stmts.getRunByAgent.QueryRowContext(ctx, nsAgent))
	if errors.Is(err, sql.ErrNoRows) {
		s.logSQL("GetRunByAgent", start, []any{nsAgent}, 0, nil)
		return nsprov.Run{}, fmt.Errorf("run for agent %s: %w", nsAgent, store.ErrNotFound)
	}
	if err != nil {
		s.logSQL("GetRunByAgent", start, []any{nsAgent}, 0, err)
		return nsprov.Run{}, fmt.Errorf("get run for agent %s: %w", nsAgent, err)
	}
	s.logSQL("GetRunByAgent", start, []any{nsAgent}, 1, nil)
	return run, nil
}

// DeleteRun removes the run record with the given ID.
func (s *sqliteStore) DeleteRun(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	res, err := s.stmts.deleteRun.ExecContext(ctx, id.String())
	s.logSQL("DeleteRun", start, []any{id}, affected(res), err)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListRuns returns every run record, oldest first.
func (s *sqliteStore) ListRuns(ctx context.Context) ([]nsprov.Run, error) {
	start := time.Now()
	rows, err := s.stmts.listRuns.QueryContext(ctx)
	if err != nil {
		s.logSQL("ListRuns", start, nil, 0, err)
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	result := make([]nsprov.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	s.logSQL("ListRuns", start, nil, len(result), nil)
	return result, nil
}

func scanRun(row rowScanner) (nsprov.Run, error) {
	var run nsprov.Run
	var id, mode, stage, createdAt, updatedAt string
	var originalNames int
	if err := row.Scan(&id, &run.NSAgent, &run.SourceAgent, &run.Namespace, &mode, &run.ControlIf, &originalNames, &stage, &createdAt, &updatedAt); err != nil {
		return nsprov.Run{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nsprov.Run{}, fmt.Errorf("run %q: parse id: %w", id, err)
	}
	run.ID = parsed

	m, ok := nsprov.ParseConnMode(mode)
	if !ok {
		return nsprov.Run{}, fmt.Errorf("run %s: unknown mode %q", id, mode)
	}
	run.Mode = m
	run.OriginalNames = originalNames != 0
	run.Stage = nsprov.Stage(stage)

	if run.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nsprov.Run{}, fmt.Errorf("run %s: parse created_at: %w", id, err)
	}
	if run.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nsprov.Run{}, fmt.Errorf("run %s: parse updated_at: %w", id, err)
	}
	return run, nil
}
