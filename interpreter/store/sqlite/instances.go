package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// GetInstance returns the configuration tree instance at oid.
func (s *sqliteStore) GetInstance(ctx context.Context, oid string) (nsprov.Instance, error) {
	start := time.Now()
	var inst nsprov.Instance
	var volatile int
	err := s.stmts.getInstance.QueryRowContext(ctx, oid).Scan(&inst.OID, &inst.Value, &volatile)
	if errors.Is(err, sql.ErrNoRows) {
		s.logSQL("GetInstance", start, []any{oid}, 0, nil)
		return nsprov.Instance{}, fmt.Errorf("instance %s: %w", oid, store.ErrNotFound)
	}
	if err != nil {
		s.logSQL("GetInstance", start, []any{oid}, 0, err)
		return nsprov.Instance{}, fmt.Errorf("get instance %s: %w", oid, err)
	}
	s.logSQL("GetInstance", start, []any{oid}, 1, nil)
	inst.Volatile = volatile != 0
	return inst, nil
}

// PutInstance creates or updates an instance. An update keeps the
// instance's original position in insertion order.
func (s *sqliteStore) PutInstance(ctx context.Context, inst nsprov.Instance) error {
	start := time.Now()
	args := []any{inst.OID, inst.Value, boolToInt(inst.Volatile)}
	res, err := s.stmts.putInstance.ExecContext(ctx, args...)
	s.logSQL("PutInstance", start, args, affected(res), err)
	if err != nil {
		return fmt.Errorf("put instance %s: %w", inst.OID, err)
	}
	return nil
}

// DeleteInstance removes a single instance, leaving its descendants.
func (s *sqliteStore) DeleteInstance(ctx context.Context, oid string) error {
	start := time.Now()
	res, err := s.stmts.deleteInstance.ExecContext(ctx, oid)
	s.logSQL("DeleteInstance", start, []any{oid}, affected(res), err)
	if err != nil {
		return fmt.Errorf("delete instance %s: %w", oid, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("instance %s: %w", oid, store.ErrNotFound)
	}
	return nil
}

// DeleteSubtree removes oid and its descendants. Removing a subtree
// that does not exist is not an error.
func (s *sqliteStore) DeleteSubtree(ctx context.Context, oid string) error {
	start := time.Now()
	var res sql.Result
	var err error
	if nsprov.IsRoot(oid) {
		res, err = s.stmts.deleteAll.ExecContext(ctx)
	} else {
		res, err = s.stmts.deleteSubtree.ExecContext(ctx, oid)
	}
	s.logSQL("DeleteSubtree", start, []any{oid}, affected(res), err)
	if err != nil {
		return fmt.Errorf("delete subtree %s: %w", oid, err)
	}
	return nil
}

// ListInstances returns oid and its descendants in insertion order.
func (s *sqliteStore) ListInstances(ctx context.Context, oid string) ([]nsprov.Instance, error) {
	start := time.Now()
	var rows *sql.Rows
	var err error
	if nsprov.IsRoot(oid) {
		rows, err = s.stmts.listAllInstance.QueryContext(ctx)
	} else {
		rows, err = s.stmts.listSubtree.QueryContext(ctx, oid)
	}
	if err != nil {
		s.logSQL("ListInstances", start, []any{oid}, 0, err)
		return nil, fmt.Errorf("list instances %s: %w", oid, err)
	}
	defer rows.Close()

	result := make([]nsprov.Instance, 0)
	for rows.Next() {
		var inst nsprov.Instance
		var volatile int
		if err := rows.Scan(&inst.OID, &inst.Value, &volatile); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.Volatile = volatile != 0
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	s.logSQL("ListInstances", start, []any{oid}, len(result), nil)
	return result, nil
}
