// Package sqlite provides a SQLite implementation of the nsprov state
// store: configuration tree instances, agent registrations and
// bindings, namespace channels and provisioning run records.
//
// # Calling Conventions
//
// This store is a pure data access layer with no internal transaction management.
// Individual methods execute against prepared statements bound to either
// the underlying *sql.DB (autocommit mode) or a *sql.Tx (transactional mode).
//
// For operations that require atomicity across multiple calls, use RunInTransaction:
//
//	err := store.RunInTransaction(ctx, func(tx interpreter.Store) error {
//	    if err := tx.DeleteSubtree(ctx, nsprov.AgentOID(agent)); err != nil {
//	        return err // triggers rollback
//	    }
//	    return tx.DeleteAgent(ctx, agent) // commits if nil
//	})
//
// # Autocommit Behaviour
//
// Outside a transaction each statement commits on its own. Every method
// here issues a single statement, so each is atomic by itself; callers
// combining several (tree synchronization, agent removal) decide
// whether they need RunInTransaction.
//
// # Prepared Statements
//
// All SQL queries use prepared statements compiled once when the store
// is opened. Inside RunInTransaction, tx.StmtContext binds the master
// statements to the transaction without re-parsing them.
//
// # In-memory databases
//
// Each connection to ":memory:" opens a distinct database, so the
// in-memory store is limited to one connection.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/logging"
)

// msec formats a duration as milliseconds with 3 decimal places.
func msec(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Microseconds())/1000)
}

// timeFormat is the on-disk timestamp layout.
const timeFormat = time.RFC3339Nano

//go:embed schema.sql
var schemaSQL string

// sqliteStore implements interpreter.Store using SQLite.
type sqliteStore struct {
	db     *sql.DB // original connection, used for BeginTx
	logger *slog.Logger
	stmts  statements
}

// New creates a new SQLite store at the given path.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(dbPath, [][2]string{{"journal_mode", "WAL"}, {"busy_timeout", "5000"}}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("opened database", "path", dbPath)
	return s, nil
}

// NewInMemory creates an in-memory SQLite store for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	db, err := sql.Open(driverName, dsn(":memory:", nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("opened in-memory database")
	return s, nil
}

func open(ctx context.Context, db *sql.DB, logger *slog.Logger) (*sqliteStore, error) {
	s := &sqliteStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	stmts, err := prepareStatements(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	s.stmts = stmts
	return s, nil
}

// Close closes all prepared statements and the database connection.
func (s *sqliteStore) Close() error {
	s.stmts.close()
	return s.db.Close()
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// RunInTransaction executes the callback within a database transaction.
// If the callback returns nil, the transaction commits.
// If the callback returns an error, the transaction rolls back.
//
// The transaction-bound store shares the master prepared statements via
// tx.StmtContext; the handles become invalid after commit or rollback,
// which is fine because txStore does not outlive the callback.
func (s *sqliteStore) RunInTransaction(ctx context.Context, fn func(interpreter.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := &sqliteStore{
		db:     s.db,
		logger: s.logger,
		stmts:  s.stmts.bind(ctx, tx),
	}

	if err := fn(txStore); err != nil {
		return err
	}

	return tx.Commit()
}

// logSQL emits the per-statement trace record. Failures are logged at
// debug.
func (s *sqliteStore) logSQL(stmt string, start time.Time, args []any, rows int, err error) {
	ctx := context.Background()
	if err != nil {
		s.logger.Log(ctx, slog.LevelDebug, "sql", "stmt", stmt, "args", args, "duration_ms", msec(time.Since(start)), "error", err)
		return
	}
	s.logger.Log(ctx, logging.LevelTrace, "sql", "stmt", stmt, "args", args, "duration_ms", msec(time.Since(start)), "rows", rows)
}

// affected returns the row count of an Exec result, or -1 if unknown.
func affected(res sql.Result) int {
	if res == nil {
		return -1
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return int(n)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
