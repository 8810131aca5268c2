package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on any table change. There is no migration path:
// the queue is rebuildable state, so a mismatch asks the user to clear it.
const schemaVersion = 1

// ErrSchemaMismatch reports a queue database created by an incompatible build.
var ErrSchemaMismatch = errors.New("queue database schema mismatch")

func (s *Store) ensureSchema(ctx context.Context) error {
	initialized, err := s.tableExists(ctx, "schema_version")
	if err != nil {
		return err
	}
	if !initialized {
		return s.applySchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database reports version %d, this build expects %d (run 'ffui queue clear --all' or delete the database)", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	const query = "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?"
	var count int
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return false, fmt.Errorf("check %s table: %w", name, err)
	}
	return count > 0, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
