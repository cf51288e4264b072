package store

import (
	"context"
	"database/sql"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/models"
)

// upsertBatch implements the two-tier write strategy shared by both
// tables: one prepared statement executed for every record inside a
// single transaction, and, if that transaction cannot commit, a
// per-record fallback where each record gets its own transaction and a
// failure only skips that record.
//
// ids carries the record identifier reported for row-level failures;
// args produces the bind values for record i.
func (s *SQLiteStore) upsertBatch(ctx context.Context, table, stmt string, n int, ids func(i int) int64, args func(i int) []interface{}) (models.UpsertReport, error) {
	var report models.UpsertReport
	if n == 0 {
		return report, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchErr := s.runBatch(ctx, stmt, n, args)
	if batchErr == nil {
		report.Succeeded = n
		return report, nil
	}

	s.logger.Warn("batch upsert failed, falling back to per-row writes",
		"table", table, "records", n, "error", batchErr.Error())

	for i := 0; i < n; i++ {
		if err := s.runSingle(ctx, stmt, args(i)); err != nil {
			report.Failed = append(report.Failed, models.RowFailure{ID: ids(i), Cause: err})
			s.logger.Warn("row upsert failed, skipping",
				"table", table, "id", ids(i), "error", err.Error())
			continue
		}
		report.Succeeded++
	}

	// All rows failing is either a store outage or a uniformly bad
	// batch; a ping tells the two apart. Only the former is fatal.
	if report.Succeeded == 0 {
		if err := s.db.PingContext(ctx); err != nil {
			return report, &errors.PersistenceError{Table: table, Err: batchErr}
		}
	}

	return report, nil
}

func (s *SQLiteStore) runBatch(ctx context.Context, stmt string, n int, args func(i int) []interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer prepared.Close()

	for i := 0; i < n; i++ {
		if _, err := prepared.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) runSingle(ctx context.Context, stmt string, args []interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
