package store

import (
	"context"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/models"
)

// Kudos rows are additive only: the unique identity index makes
// re-fetching an overlapping window a no-op instead of a duplicate, and
// nothing ever deletes an entry.
const upsertKudosStmt = `
	INSERT INTO kudos (activity_id, first_name, last_name, resource_state)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(activity_id, first_name, last_name, resource_state) DO NOTHING
`

// UpsertKudos writes the batch with the two-tier strategy.
func (s *SQLiteStore) UpsertKudos(ctx context.Context, entries []models.KudosEntry) (models.UpsertReport, error) {
	return s.upsertBatch(ctx, "kudos", upsertKudosStmt, len(entries),
		func(i int) int64 { return entries[i].ActivityID },
		func(i int) []interface{} {
			k := entries[i]
			return []interface{}{k.ActivityID, k.FirstName, k.LastName, k.ResourceState}
		})
}

// ListKudosForActivity returns the stored kudos snapshot for one
// activity.
func (s *SQLiteStore) ListKudosForActivity(ctx context.Context, activityID int64) ([]models.KudosEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_id, first_name, last_name, resource_state
		FROM kudos WHERE activity_id = ? ORDER BY last_name, first_name
	`, activityID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list kudos", Err: err}
	}
	defer rows.Close()

	var entries []models.KudosEntry
	for rows.Next() {
		var k models.KudosEntry
		if err := rows.Scan(&k.ActivityID, &k.FirstName, &k.LastName, &k.ResourceState); err != nil {
			continue
		}
		entries = append(entries, k)
	}
	return entries, rows.Err()
}

// CountKudos returns the number of stored kudos entries.
func (s *SQLiteStore) CountKudos(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kudos").Scan(&count)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count kudos", Err: err}
	}
	return count, nil
}
