package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/models"
)

const upsertActivityStmt = `
	INSERT INTO activities (id, name, start_date_local, type, distance, moving_time,
	                        elapsed_time, total_elevation_gain, end_latlng, kudos_count, external_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		start_date_local = excluded.start_date_local,
		type = excluded.type,
		distance = excluded.distance,
		moving_time = excluded.moving_time,
		elapsed_time = excluded.elapsed_time,
		total_elevation_gain = excluded.total_elevation_gain,
		end_latlng = excluded.end_latlng,
		kudos_count = excluded.kudos_count,
		external_id = excluded.external_id,
		synced_at = CURRENT_TIMESTAMP
`

// UpsertActivities writes the batch with the two-tier strategy.
// Re-running over an overlapping window updates rows in place; it never
// duplicates them.
func (s *SQLiteStore) UpsertActivities(ctx context.Context, activities models.ActivitySlice) (models.UpsertReport, error) {
	return s.upsertBatch(ctx, "activities", upsertActivityStmt, len(activities),
		func(i int) int64 { return activities[i].ID },
		func(i int) []interface{} {
			a := activities[i]
			return []interface{}{
				a.ID,
				a.Name,
				formatStartDate(a.StartDateLocal),
				a.Type,
				a.Distance,
				a.MovingTime,
				a.ElapsedTime,
				a.TotalElevationGain,
				encodeLatLng(a.EndLatLng),
				a.KudosCount,
				nullString(a.ExternalID),
			}
		})
}

// GetActivity retrieves one activity by ID. A missing row returns
// (nil, nil) so callers can tell absence apart from a query failure.
func (s *SQLiteStore) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, start_date_local, type, distance, moving_time,
		       elapsed_time, total_elevation_gain, end_latlng, kudos_count, external_id
		FROM activities WHERE id = ?
	`, id)

	act, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return act, nil
}

// ListActivities returns activities ordered by start date descending.
// A non-positive limit returns everything.
func (s *SQLiteStore) ListActivities(ctx context.Context, limit int) (models.ActivitySlice, error) {
	query := `
		SELECT id, name, start_date_local, type, distance, moving_time,
		       elapsed_time, total_elevation_gain, end_latlng, kudos_count, external_id
		FROM activities ORDER BY start_date_local DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list activities", Err: err}
	}
	defer rows.Close()

	var activities models.ActivitySlice
	for rows.Next() {
		act, err := scanActivity(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable activity row", "error", err.Error())
			continue
		}
		activities = append(activities, *act)
	}
	return activities, rows.Err()
}

// CountActivities returns the number of stored activities.
func (s *SQLiteStore) CountActivities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities").Scan(&count)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count activities", Err: err}
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(r rowScanner) (*models.Activity, error) {
	var act models.Activity
	var startDate string
	var latlng, externalID sql.NullString

	err := r.Scan(&act.ID, &act.Name, &startDate, &act.Type, &act.Distance,
		&act.MovingTime, &act.ElapsedTime, &act.TotalElevationGain,
		&latlng, &act.KudosCount, &externalID)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, startDate); err == nil {
		act.StartDateLocal = t
	}
	if latlng.Valid {
		act.EndLatLng = decodeLatLng(latlng.String)
	}
	if externalID.Valid {
		act.ExternalID = externalID.String
	}
	return &act, nil
}

func formatStartDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// encodeLatLng stores coordinates as "lat,lng" text, NULL when absent.
func encodeLatLng(coords []float64) sql.NullString {
	if len(coords) != 2 {
		return sql.NullString{}
	}
	return sql.NullString{String: fmt.Sprintf("%g,%g", coords[0], coords[1]), Valid: true}
}

func decodeLatLng(s string) []float64 {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	var lat, lng float64
	if _, err := fmt.Sscanf(parts[0], "%g", &lat); err != nil {
		return nil
	}
	if _, err := fmt.Sscanf(parts[1], "%g", &lng); err != nil {
		return nil
	}
	return []float64{lat, lng}
}
