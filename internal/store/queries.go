package store

import (
	"context"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/models"
)

// KudosReportRow is one line of the kudos-by-activity report.
type KudosReportRow struct {
	FirstName  string
	LastName   string
	Type       string
	ActivityID int64
	StartDate  string
}

// KudosReport joins kudos with their activities, most recent first.
func (s *SQLiteStore) KudosReport(ctx context.Context) ([]KudosReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.first_name, k.last_name, a.type, k.activity_id, a.start_date_local
		FROM kudos k
		INNER JOIN activities a ON k.activity_id = a.id
		ORDER BY a.start_date_local DESC, k.last_name, k.first_name
	`)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "kudos report", Err: err}
	}
	defer rows.Close()

	var report []KudosReportRow
	for rows.Next() {
		var r KudosReportRow
		if err := rows.Scan(&r.FirstName, &r.LastName, &r.Type, &r.ActivityID, &r.StartDate); err != nil {
			continue
		}
		report = append(report, r)
	}
	return report, rows.Err()
}

// Stats aggregates the activity table for the dashboard and CLI
// summaries. kudos_count is the authoritative total; stored kudos rows
// are informational.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.ActivityStats, error) {
	stats := &models.ActivityStats{ByType: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(distance), 0) / 1000.0,
		       COALESCE(SUM(moving_time), 0) / 3600.0,
		       COALESCE(SUM(kudos_count), 0)
		FROM activities
	`).Scan(&stats.TotalActivities, &stats.TotalDistanceKm, &stats.TotalTimeHours, &stats.TotalKudos)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "activity stats", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM activities GROUP BY type")
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "activity stats by type", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var activityType string
		var count int
		if err := rows.Scan(&activityType, &count); err != nil {
			continue
		}
		stats.ByType[activityType] = count
	}
	return stats, rows.Err()
}
