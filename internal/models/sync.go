package models

import "time"

// SyncResult summarizes one completed synchronization run.
type SyncResult struct {
	ActivitiesProcessed int       `json:"activities_processed"`
	KudosProcessed      int       `json:"kudos_processed"`
	Watermark           time.Time `json:"watermark"`
}

// RowFailure records one record that could not be persisted during the
// per-row fallback path. Row failures are reported, never raised.
type RowFailure struct {
	ID    int64
	Cause error
}

// UpsertReport is the outcome of a batched upsert: how many rows were
// committed, and which rows the fallback path had to skip.
type UpsertReport struct {
	Succeeded int
	Failed    []RowFailure
}

// Degraded reports whether the batch path was abandoned and at least
// one row was lost.
func (r UpsertReport) Degraded() bool {
	return len(r.Failed) > 0
}

// ActivityStats aggregates the synced activity table for reporting.
type ActivityStats struct {
	TotalActivities int            `json:"total_activities"`
	TotalDistanceKm float64        `json:"total_distance_km"`
	TotalTimeHours  float64        `json:"total_time_hours"`
	TotalKudos      int            `json:"total_kudos"`
	ByType          map[string]int `json:"activities_by_type"`
}
