package models

import (
	"fmt"
	"time"
)

// Activity represents one recorded exercise session as returned by the
// Strava v3 API. IDs are assigned remotely and stable across syncs.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Type               string    `json:"type"`
	Distance           float64   `json:"distance"`
	MovingTime         float64   `json:"moving_time"`
	ElapsedTime        float64   `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	EndLatLng          []float64 `json:"end_latlng"`
	KudosCount         int       `json:"kudos_count"`
	ExternalID         string    `json:"external_id"`
}

// Validate checks if the activity is structurally sound.
func (a *Activity) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("activity ID must be positive")
	}
	if a.Distance < 0 {
		return fmt.Errorf("distance cannot be negative")
	}
	if a.MovingTime < 0 || a.ElapsedTime < 0 {
		return fmt.Errorf("times cannot be negative")
	}
	if a.ElapsedTime < a.MovingTime {
		return fmt.Errorf("elapsed time cannot be less than moving time")
	}
	if a.TotalElevationGain < 0 {
		return fmt.Errorf("elevation gain cannot be negative")
	}
	if a.KudosCount < 0 {
		return fmt.Errorf("kudos count cannot be negative")
	}
	return nil
}

// HasEndLocation reports whether the activity carries end coordinates.
func (a *Activity) HasEndLocation() bool {
	return len(a.EndLatLng) == 2
}

// ActivitySlice is a slice of activities with helper methods.
type ActivitySlice []Activity

// Latest returns the most recent start timestamp in the slice, or the
// zero time for an empty slice.
func (as ActivitySlice) Latest() time.Time {
	var latest time.Time
	for i := range as {
		if as[i].StartDateLocal.After(latest) {
			latest = as[i].StartDateLocal
		}
	}
	return latest
}

// IDs returns the activity IDs in slice order.
func (as ActivitySlice) IDs() []int64 {
	ids := make([]int64, len(as))
	for i := range as {
		ids[i] = as[i].ID
	}
	return ids
}
