package store

import (
	"context"
	"testing"
	"time"

	"github.com/stravasync/stravasync/internal/models"
)

func TestKudosReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ride := testActivity(1, start)
	run := testActivity(2, start.Add(24*time.Hour))
	run.Type = "Run"

	if _, err := store.UpsertActivities(ctx, models.ActivitySlice{ride, run}); err != nil {
		t.Fatalf("UpsertActivities failed: %v", err)
	}
	_, err := store.UpsertKudos(ctx, []models.KudosEntry{
		{ActivityID: 1, FirstName: "Ana", LastName: "G.", ResourceState: "2"},
		{ActivityID: 2, FirstName: "Luis", LastName: "M.", ResourceState: "2"},
		{ActivityID: 2, FirstName: "Ana", LastName: "G.", ResourceState: "2"},
	})
	if err != nil {
		t.Fatalf("UpsertKudos failed: %v", err)
	}

	rows, err := store.KudosReport(ctx)
	if err != nil {
		t.Fatalf("KudosReport failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 report rows, got %d", len(rows))
	}

	// Most recent activity first; within it, givers ordered by name.
	if rows[0].ActivityID != 2 || rows[0].FirstName != "Ana" {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].ActivityID != 2 || rows[1].FirstName != "Luis" {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
	if rows[2].ActivityID != 1 {
		t.Errorf("Unexpected third row: %+v", rows[2])
	}
	if rows[0].Type != "Run" {
		t.Errorf("Expected type Run, got %q", rows[0].Type)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ride := testActivity(1, start)          // 15 km, 2700 s, 3 kudos
	run := testActivity(2, start.Add(time.Hour))
	run.Type = "Run"
	run.Distance = 5000
	run.MovingTime = 1800
	run.KudosCount = 1

	if _, err := store.UpsertActivities(ctx, models.ActivitySlice{ride, run}); err != nil {
		t.Fatalf("UpsertActivities failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalActivities != 2 {
		t.Errorf("TotalActivities = %d, want 2", stats.TotalActivities)
	}
	if stats.TotalDistanceKm != 20 {
		t.Errorf("TotalDistanceKm = %g, want 20", stats.TotalDistanceKm)
	}
	if stats.TotalTimeHours != 1.25 {
		t.Errorf("TotalTimeHours = %g, want 1.25", stats.TotalTimeHours)
	}
	if stats.TotalKudos != 4 {
		t.Errorf("TotalKudos = %d, want 4", stats.TotalKudos)
	}
	if stats.ByType["Ride"] != 1 || stats.ByType["Run"] != 1 {
		t.Errorf("ByType = %v", stats.ByType)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats on empty store failed: %v", err)
	}
	if stats.TotalActivities != 0 {
		t.Errorf("Expected zero activities, got %d", stats.TotalActivities)
	}
}
