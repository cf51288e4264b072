package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/stravasync/stravasync/internal/metrics"
	"github.com/stravasync/stravasync/internal/sync"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass",
	Long: `Run one synchronization pass against the Strava API.

Only activities newer than the last recorded watermark are fetched.
Use --force to refetch the full history, or --since to pick an
explicit lower bound.

Example:
  stravasync sync
  stravasync sync --since 2024-01-01
  stravasync sync --force`,
	RunE: runSync,
}

var syncFlags struct {
	Since string
	Force bool
}

func init() {
	syncCmd.Flags().StringVar(&syncFlags.Since, "since", "", "Fetch lower bound, as YYYY-MM-DD or a unix timestamp")
	syncCmd.Flags().BoolVar(&syncFlags.Force, "force", false, "Ignore the watermark and refetch the full history")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	opts := sync.Options{Force: syncFlags.Force}
	if syncFlags.Since != "" {
		since, err := parseSince(syncFlags.Since)
		if err != nil {
			return err
		}
		opts.Since = since
	}

	orch, st, err := buildOrchestrator(cfg, logger, metrics.NewMetrics("stravasync"))
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := orch.Run(context.Background(), opts)
	if err != nil {
		return err
	}

	fmt.Printf("Synced %d activities and %d kudos\n", result.ActivitiesProcessed, result.KudosProcessed)
	if !result.Watermark.IsZero() {
		fmt.Printf("Watermark: %s\n", result.Watermark.UTC().Format(time.RFC3339))
	}
	return nil
}

// parseSince accepts a calendar date or a raw unix timestamp.
func parseSince(raw string) (time.Time, error) {
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since value %q: use YYYY-MM-DD or a unix timestamp", raw)
	}
	return t, nil
}
