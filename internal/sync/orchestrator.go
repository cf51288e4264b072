package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/logging"
	"github.com/stravasync/stravasync/internal/metrics"
	"github.com/stravasync/stravasync/internal/models"
	"github.com/stravasync/stravasync/internal/strava"
	"github.com/stravasync/stravasync/internal/store"
	"github.com/stravasync/stravasync/internal/telegram"
	"github.com/stravasync/stravasync/internal/token"
	"github.com/stravasync/stravasync/internal/watermark"
)

// DefaultKudosWorkers bounds concurrent kudos fetches per run.
const DefaultKudosWorkers = 4

// Options tune a single synchronization run.
type Options struct {
	// Since overrides the watermark with an explicit lower bound.
	Since time.Time
	// Force ignores the watermark and refetches the full history.
	Force bool
}

// Orchestrator drives one synchronization run end to end: credential
// refresh, incremental fetch, batched persistence, kudos collection and
// finally the watermark advance. The watermark is written last so that
// any fatal failure leaves the next run refetching the same window.
type Orchestrator struct {
	tokens    *token.Manager
	client    *strava.Client
	store     *store.SQLiteStore
	watermark *watermark.Log
	metrics   *metrics.Metrics
	notifier  *telegram.Notifier
	logger    *logging.Logger
	workers   int

	mu    stdsync.Mutex
	state State
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithKudosWorkers sets the size of the kudos fetch pool.
func WithKudosWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithNotifier attaches a Telegram notifier for run summaries.
func WithNotifier(n *telegram.Notifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// NewOrchestrator wires the sync pipeline together.
func NewOrchestrator(tokens *token.Manager, client *strava.Client, st *store.SQLiteStore, wm *watermark.Log, m *metrics.Metrics, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		tokens:    tokens,
		client:    client,
		store:     st,
		watermark: wm,
		metrics:   m,
		logger:    logger,
		workers:   DefaultKudosWorkers,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the orchestrator's current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(ctx context.Context, s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.InfoWithContext(ctx, "sync state changed", "state", s.String())
}

// Run executes one synchronization run. Authentication, fetch and
// store-level failures abort the run with the watermark untouched.
// Row-level persistence failures and per-activity kudos failures are
// logged and skipped.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.SyncResult, error) {
	start := time.Now()
	ctx = logging.WithCorrelationID(ctx, logging.GenerateCorrelationID())

	result, err := o.run(ctx, opts)
	if err != nil {
		o.setState(ctx, StateFailed)
		o.metrics.RecordRun("failed", time.Since(start))
		if o.notifier != nil {
			o.notifier.NotifySyncFailure(err)
		}
		o.logger.ErrorWithContext(ctx, "sync run failed", "error", err.Error())
		return nil, err
	}

	outcome := "success"
	if result.degraded {
		outcome = "degraded"
	}
	o.setState(ctx, StateDone)
	o.metrics.RecordRun(outcome, time.Since(start))
	if o.notifier != nil {
		o.notifier.NotifySyncResult(&result.SyncResult)
	}
	o.logger.InfoWithContext(ctx, "sync run complete",
		"outcome", outcome,
		"activities", result.ActivitiesProcessed,
		"kudos", result.KudosProcessed,
		"duration_ms", time.Since(start).Milliseconds())
	return &result.SyncResult, nil
}

type runResult struct {
	models.SyncResult
	degraded bool
}

func (o *Orchestrator) run(ctx context.Context, opts Options) (*runResult, error) {
	o.setState(ctx, StateIdle)

	cred, err := o.tokens.GetValidCredential(ctx)
	if err != nil {
		return nil, err
	}
	o.setState(ctx, StateTokenReady)

	since, prev := o.resolveWindow(opts)
	o.setState(ctx, StateFetching)
	activities, err := o.client.FetchActivitiesSince(ctx, cred.AccessToken, since)
	if err != nil {
		return nil, err
	}

	if len(activities) == 0 {
		return o.recordEmptyRun(ctx, prev)
	}

	o.setState(ctx, StatePersistingActivities)
	report, err := o.store.UpsertActivities(ctx, activities)
	if err != nil {
		return nil, err
	}
	o.recordRowFailures(ctx, "activities", report)
	o.metrics.ActivitiesPersisted.Add(float64(report.Succeeded))

	persisted := persistedOnly(activities, report)
	if len(persisted) == 0 {
		// Every row was skipped; advancing would jump past data the
		// store never saw.
		o.logger.WarnWithContext(ctx, "no activities persisted, watermark not advanced")
		res, err := o.recordEmptyRun(ctx, prev)
		if res != nil {
			res.degraded = true
		}
		return res, err
	}

	o.setState(ctx, StatePersistingKudos)
	kudosCount, kudosDegraded := o.collectKudos(ctx, cred.AccessToken, persisted)

	o.setState(ctx, StateWatermarkAdvanced)
	latest := persisted.Latest()
	entry := watermark.Entry{Timestamp: latest, Count: len(persisted)}
	if err := o.watermark.Append(entry); err != nil {
		return nil, fmt.Errorf("advancing watermark: %w", err)
	}
	o.metrics.LastWatermark.Set(float64(latest.Unix()))

	return &runResult{
		SyncResult: models.SyncResult{
			ActivitiesProcessed: report.Succeeded,
			KudosProcessed:      kudosCount,
			Watermark:           latest,
		},
		degraded: report.Degraded() || kudosDegraded,
	}, nil
}

// persistedOnly filters the fetched batch down to rows the store
// accepted, so the watermark and kudos collection only ever see
// durable activities.
func persistedOnly(activities models.ActivitySlice, report models.UpsertReport) models.ActivitySlice {
	if !report.Degraded() {
		return activities
	}
	failed := make(map[int64]struct{}, len(report.Failed))
	for _, f := range report.Failed {
		failed[f.ID] = struct{}{}
	}
	kept := make(models.ActivitySlice, 0, report.Succeeded)
	for _, a := range activities {
		if _, ok := failed[a.ID]; !ok {
			kept = append(kept, a)
		}
	}
	return kept
}

// resolveWindow picks the fetch lower bound: an explicit override wins,
// a forced run refetches everything, otherwise the watermark applies.
// The previous entry is returned so empty runs can re-log it.
func (o *Orchestrator) resolveWindow(opts Options) (int64, *watermark.Entry) {
	last, ok, err := o.watermark.Last()
	var prev *watermark.Entry
	if err != nil {
		o.logger.Warn("watermark unreadable, falling back to full fetch", "error", err.Error())
	} else if ok {
		prev = &last
	}

	if opts.Force {
		return 0, prev
	}
	if !opts.Since.IsZero() {
		return opts.Since.Unix(), prev
	}
	if prev != nil {
		return prev.Timestamp.Unix(), prev
	}
	return 0, nil
}

// recordEmptyRun logs a zero-count entry carrying the previous
// timestamp forward, keeping the run history complete without moving
// the watermark.
func (o *Orchestrator) recordEmptyRun(ctx context.Context, prev *watermark.Entry) (*runResult, error) {
	o.logger.InfoWithContext(ctx, "no new activities in window")
	res := &runResult{}
	if prev == nil {
		return res, nil
	}
	o.setState(ctx, StateWatermarkAdvanced)
	if err := o.watermark.Append(watermark.Entry{Timestamp: prev.Timestamp, Count: 0}); err != nil {
		return nil, fmt.Errorf("recording empty run: %w", err)
	}
	res.Watermark = prev.Timestamp
	return res, nil
}

func (o *Orchestrator) recordRowFailures(ctx context.Context, table string, report models.UpsertReport) {
	for _, f := range report.Failed {
		o.metrics.RowFailures.WithLabelValues(table).Inc()
		o.logger.WarnWithContext(ctx, "record skipped during persistence",
			"table", table, "id", f.ID, "error", f.Cause.Error())
	}
}

// collectKudos fans activity IDs out to a bounded worker pool. Each
// worker fetches and persists one activity's kudos; failures are
// counted and skipped so one bad activity never stalls the run.
func (o *Orchestrator) collectKudos(ctx context.Context, accessToken string, activities models.ActivitySlice) (int, bool) {
	jobs := make(chan models.Activity)
	var wg stdsync.WaitGroup
	var mu stdsync.Mutex
	persisted := 0
	degraded := false

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for act := range jobs {
				n, ok := o.syncActivityKudos(ctx, accessToken, act)
				mu.Lock()
				persisted += n
				if !ok {
					degraded = true
				}
				mu.Unlock()
			}
		}()
	}

	for _, act := range activities {
		jobs <- act
	}
	close(jobs)
	wg.Wait()

	o.metrics.KudosPersisted.Add(float64(persisted))
	return persisted, degraded
}

func (o *Orchestrator) syncActivityKudos(ctx context.Context, accessToken string, act models.Activity) (int, bool) {
	entries, err := o.client.FetchKudos(ctx, accessToken, act.ID)
	if err != nil {
		if re, ok := errors.AsRemoteAPIError(err); ok && re.IsRateLimit() {
			o.logger.WarnWithContext(ctx, "kudos fetch rate limited", "activity_id", act.ID)
		} else {
			o.logger.WarnWithContext(ctx, "kudos fetch failed", "activity_id", act.ID, "error", err.Error())
		}
		return 0, false
	}
	if len(entries) == 0 {
		return 0, true
	}

	report, err := o.store.UpsertKudos(ctx, entries)
	if err != nil {
		o.logger.WarnWithContext(ctx, "kudos persistence failed", "activity_id", act.ID, "error", err.Error())
		return 0, false
	}
	o.recordRowFailures(ctx, "kudos", report)
	return report.Succeeded, !report.Degraded()
}
