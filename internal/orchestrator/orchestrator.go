package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/shiptrack/internal/artifact"
	"github.com/rpattn/shiptrack/internal/domain"
	"github.com/rpattn/shiptrack/internal/engine"
	"github.com/rpattn/shiptrack/internal/reader"
)

// Stage identifies where in the processing cycle the orchestrator is.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageLoading     Stage = "loading"
	StageResolving   Stage = "resolving"
	StageAggregating Stage = "aggregating"
	StageDiffing     Stage = "diffing"
	StageWriting     Stage = "writing"
	StagePruning     Stage = "pruning"
)

// ArtifactStore is the slice of the artifact store the orchestrator needs.
type ArtifactStore interface {
	Write(kind artifact.Kind, payload any) (artifact.Info, error)
	Prune(kind artifact.Kind, keep int) int
}

// Config tunes cycle behavior.
type Config struct {
	Interval       time.Duration
	Retention      int
	WriteAggregate bool
	WriteDelta     bool
	Mapping        domain.StatusMapping
}

// CycleState is everything carried from one cycle to the next: the resolved
// snapshot used as the diff base and the aggregate rows used for the
// no-change short circuit. It is passed and returned by value so cycles
// share nothing implicitly.
type CycleState struct {
	PreviousSnapshot *domain.Snapshot
	PreviousRows     []domain.AggregateRow
}

// CycleResult summarizes one cycle for logging and tests.
type CycleResult struct {
	ID         uuid.UUID
	Skipped    bool
	SkipReason string
	NoChange   bool
	Rejected   int
	Rows       []domain.AggregateRow
	Delta      *domain.Delta
}

// Orchestrator runs the load, resolve, aggregate, diff, write, prune cycle.
type Orchestrator struct {
	loader Loader
	store  ArtifactStore
	cfg    Config
	now    func() time.Time

	mu    sync.Mutex
	stage Stage
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects the time source used for metrics and delta timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator. The zero interval defaults to one minute.
func New(loader Loader, store ArtifactStore, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Mapping == nil {
		cfg.Mapping = domain.DefaultStatusMapping()
	}
	o := &Orchestrator{
		loader: loader,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		stage:  StageIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stage reports the orchestrator's current stage.
func (o *Orchestrator) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

func (o *Orchestrator) setStage(stage Stage) {
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()
}

// Run executes cycles until ctx is canceled. The next cycle starts one
// interval after the previous cycle completed; overruns are not queued.
func (o *Orchestrator) Run(ctx context.Context) error {
	state := CycleState{}
	for {
		next, result, err := o.RunCycle(ctx, state)
		if err != nil {
			log.Printf("[orchestrator] cycle %s failed: %v", result.ID, err)
		}
		state = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.Interval):
		}
	}
}

// RunCycle executes a single cycle against the given state and returns the
// state the next cycle should start from. A failed or skipped cycle returns
// the input state unchanged, so the diff base only ever advances on success.
func (o *Orchestrator) RunCycle(ctx context.Context, state CycleState) (CycleState, CycleResult, error) {
	result := CycleResult{ID: uuid.New()}
	defer o.setStage(StageIdle)

	o.setStage(StageLoading)
	snapshot, scanRejects, err := o.loader.LoadScans(ctx)
	if err != nil {
		if errors.Is(err, reader.ErrNoFiles) {
			log.Printf("[orchestrator] cycle %s: scan export unavailable, skipping", result.ID)
			result.Skipped = true
			result.SkipReason = "scan export unavailable"
			return state, result, nil
		}
		return state, result, fmt.Errorf("load scans: %w", err)
	}
	result.Rejected += scanRejects

	var totals []domain.DeliveryTotal
	deliveries, deliveryRejects, err := o.loader.LoadDeliveries(ctx)
	if err != nil {
		// Delivery totals only enrich the aggregate; the cycle proceeds
		// without them and the total column stays null.
		log.Printf("[orchestrator] cycle %s: delivery totals unavailable: %v", result.ID, err)
	} else if deliveries != nil {
		totals = deliveries.Totals
		result.Rejected += deliveryRejects
	}

	o.setStage(StageResolving)
	resolved := &domain.Snapshot{
		FileName:   snapshot.FileName,
		CapturedAt: snapshot.CapturedAt,
		Records:    engine.Resolve(snapshot.Records, o.cfg.Mapping),
	}

	o.setStage(StageAggregating)
	now := o.now()
	// Time metrics are relative to the snapshot's capture instant when the
	// export name carries one; wall clock covers unstamped files.
	reference := resolved.CapturedAt
	if reference.IsZero() {
		reference = now
	}
	rows := engine.Aggregate(resolved.Records, totals, o.cfg.Mapping)
	rows = engine.MergeTimeMetrics(rows, engine.ComputeTimeMetrics(resolved.Records, reference))
	result.Rows = rows

	if state.PreviousRows != nil && domain.AggregateRowsEqual(rows, state.PreviousRows) {
		log.Printf("[orchestrator] cycle %s: no changes since previous cycle", result.ID)
		result.NoChange = true
		return CycleState{PreviousSnapshot: resolved, PreviousRows: rows}, result, nil
	}

	o.setStage(StageDiffing)
	delta := engine.Diff(state.PreviousSnapshot, resolved, now)
	result.Delta = &delta

	o.setStage(StageWriting)
	if o.cfg.WriteAggregate {
		info, err := o.store.Write(artifact.KindAggregate, rows)
		if err != nil {
			return state, result, fmt.Errorf("write aggregate artifact: %w", err)
		}
		log.Printf("[orchestrator] cycle %s: wrote %s", result.ID, info.Name)
	}
	if o.cfg.WriteDelta {
		info, err := o.store.Write(artifact.KindDelta, delta)
		if err != nil {
			return state, result, fmt.Errorf("write delta artifact: %w", err)
		}
		log.Printf("[orchestrator] cycle %s: wrote %s", result.ID, info.Name)
	}

	o.setStage(StagePruning)
	if o.cfg.Retention > 0 {
		o.store.Prune(artifact.KindAggregate, o.cfg.Retention)
		o.store.Prune(artifact.KindDelta, o.cfg.Retention)
	}
	o.loader.PruneSources()

	log.Printf("[orchestrator] cycle %s: %d records, %d rows, %d rejected, +%d/-%d/~%d",
		result.ID, len(resolved.Records), len(rows), result.Rejected,
		delta.Metadata.AddedCount, delta.Metadata.RemovedCount, delta.Metadata.UpdatedCount)

	return CycleState{PreviousSnapshot: resolved, PreviousRows: rows}, result, nil
}
