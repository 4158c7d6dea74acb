package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rpattn/shiptrack/internal/artifact"
	"github.com/rpattn/shiptrack/internal/domain"
	"github.com/rpattn/shiptrack/internal/reader"
)

type stubLoader struct {
	snapshot   *domain.Snapshot
	scansErr   error
	deliveries *domain.DeliverySnapshot
	delivErr   error
	pruned     int
}

func (l *stubLoader) LoadScans(ctx context.Context) (*domain.Snapshot, int, error) {
	if l.scansErr != nil {
		return nil, 0, l.scansErr
	}
	return l.snapshot, 0, nil
}

func (l *stubLoader) LoadDeliveries(ctx context.Context) (*domain.DeliverySnapshot, int, error) {
	if l.delivErr != nil {
		return nil, 0, l.delivErr
	}
	return l.deliveries, 0, nil
}

func (l *stubLoader) PruneSources() int {
	l.pruned++
	return 0
}

type writeCall struct {
	kind    artifact.Kind
	payload any
}

type stubStore struct {
	writes   []writeCall
	prunes   []artifact.Kind
	writeErr error
}

func (s *stubStore) Write(kind artifact.Kind, payload any) (artifact.Info, error) {
	if s.writeErr != nil {
		return artifact.Info{}, s.writeErr
	}
	s.writes = append(s.writes, writeCall{kind: kind, payload: payload})
	return artifact.Info{Kind: kind, Name: fmt.Sprintf("%s_test.json", kind)}, nil
}

func (s *stubStore) Prune(kind artifact.Kind, keep int) int {
	s.prunes = append(s.prunes, kind)
	return 0
}

func testSnapshot(name string) *domain.Snapshot {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Snapshot{
		FileName:   name,
		CapturedAt: base.Add(5 * time.Minute),
		Records: []domain.ScanRecord{
			{Serial: "SN001", Status: "ASH", Delivery: "D1", CreatedBy: "U1", PackageID: "P1", Timestamp: base},
			{Serial: "SN002", Status: "SHP", Delivery: "D1", CreatedBy: "U1", PackageID: "P2", Timestamp: base.Add(time.Minute)},
		},
	}
}

func testConfig() Config {
	return Config{
		Interval:       time.Minute,
		Retention:      5,
		WriteAggregate: true,
		WriteDelta:     true,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunCycleWritesBothArtifacts(t *testing.T) {
	loader := &stubLoader{
		snapshot: testSnapshot("scans_20240301_120000.xlsx"),
		deliveries: &domain.DeliverySnapshot{
			FileName: "deliveries.xlsx",
			Totals:   []domain.DeliveryTotal{{Delivery: "D1", TotalPackages: 10}},
		},
	}
	store := &stubStore{}
	now := time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC)
	orch := New(loader, store, testConfig(), WithClock(fixedClock(now)))

	state, result, err := orch.RunCycle(context.Background(), CycleState{})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if result.Skipped || result.NoChange {
		t.Fatalf("unexpected result flags: %+v", result)
	}
	if len(store.writes) != 2 {
		t.Fatalf("expected aggregate and delta writes, got %d", len(store.writes))
	}
	if store.writes[0].kind != artifact.KindAggregate || store.writes[1].kind != artifact.KindDelta {
		t.Fatalf("unexpected write order: %v %v", store.writes[0].kind, store.writes[1].kind)
	}
	if len(store.prunes) != 2 || loader.pruned != 1 {
		t.Fatalf("expected retention pruning to run: prunes=%d sources=%d", len(store.prunes), loader.pruned)
	}
	if state.PreviousSnapshot == nil || state.PreviousSnapshot.FileName != "scans_20240301_120000.xlsx" {
		t.Fatalf("diff base did not advance: %+v", state.PreviousSnapshot)
	}

	rows := result.Rows
	if len(rows) != 1 || rows[0].ScannedPackages != 2 {
		t.Fatalf("unexpected aggregate rows: %+v", rows)
	}
	if rows[0].DeliveryTotalPackages == nil || *rows[0].DeliveryTotalPackages != 10 {
		t.Fatalf("delivery total not joined: %+v", rows[0].DeliveryTotalPackages)
	}
}

func TestRunCycleToleratesNilDeliverySnapshot(t *testing.T) {
	// A loader may legitimately return no delivery snapshot without an
	// error; the cycle must carry on with null totals.
	loader := &stubLoader{snapshot: testSnapshot("scans.xlsx")}
	store := &stubStore{}
	orch := New(loader, store, testConfig())

	_, result, err := orch.RunCycle(context.Background(), CycleState{})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected aggregate rows, got %d", len(result.Rows))
	}
	if result.Rows[0].DeliveryTotalPackages != nil {
		t.Fatalf("expected null delivery total, got %d", *result.Rows[0].DeliveryTotalPackages)
	}
	if len(store.writes) != 2 {
		t.Fatalf("expected both artifacts written, got %d", len(store.writes))
	}
}

func TestRunCycleTimeMetricsUseCaptureTime(t *testing.T) {
	snapshot := testSnapshot("scans_20240301120500.xlsx")
	loader := &stubLoader{snapshot: snapshot}
	store := &stubStore{}
	// Processing happens an hour after capture; time-since must be relative
	// to the capture instant, not the wall clock.
	processedAt := snapshot.CapturedAt.Add(time.Hour)
	orch := New(loader, store, testConfig(), WithClock(fixedClock(processedAt)))

	_, result, err := orch.RunCycle(context.Background(), CycleState{})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	row := result.Rows[0]
	if row.TimeSinceLastScan == nil {
		t.Fatalf("expected time since last scan to be set")
	}
	// Last scan 12:01, captured 12:05.
	if *row.TimeSinceLastScan != 240 {
		t.Fatalf("expected 240s since last scan, got %v", *row.TimeSinceLastScan)
	}
}

func TestRunCycleSkipsWhenScansUnavailable(t *testing.T) {
	loader := &stubLoader{scansErr: fmt.Errorf("%w in /data/scans", reader.ErrNoFiles)}
	store := &stubStore{}
	orch := New(loader, store, testConfig())

	prior := CycleState{PreviousSnapshot: testSnapshot("old.xlsx")}
	state, result, err := orch.RunCycle(context.Background(), prior)
	if err != nil {
		t.Fatalf("a missing export must not be an error: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skipped cycle, got %+v", result)
	}
	if len(store.writes) != 0 {
		t.Fatalf("skipped cycle must not write artifacts")
	}
	if state.PreviousSnapshot != prior.PreviousSnapshot {
		t.Fatalf("skipped cycle must not advance the diff base")
	}
}

func TestRunCycleProceedsWithoutDeliveryTotals(t *testing.T) {
	loader := &stubLoader{
		snapshot: testSnapshot("scans.xlsx"),
		delivErr: fmt.Errorf("%w in /data/deliveries", reader.ErrNoFiles),
	}
	store := &stubStore{}
	orch := New(loader, store, testConfig())

	_, result, err := orch.RunCycle(context.Background(), CycleState{})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected aggregate rows despite missing totals, got %d", len(result.Rows))
	}
	if result.Rows[0].DeliveryTotalPackages != nil {
		t.Fatalf("expected null delivery total, got %d", *result.Rows[0].DeliveryTotalPackages)
	}
}

func TestRunCycleNoChangeShortCircuit(t *testing.T) {
	loader := &stubLoader{snapshot: testSnapshot("scans.xlsx")}
	store := &stubStore{}
	now := time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC)
	orch := New(loader, store, testConfig(), WithClock(fixedClock(now)))

	state, _, err := orch.RunCycle(context.Background(), CycleState{})
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	writesAfterFirst := len(store.writes)

	// Same input, later wall clock: the rows carry the same data.
	orch.now = fixedClock(now.Add(time.Minute))
	_, result, err := orch.RunCycle(context.Background(), state)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if !result.NoChange {
		t.Fatalf("expected no-change short circuit, got %+v", result)
	}
	if len(store.writes) != writesAfterFirst {
		t.Fatalf("no-change cycle must not write artifacts")
	}
}

func TestRunCycleFirstDeltaIsAllAdded(t *testing.T) {
	loader := &stubLoader{snapshot: testSnapshot("scans.xlsx")}
	store := &stubStore{}
	orch := New(loader, store, testConfig())

	_, result, err := orch.RunCycle(context.Background(), CycleState{})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if result.Delta == nil || len(result.Delta.Added) != 2 {
		t.Fatalf("expected all records added on first cycle, got %+v", result.Delta)
	}
	if result.Delta.Metadata.BaseSnapshot != "" {
		t.Fatalf("expected empty base snapshot, got %s", result.Delta.Metadata.BaseSnapshot)
	}
}

func TestRunCycleWriteFailureKeepsState(t *testing.T) {
	loader := &stubLoader{snapshot: testSnapshot("scans.xlsx")}
	store := &stubStore{writeErr: errors.New("disk full")}
	orch := New(loader, store, testConfig())

	prior := CycleState{PreviousSnapshot: testSnapshot("old.xlsx")}
	state, _, err := orch.RunCycle(context.Background(), prior)
	if err == nil {
		t.Fatalf("expected write failure to surface")
	}
	if state.PreviousSnapshot != prior.PreviousSnapshot {
		t.Fatalf("failed cycle must not advance the diff base")
	}
	if orch.Stage() != StageIdle {
		t.Fatalf("orchestrator must return to idle, got %s", orch.Stage())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	loader := &stubLoader{scansErr: reader.ErrNoFiles}
	store := &stubStore{}
	cfg := testConfig()
	cfg.Interval = time.Millisecond
	orch := New(loader, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := orch.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
