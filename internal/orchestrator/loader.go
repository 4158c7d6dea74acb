package orchestrator

import (
	"context"
	"fmt"

	"github.com/rpattn/shiptrack/internal/domain"
	"github.com/rpattn/shiptrack/internal/ingest"
	"github.com/rpattn/shiptrack/internal/reader"
)

// Source names used for reject log attribution.
const (
	sourceScans      = "scans"
	sourceDeliveries = "deliveries"
)

// Loader supplies the two input snapshots for a cycle.
type Loader interface {
	LoadScans(ctx context.Context) (*domain.Snapshot, int, error)
	LoadDeliveries(ctx context.Context) (*domain.DeliverySnapshot, int, error)
	PruneSources() int
}

// SourceConfig locates and filters the raw export directories.
type SourceConfig struct {
	ScansDir      string
	DeliveriesDir string
	Warehouse     string
	// Retention is the number of raw exports kept per source directory.
	Retention int
	Recorder  ingest.Recorder
}

// FileLoader reads the most recent export from each source directory and
// turns it into typed records.
type FileLoader struct {
	cfg SourceConfig
}

// NewFileLoader creates a loader over the configured source directories.
func NewFileLoader(cfg SourceConfig) *FileLoader {
	return &FileLoader{cfg: cfg}
}

func (l *FileLoader) LoadScans(ctx context.Context) (*domain.Snapshot, int, error) {
	info, err := reader.LatestFile(l.cfg.ScansDir)
	if err != nil {
		return nil, 0, err
	}
	table, err := reader.Load(info)
	if err != nil {
		return nil, 0, fmt.Errorf("load scan export: %w", err)
	}

	records, rejected := ingest.BuildScanRecords(ctx, table.Rows, ingest.Options{
		Warehouse: l.cfg.Warehouse,
		Source:    sourceScans,
		FileName:  info.Name,
		Recorder:  l.cfg.Recorder,
	})

	return &domain.Snapshot{
		FileName:   info.Name,
		CapturedAt: table.CapturedAt,
		Records:    records,
	}, rejected, nil
}

func (l *FileLoader) LoadDeliveries(ctx context.Context) (*domain.DeliverySnapshot, int, error) {
	info, err := reader.LatestFile(l.cfg.DeliveriesDir)
	if err != nil {
		return nil, 0, err
	}
	table, err := reader.Load(info)
	if err != nil {
		return nil, 0, fmt.Errorf("load delivery export: %w", err)
	}

	totals, rejected := ingest.BuildDeliveryTotals(ctx, table.Rows, ingest.Options{
		Source:   sourceDeliveries,
		FileName: info.Name,
		Recorder: l.cfg.Recorder,
	})

	return &domain.DeliverySnapshot{
		FileName:   info.Name,
		CapturedAt: table.CapturedAt,
		Totals:     totals,
	}, rejected, nil
}

// PruneSources trims old raw exports from both source directories.
func (l *FileLoader) PruneSources() int {
	if l.cfg.Retention <= 0 {
		return 0
	}
	removed := reader.Prune(l.cfg.ScansDir, l.cfg.Retention)
	removed += reader.Prune(l.cfg.DeliveriesDir, l.cfg.Retention)
	return removed
}
