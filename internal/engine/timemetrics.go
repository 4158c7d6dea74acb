package engine

import (
	"log"
	"time"

	"github.com/rpattn/shiptrack/internal/domain"
)

// UserTimeMetrics carries the per-user scan timing derived from one
// snapshot. The same values apply to every delivery the user touched.
type UserTimeMetrics struct {
	LastScanTime      time.Time
	TimeSinceLastScan float64  // seconds relative to the processing instant
	TimeBetweenScans  *float64 // seconds between the two most recent scans; nil with fewer than two
}

// ComputeTimeMetrics derives per-user timing from resolved records. Equal
// timestamps break ties by original row order, so results are deterministic
// for a given snapshot. A last scan in the future (clock skew between the
// export host and this process) clamps time-since-last-scan to zero.
func ComputeTimeMetrics(records []domain.ScanRecord, now time.Time) map[string]UserTimeMetrics {
	type topTwo struct {
		latest   time.Time
		previous time.Time
		count    int
	}

	byUser := make(map[string]*topTwo)
	for _, record := range records {
		entry, ok := byUser[record.CreatedBy]
		if !ok {
			entry = &topTwo{}
			byUser[record.CreatedBy] = entry
		}
		entry.count++
		switch {
		case entry.count == 1:
			entry.latest = record.Timestamp
		case record.Timestamp.After(entry.latest):
			entry.previous = entry.latest
			entry.latest = record.Timestamp
		case entry.count == 2 || record.Timestamp.After(entry.previous):
			entry.previous = record.Timestamp
		}
	}

	metrics := make(map[string]UserTimeMetrics, len(byUser))
	for user, entry := range byUser {
		m := UserTimeMetrics{LastScanTime: entry.latest}

		since := now.Sub(entry.latest).Seconds()
		if since < 0 {
			log.Printf("[timemetrics] user %s last scan %s is ahead of processing time %s, clamping to 0",
				user, entry.latest.Format(time.RFC3339), now.Format(time.RFC3339))
			since = 0
		}
		m.TimeSinceLastScan = since

		if entry.count >= 2 {
			gap := entry.latest.Sub(entry.previous).Seconds()
			m.TimeBetweenScans = &gap
		}

		metrics[user] = m
	}

	return metrics
}

// MergeTimeMetrics stamps per-user timing onto every aggregate row
// belonging to that user. Rows for users without metrics are left as-is.
func MergeTimeMetrics(rows []domain.AggregateRow, metrics map[string]UserTimeMetrics) []domain.AggregateRow {
	for i := range rows {
		m, ok := metrics[rows[i].User]
		if !ok {
			continue
		}
		last := m.LastScanTime
		since := m.TimeSinceLastScan
		rows[i].LastScanTime = &last
		rows[i].TimeSinceLastScan = &since
		rows[i].TimeBetweenScans = m.TimeBetweenScans
	}
	return rows
}
