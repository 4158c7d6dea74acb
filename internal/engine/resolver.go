package engine

import "github.com/rpattn/shiptrack/internal/domain"

// Resolve collapses multi-state serials to their terminal state. A serial
// that has ever reached a shipped status within the snapshot is never
// reported as picked, even when the export carries both rows. Duplicate
// (serial, status) rows collapse to one logical record, last write wins.
// The result preserves first-appearance order and is never larger than
// the input.
func Resolve(records []domain.ScanRecord, mapping domain.StatusMapping) []domain.ScanRecord {
	shipped := make(map[string]bool)
	for _, record := range records {
		if mapping.Classify(record.Status) == domain.StatusShipped {
			shipped[record.Serial] = true
		}
	}

	type dedupeKey struct {
		serial string
		status string
	}

	out := make([]domain.ScanRecord, 0, len(records))
	position := make(map[dedupeKey]int, len(records))

	for _, record := range records {
		if shipped[record.Serial] && mapping.Classify(record.Status) == domain.StatusPicked {
			continue
		}
		key := dedupeKey{serial: record.Serial, status: record.Status}
		if idx, seen := position[key]; seen {
			out[idx] = record
			continue
		}
		position[key] = len(out)
		out = append(out, record)
	}

	return out
}
