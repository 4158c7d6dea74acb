package domain

import "time"

// FieldChange records one tracked field moving from one value to another
// between two snapshots.
type FieldChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DeltaEntry is a serial present in only one of the two compared snapshots,
// carried with its full record.
type DeltaEntry struct {
	Serial string     `json:"serial"`
	Record ScanRecord `json:"record"`
}

// UpdatedEntry is a serial present in both snapshots with at least one
// tracked field changed.
type UpdatedEntry struct {
	Serial  string                 `json:"serial"`
	Changes map[string]FieldChange `json:"changes"`
}

// DeltaMetadata identifies the two snapshots a delta was computed from.
type DeltaMetadata struct {
	BaseSnapshot string    `json:"base_snapshot"`
	NewSnapshot  string    `json:"new_snapshot"`
	CreatedAt    time.Time `json:"created_at"`
	AddedCount   int       `json:"added_count"`
	RemovedCount int       `json:"removed_count"`
	UpdatedCount int       `json:"updated_count"`
}

// Delta describes what changed between two snapshots keyed by serial.
// The three sets are disjoint; a serial with no field differences appears
// in none of them.
type Delta struct {
	Added    []DeltaEntry   `json:"added"`
	Removed  []DeltaEntry   `json:"removed"`
	Updated  []UpdatedEntry `json:"updated"`
	Metadata DeltaMetadata  `json:"metadata"`
}

// Empty reports whether the delta carries no changes at all.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}
