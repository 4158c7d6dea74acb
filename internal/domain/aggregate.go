package domain

import "time"

// AggregateRow is the per-user, per-delivery rollup of scanning progress.
// Time metrics are per user and repeated across all of that user's rows.
type AggregateRow struct {
	User                  string     `json:"user"`
	Delivery              string     `json:"delivery"`
	ScannedPackages       int        `json:"scanned_packages"`
	PickedCount           int        `json:"picked_count"`
	ShippedCount          int        `json:"shipped_count"`
	DeliveryTotalPackages *int       `json:"delivery_total_packages"`
	LastScanTime          *time.Time `json:"last_scan_time"`
	TimeSinceLastScan     *float64   `json:"time_since_last_scan"`
	TimeBetweenScans      *float64   `json:"time_between_scans"`
}

// EqualsIgnoringClock reports whether two rows carry the same data,
// disregarding TimeSinceLastScan which is relative to the processing
// instant and changes every cycle even when nothing was scanned.
func (r AggregateRow) EqualsIgnoringClock(other AggregateRow) bool {
	if r.User != other.User || r.Delivery != other.Delivery {
		return false
	}
	if r.ScannedPackages != other.ScannedPackages ||
		r.PickedCount != other.PickedCount ||
		r.ShippedCount != other.ShippedCount {
		return false
	}
	if !intPtrEqual(r.DeliveryTotalPackages, other.DeliveryTotalPackages) {
		return false
	}
	if !timePtrEqual(r.LastScanTime, other.LastScanTime) {
		return false
	}
	return floatPtrEqual(r.TimeBetweenScans, other.TimeBetweenScans)
}

// AggregateRowsEqual compares two row sets pairwise, ignoring clock-relative
// fields. Order matters: both sets are produced in sorted (user, delivery)
// order, so positional comparison is stable.
func AggregateRowsEqual(a, b []AggregateRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].EqualsIgnoringClock(b[i]) {
			return false
		}
	}
	return true
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
