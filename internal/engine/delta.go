package engine

import (
	"sort"
	"time"

	"github.com/rpattn/shiptrack/internal/domain"
)

// Tracked fields compared per serial when diffing two snapshots.
const (
	fieldStatus    = "status"
	fieldDelivery  = "delivery"
	fieldCustomer  = "customer_name"
	fieldShipment  = "shipment_number"
	fieldCreatedBy = "created_by"
)

// Diff compares two resolved snapshots keyed by serial and classifies every
// serial as added, removed, or updated. The result is a pure function of
// snapshot content: entries come out sorted by serial regardless of input
// row order. A nil previous snapshot degrades to "everything added".
func Diff(previous, current *domain.Snapshot, now time.Time) domain.Delta {
	delta := domain.Delta{
		Added:   []domain.DeltaEntry{},
		Removed: []domain.DeltaEntry{},
		Updated: []domain.UpdatedEntry{},
		Metadata: domain.DeltaMetadata{
			NewSnapshot: current.FileName,
			CreatedAt:   now,
		},
	}
	if previous != nil {
		delta.Metadata.BaseSnapshot = previous.FileName
	}

	currentBySerial := indexBySerial(current.Records)
	var previousBySerial map[string]domain.ScanRecord
	if previous != nil {
		previousBySerial = indexBySerial(previous.Records)
	}

	for _, serial := range sortedSerials(currentBySerial) {
		record := currentBySerial[serial]
		prevRecord, existed := previousBySerial[serial]
		if !existed {
			delta.Added = append(delta.Added, domain.DeltaEntry{Serial: serial, Record: record})
			continue
		}
		if changes := compareTracked(prevRecord, record); len(changes) > 0 {
			delta.Updated = append(delta.Updated, domain.UpdatedEntry{Serial: serial, Changes: changes})
		}
	}

	for _, serial := range sortedSerials(previousBySerial) {
		if _, stillPresent := currentBySerial[serial]; !stillPresent {
			delta.Removed = append(delta.Removed, domain.DeltaEntry{Serial: serial, Record: previousBySerial[serial]})
		}
	}

	delta.Metadata.AddedCount = len(delta.Added)
	delta.Metadata.RemovedCount = len(delta.Removed)
	delta.Metadata.UpdatedCount = len(delta.Updated)

	return delta
}

func indexBySerial(records []domain.ScanRecord) map[string]domain.ScanRecord {
	index := make(map[string]domain.ScanRecord, len(records))
	for _, record := range records {
		// Last write wins, matching the resolver's duplicate rule.
		index[record.Serial] = record
	}
	return index
}

func sortedSerials(index map[string]domain.ScanRecord) []string {
	serials := make([]string, 0, len(index))
	for serial := range index {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

func compareTracked(from, to domain.ScanRecord) map[string]domain.FieldChange {
	changes := make(map[string]domain.FieldChange)
	track := func(field, fromValue, toValue string) {
		if fromValue != toValue {
			changes[field] = domain.FieldChange{From: fromValue, To: toValue}
		}
	}
	track(fieldStatus, from.Status, to.Status)
	track(fieldDelivery, from.Delivery, to.Delivery)
	track(fieldCustomer, from.CustomerName, to.CustomerName)
	track(fieldShipment, from.Shipment, to.Shipment)
	track(fieldCreatedBy, from.CreatedBy, to.CreatedBy)
	return changes
}
