package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/shiptrack/internal/domain"
)

// RawRow is one parsed spreadsheet row keyed by sanitized column name.
type RawRow map[string]string

// Column names as produced by the reader's header sanitization.
const (
	colSerial       = "serial"
	colStatus       = "status"
	colDelivery     = "delivery"
	colCustomer     = "customer_name"
	colShipment     = "shipment_number"
	colPallet       = "pallet"
	colWarehouse    = "warehouse_number"
	colCreatedBy    = "created_by"
	colCreatedOn    = "created_on"
	colTime         = "time"
	colParentSerial = "parent_serial_number"

	colPackages      = "number_of_packages"
	colShippingPoint = "shipping_point"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"02.01.2006 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// Recorder receives rejected rows. A nil Recorder disables persistence;
// rejects are still counted and logged.
type Recorder interface {
	Record(ctx context.Context, entry domain.RejectLogEntry) error
}

// MalformedRowError names a row that could not be turned into a record.
type MalformedRowError struct {
	Row    int
	Field  string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: field %s: %s", e.Row, e.Field, e.Reason)
}

// Options configures record construction for one source file.
type Options struct {
	Warehouse string // filter; rows from other warehouses drop silently
	Source    string
	FileName  string
	Recorder  Recorder
}

// BuildScanRecords constructs typed scan records from raw rows.
// Rows that fail a filter (warehouse mismatch, child serial) are dropped
// silently; rows missing a required field or with an unparseable timestamp
// are rejected and counted. Row numbers are 1-based including the header.
func BuildScanRecords(ctx context.Context, rows []RawRow, opts Options) ([]domain.ScanRecord, int) {
	records := make([]domain.ScanRecord, 0, len(rows))
	rejected := 0

	for idx, row := range rows {
		rowNumber := idx + 2 // header occupies row 1

		if strings.TrimSpace(row[colParentSerial]) != "" {
			// Child serial; only parent-level records count for progress.
			continue
		}
		if opts.Warehouse != "" && strings.TrimSpace(row[colWarehouse]) != opts.Warehouse {
			continue
		}

		record, err := buildScanRecord(row, rowNumber)
		if err != nil {
			rejected++
			recordReject(ctx, opts, rowNumber, err)
			continue
		}
		records = append(records, record)
	}

	return records, rejected
}

func buildScanRecord(row RawRow, rowNumber int) (domain.ScanRecord, error) {
	serial := strings.TrimSpace(row[colSerial])
	if serial == "" {
		return domain.ScanRecord{}, &MalformedRowError{Row: rowNumber, Field: colSerial, Reason: "missing value"}
	}
	status := strings.TrimSpace(row[colStatus])
	if status == "" {
		return domain.ScanRecord{}, &MalformedRowError{Row: rowNumber, Field: colStatus, Reason: "missing value"}
	}
	timestamp, err := CombineTimestamp(row[colCreatedOn], row[colTime])
	if err != nil {
		return domain.ScanRecord{}, &MalformedRowError{Row: rowNumber, Field: colCreatedOn, Reason: err.Error()}
	}

	return domain.ScanRecord{
		Serial:       serial,
		Status:       status,
		Delivery:     SanitizeDelivery(row[colDelivery]),
		CustomerName: strings.TrimSpace(row[colCustomer]),
		Shipment:     strings.TrimSpace(row[colShipment]),
		PackageID:    strings.TrimSpace(row[colPallet]),
		Warehouse:    strings.TrimSpace(row[colWarehouse]),
		CreatedBy:    strings.TrimSpace(row[colCreatedBy]),
		Timestamp:    timestamp,
	}, nil
}

// BuildDeliveryTotals constructs delivery totals from raw rows. Duplicate
// delivery numbers collapse to the first occurrence, matching the export's
// one-row-per-delivery contract.
func BuildDeliveryTotals(ctx context.Context, rows []RawRow, opts Options) ([]domain.DeliveryTotal, int) {
	totals := make([]domain.DeliveryTotal, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	rejected := 0

	for idx, row := range rows {
		rowNumber := idx + 2

		delivery := SanitizeDelivery(row[colDelivery])
		if delivery == "" {
			rejected++
			recordReject(ctx, opts, rowNumber, &MalformedRowError{Row: rowNumber, Field: colDelivery, Reason: "missing value"})
			continue
		}
		if seen[delivery] {
			continue
		}

		packages, err := parsePackageCount(row[colPackages])
		if err != nil {
			rejected++
			recordReject(ctx, opts, rowNumber, &MalformedRowError{Row: rowNumber, Field: colPackages, Reason: err.Error()})
			continue
		}

		seen[delivery] = true
		totals = append(totals, domain.DeliveryTotal{
			Delivery:      delivery,
			TotalPackages: packages,
			ShippingPoint: strings.TrimSpace(row[colShippingPoint]),
		})
	}

	return totals, rejected
}

// CombineTimestamp joins a date field and a time field into one instant.
func CombineTimestamp(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, fmt.Errorf("missing date value")
	}

	candidates := []string{date}
	if clock != "" {
		candidates = []string{date + " " + clock, date}
	}
	for _, candidate := range candidates {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, candidate); err == nil {
				return ts, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", strings.TrimSpace(date+" "+clock))
}

// SanitizeDelivery strips a trailing decimal part left behind by numeric
// spreadsheet cells ("12345.0" becomes "12345").
func SanitizeDelivery(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		return value[:idx]
	}
	return value
}

func parsePackageCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing value")
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if i < 0 {
			return 0, fmt.Errorf("negative package count %d", i)
		}
		return int(i), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && math.Mod(f, 1) == 0 {
		if f < 0 {
			return 0, fmt.Errorf("negative package count %v", f)
		}
		return int(f), nil
	}
	return 0, fmt.Errorf("unable to coerce %q to integer", raw)
}

func recordReject(ctx context.Context, opts Options, rowNumber int, err error) {
	if err == nil {
		return
	}
	if opts.Recorder == nil {
		return
	}
	row := rowNumber
	_ = opts.Recorder.Record(ctx, domain.RejectLogEntry{
		Source:       opts.Source,
		FileName:     opts.FileName,
		RowNumber:    &row,
		ErrorMessage: err.Error(),
	})
}
