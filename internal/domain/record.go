package domain

import "time"

// ScanRecord is one serial-level scan event captured from a snapshot file.
// Records are immutable once captured; the engine only ever builds new sets.
type ScanRecord struct {
	Serial       string    `json:"serial"`
	Status       string    `json:"status"`
	Delivery     string    `json:"delivery"`
	CustomerName string    `json:"customer_name"`
	Shipment     string    `json:"shipment_number"`
	PackageID    string    `json:"package_id"`
	Warehouse    string    `json:"warehouse"`
	CreatedBy    string    `json:"created_by"`
	Timestamp    time.Time `json:"timestamp"`
}

// DeliveryTotal is the delivery-level package count reported by the
// delivery export. One per delivery per snapshot.
type DeliveryTotal struct {
	Delivery      string `json:"delivery"`
	TotalPackages int    `json:"total_packages"`
	ShippingPoint string `json:"shipping_point,omitempty"`
}

// Snapshot is an ordered, immutable set of scan records captured from a
// single source file, identified by that file's name and capture time.
type Snapshot struct {
	FileName   string       `json:"file_name"`
	CapturedAt time.Time    `json:"captured_at"`
	Records    []ScanRecord `json:"records"`
}

// DeliverySnapshot is the delivery-totals counterpart of Snapshot.
type DeliverySnapshot struct {
	FileName   string          `json:"file_name"`
	CapturedAt time.Time       `json:"captured_at"`
	Totals     []DeliveryTotal `json:"totals"`
}
