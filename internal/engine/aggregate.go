package engine

import (
	"log"
	"sort"

	"github.com/rpattn/shiptrack/internal/domain"
)

// Aggregate rolls resolved scan records up into one row per (user, delivery)
// pair. Scans collapse to one representative record per (user, delivery,
// package) triple first, so re-scanned packages count once. Delivery totals
// left-join by delivery number; a missing total stays nil to keep "no data"
// distinct from "zero packages".
func Aggregate(records []domain.ScanRecord, totals []domain.DeliveryTotal, mapping domain.StatusMapping) []domain.AggregateRow {
	type packageKey struct {
		user     string
		delivery string
		pkg      string
	}

	// One representative record per package; last write within the
	// snapshot wins, mirroring the resolver's tie rule.
	order := make([]packageKey, 0, len(records))
	representative := make(map[packageKey]domain.ScanRecord, len(records))
	for _, record := range records {
		pkg := record.PackageID
		if pkg == "" {
			// No pallet assigned; the serial is its own package.
			pkg = record.Serial
		}
		key := packageKey{user: record.CreatedBy, delivery: record.Delivery, pkg: pkg}
		if _, seen := representative[key]; !seen {
			order = append(order, key)
		}
		representative[key] = record
	}

	totalByDelivery := make(map[string]int, len(totals))
	for _, total := range totals {
		totalByDelivery[total.Delivery] = total.TotalPackages
	}

	type groupKey struct {
		user     string
		delivery string
	}

	rowByGroup := make(map[groupKey]*domain.AggregateRow)
	groups := make([]groupKey, 0)

	for _, key := range order {
		record := representative[key]
		group := groupKey{user: key.user, delivery: key.delivery}
		row, ok := rowByGroup[group]
		if !ok {
			row = &domain.AggregateRow{User: group.user, Delivery: group.delivery}
			if total, found := totalByDelivery[group.delivery]; found {
				t := total
				row.DeliveryTotalPackages = &t
			}
			rowByGroup[group] = row
			groups = append(groups, group)
		}

		row.ScannedPackages++
		if mapping.Classify(record.Status) == domain.StatusShipped {
			row.ShippedCount++
		} else {
			row.PickedCount++
		}
	}

	rows := make([]domain.AggregateRow, 0, len(groups))
	for _, group := range groups {
		row := rowByGroup[group]
		if row.DeliveryTotalPackages != nil && row.ScannedPackages > *row.DeliveryTotalPackages {
			log.Printf("[aggregate] user %s delivery %s: scanned %d exceeds delivery total %d",
				row.User, row.Delivery, row.ScannedPackages, *row.DeliveryTotalPackages)
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].User != rows[j].User {
			return rows[i].User < rows[j].User
		}
		return rows[i].Delivery < rows[j].Delivery
	})

	return rows
}
