package engine

import (
	"testing"
	"time"

	"github.com/rpattn/shiptrack/internal/domain"
)

func snapshot(name string, records ...domain.ScanRecord) *domain.Snapshot {
	return &domain.Snapshot{FileName: name, CapturedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Records: records}
}

func TestDiffAgainstSelfIsEmpty(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := snapshot("a.xlsx",
		scan("SN001", "ASH", "U1", "D1", "P1", base),
		scan("SN002", "SHP", "U2", "D2", "P2", base),
	)

	delta := Diff(s, s, base)
	if !delta.Empty() {
		t.Fatalf("expected empty delta, got %+v", delta)
	}
	if delta.Metadata.AddedCount != 0 || delta.Metadata.RemovedCount != 0 || delta.Metadata.UpdatedCount != 0 {
		t.Fatalf("expected zero counts, got %+v", delta.Metadata)
	}
}

func TestDiffNoPriorSnapshotIsAllAdded(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	current := snapshot("b.xlsx",
		scan("SN001", "ASH", "U1", "D1", "P1", base),
		scan("SN002", "SHP", "U2", "D2", "P2", base),
	)

	delta := Diff(nil, current, base)
	if len(delta.Added) != 2 || len(delta.Removed) != 0 || len(delta.Updated) != 0 {
		t.Fatalf("expected full added set, got %+v", delta)
	}
	if delta.Metadata.BaseSnapshot != "" || delta.Metadata.NewSnapshot != "b.xlsx" {
		t.Fatalf("unexpected metadata: %+v", delta.Metadata)
	}
}

func TestDiffClassifiesUpdated(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	previous := snapshot("prev.xlsx", scan("SN005", "ASH", "U1", "D1", "P1", base))
	current := snapshot("curr.xlsx", scan("SN005", "SHP", "U1", "D1", "P1", base.Add(time.Minute)))

	delta := Diff(previous, current, base)
	if len(delta.Updated) != 1 {
		t.Fatalf("expected one updated entry, got %d", len(delta.Updated))
	}
	entry := delta.Updated[0]
	if entry.Serial != "SN005" {
		t.Fatalf("unexpected serial %s", entry.Serial)
	}
	change, ok := entry.Changes["status"]
	if !ok {
		t.Fatalf("expected status change, got %+v", entry.Changes)
	}
	if change.From != "ASH" || change.To != "SHP" {
		t.Fatalf("unexpected change: %+v", change)
	}
	if len(entry.Changes) != 1 {
		t.Fatalf("expected only the status field to change, got %+v", entry.Changes)
	}
}

func TestDiffClassifiesAddedWithFullRecord(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	previous := snapshot("prev.xlsx", scan("SN001", "ASH", "U1", "D1", "P1", base))
	added := scan("SN010", "ASH", "U2", "D2", "P2", base.Add(time.Minute))
	current := snapshot("curr.xlsx", scan("SN001", "ASH", "U1", "D1", "P1", base), added)

	delta := Diff(previous, current, base)
	if len(delta.Added) != 1 {
		t.Fatalf("expected one added entry, got %d", len(delta.Added))
	}
	if delta.Added[0].Serial != "SN010" || delta.Added[0].Record != added {
		t.Fatalf("expected SN010 with its full record, got %+v", delta.Added[0])
	}
}

func TestDiffSymmetry(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s1 := snapshot("s1.xlsx",
		scan("SN001", "ASH", "U1", "D1", "P1", base),
		scan("SN002", "ASH", "U1", "D1", "P2", base),
		scan("SN003", "ASH", "U2", "D2", "P3", base),
	)
	s2 := snapshot("s2.xlsx",
		scan("SN001", "SHP", "U1", "D1", "P1", base),
		scan("SN003", "ASH", "U2", "D2", "P3", base),
		scan("SN004", "ASH", "U3", "D3", "P4", base),
	)

	forward := Diff(s1, s2, base)
	backward := Diff(s2, s1, base)

	if len(forward.Added) != len(backward.Removed) || len(forward.Removed) != len(backward.Added) {
		t.Fatalf("added/removed not swapped: %+v vs %+v", forward.Metadata, backward.Metadata)
	}
	if forward.Added[0].Serial != backward.Removed[0].Serial {
		t.Fatalf("expected same serials in swapped sets")
	}
	if len(forward.Updated) != len(backward.Updated) {
		t.Fatalf("updated sets differ in size")
	}
	for i := range forward.Updated {
		f := forward.Updated[i]
		b := backward.Updated[i]
		if f.Serial != b.Serial {
			t.Fatalf("updated serial mismatch: %s vs %s", f.Serial, b.Serial)
		}
		for field, change := range f.Changes {
			mirror, ok := b.Changes[field]
			if !ok {
				t.Fatalf("field %s missing from mirrored delta", field)
			}
			if change.From != mirror.To || change.To != mirror.From {
				t.Fatalf("field %s not mirrored: %+v vs %+v", field, change, mirror)
			}
		}
	}
}

func TestDiffOrderIndependent(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := scan("SN001", "ASH", "U1", "D1", "P1", base)
	b := scan("SN002", "SHP", "U2", "D2", "P2", base)
	prev := snapshot("prev.xlsx", a, b)

	current1 := snapshot("curr.xlsx", a, b, scan("SN003", "ASH", "U3", "D3", "P3", base))
	current2 := snapshot("curr.xlsx", scan("SN003", "ASH", "U3", "D3", "P3", base), b, a)

	d1 := Diff(prev, current1, base)
	d2 := Diff(prev, current2, base)

	if len(d1.Added) != 1 || len(d2.Added) != 1 || d1.Added[0].Serial != d2.Added[0].Serial {
		t.Fatalf("row order affected the delta: %+v vs %+v", d1.Added, d2.Added)
	}
}
