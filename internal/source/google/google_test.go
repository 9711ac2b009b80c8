package google

import (
	"testing"

	"vahan/internal/ingest"
)

func TestToRowsConvertsMixedCellTypes(t *testing.T) {
	values := [][]interface{}{
		{"Date", "Category", "Manufacturer", "Registrations"},
		{"2024-01-15", "TWO WHEELER", "Hero", 1200},
		{"2024-02-15", "4W", "Tata Motors", "1,050"},
	}

	recs, err := ingest.FromRows(toRows(values))
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Category != "2W" || recs[0].Count != 1200 {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].Count != 1050 {
		t.Errorf("second record count = %d, want 1050", recs[1].Count)
	}
}

func TestToRowsRaggedRows(t *testing.T) {
	values := [][]interface{}{
		{"Date", "Category", "Manufacturer", "Registrations"},
		{"2024-01-15", "2W"},
	}

	if _, err := ingest.FromRows(toRows(values)); err == nil {
		t.Fatal("expected parse error for truncated row")
	}
}
