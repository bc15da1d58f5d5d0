package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/plexlights/plexlightsd/internal/db"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func sampleOutcomes() []provider.Outcome {
	return []provider.Outcome{
		{Provider: provider.KindHue, Success: true, Detail: "2 lights updated"},
		{Provider: provider.KindGovee, Success: false, Detail: "device offline"},
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append("dispatch-1", mode.Movie, sampleOutcomes(), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append("dispatch-2", mode.Normal, []provider.Outcome{
		{Provider: provider.KindHue, Success: true, Detail: "2 lights updated"},
	}, false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	// Newest first: the second dispatch leads.
	if records[0].DispatchID != "dispatch-2" {
		t.Errorf("records[0].DispatchID = %s, want dispatch-2", records[0].DispatchID)
	}
	if records[0].Mode != "normal" {
		t.Errorf("records[0].Mode = %s, want normal", records[0].Mode)
	}

	if records[1].DispatchID != "dispatch-1" || records[2].DispatchID != "dispatch-1" {
		t.Error("older dispatch records must follow the newest dispatch")
	}

	var goveeRec *Record
	for _, rec := range records {
		if rec.Provider == provider.KindGovee {
			goveeRec = rec
		}
	}
	if goveeRec == nil {
		t.Fatal("govee record missing")
	}
	if goveeRec.Success {
		t.Error("govee record Success = true, want false")
	}
	if goveeRec.Detail != "device offline" {
		t.Errorf("govee record Detail = %q, want device offline", goveeRec.Detail)
	}
	if goveeRec.DryRun {
		t.Error("govee record DryRun = true, want false")
	}
	if goveeRec.Timestamp.IsZero() {
		t.Error("record timestamp not set")
	}
}

func TestRecent_Limit(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("dispatch-1", mode.Movie, sampleOutcomes(), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestByDispatch(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("dispatch-1", mode.Pause, sampleOutcomes(), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append("dispatch-2", mode.Normal, sampleOutcomes(), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.ByDispatch("dispatch-1")
	if err != nil {
		t.Fatalf("ByDispatch() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Provider != provider.KindHue || records[1].Provider != provider.KindGovee {
		t.Errorf("records out of insert order: %s, %s", records[0].Provider, records[1].Provider)
	}
	for _, rec := range records {
		if rec.Mode != "pause" {
			t.Errorf("Mode = %s, want pause", rec.Mode)
		}
	}
}

func TestAppend_NoOutcomes(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("dispatch-1", mode.Movie, nil, false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0 for an outcome-less dispatch", len(records))
	}
}

func TestDryRunFlagRoundTrips(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("dispatch-1", mode.Movie, sampleOutcomes()[:1], true); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records, err := s.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 || !records[0].DryRun {
		t.Error("dry_run flag did not round-trip")
	}
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	if err := s.Append("dispatch-new", mode.Movie, sampleOutcomes()[:1], false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	old := time.Now().Add(-72 * time.Hour).Unix()
	_, err := s.db.Exec(`
		INSERT INTO dispatch_history (dispatch_id, timestamp, mode, provider, success, detail, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, "dispatch-old", old, "normal", "hue", true, "", false)
	if err != nil {
		t.Fatalf("insert old record: %v", err)
	}

	deleted, err := s.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	records, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 || records[0].DispatchID != "dispatch-new" {
		t.Errorf("surviving records = %+v, want only dispatch-new", records)
	}
}
