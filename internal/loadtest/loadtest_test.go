package loadtest

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "load.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	ds, err := Seed(ctx, db, SeedOptions{Events: 20, Start: start, PublicPct: 0.5})
	if err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	if len(ds.IDs) != 20 {
		t.Errorf("seeded %d events, want 20", len(ds.IDs))
	}
	if ds.Public == 0 || ds.Public == 20 {
		t.Errorf("Public = %d, want a mix", ds.Public)
	}
	if !ds.From.Equal(time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("From = %v", ds.From)
	}
	if !ds.To.Equal(time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("To = %v", ds.To)
	}

	counts, err := db.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents() failed: %v", err)
	}
	if counts.Total != 20 || counts.Synced != 20 || counts.Public != ds.Public {
		t.Errorf("CountEvents() = %+v, public want %d", counts, ds.Public)
	}

	row := 3
	got, err := db.FindEvents(ctx, schema.EventFilter{RowNumber: &row})
	if err != nil {
		t.Fatalf("FindEvents() failed: %v", err)
	}
	if len(got) != 1 || got[0].StartDate.Hour() != 14 {
		t.Errorf("row 3 = %+v, want the 14:00 show", got)
	}

	if _, err := Seed(ctx, db, SeedOptions{}); err == nil {
		t.Error("Seed() with zero events expected error")
	}
}

func TestRun_ReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	ds, err := Seed(ctx, db, SeedOptions{Events: 60, PublicPct: 0.3})
	if err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	stats, err := ds.Run(ctx, RunOptions{Readers: 8, QueriesPerReader: 10, Writers: 2})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if stats.TotalQueries != 80 {
		t.Errorf("TotalQueries = %d, want 80", stats.TotalQueries)
	}
	if stats.Min > stats.P50 || stats.P50 > stats.P95 || stats.P95 > stats.Max {
		t.Errorf("percentiles out of order: %+v", stats)
	}

	var buf bytes.Buffer
	stats.Fprint(&buf)
	if !strings.Contains(buf.String(), "Total Queries: 80") {
		t.Errorf("Fprint() output missing total:\n%s", buf.String())
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	ds := &Dataset{}
	if _, err := ds.Run(context.Background(), RunOptions{}); err == nil {
		t.Error("Run() with no readers expected error")
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}
	s := computeLatencyStats(durations)

	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("Min/Max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v, want 51ms", s.P50)
	}
	if s.P99 != 100*time.Millisecond {
		t.Errorf("P99 = %v, want 100ms", s.P99)
	}
	if s.Mean != 50500*time.Microsecond {
		t.Errorf("Mean = %v, want 50.5ms", s.Mean)
	}
	if durations[0] != 100*time.Millisecond {
		t.Error("input slice was reordered")
	}

	if empty := computeLatencyStats(nil); empty.TotalQueries != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
