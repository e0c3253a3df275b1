// Package loadtest measures how the event store holds up under the access
// pattern of a busy events page: many concurrent readers listing a month
// of public events and looking up sheet rows, while an operator publishes
// and edits events.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
)

// SeedOptions controls the generated calendar.
type SeedOptions struct {
	// Events is the number of events to create.
	Events int
	// Start is the first event day (default: the start of the current month).
	Start time.Time
	// PublicPct is the share of published events, between 0 and 1.
	PublicPct float64
}

// Dataset is a seeded store.
type Dataset struct {
	DB       *store.DB
	IDs      []string
	Public   int
	From, To time.Time
}

// LatencyStats captures query latency from a run.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Writes       int
	Errors       int
}

// RunOptions controls a load run.
type RunOptions struct {
	// Readers is the number of concurrent readers.
	Readers int
	// QueriesPerReader is how many queries each reader issues.
	QueriesPerReader int
	// Writers is the number of concurrent writers toggling events between
	// public and private while the readers run.
	Writers int
}

var locations = []string{"Temple", "Market", "Riverside stage", "Community hall"}

// Seed fills db with a generated calendar: two shows a day at 11:00 and
// 14:00, rotating through a few locations, each linked to a sheet row.
func Seed(ctx context.Context, db *store.DB, opts SeedOptions) (*Dataset, error) {
	if opts.Events <= 0 {
		return nil, fmt.Errorf("events must be positive (got %d)", opts.Events)
	}
	start := opts.Start
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	db.RawDB().SetMaxOpenConns(64)
	db.RawDB().SetMaxIdleConns(16)

	// Deterministic so runs are comparable.
	rng := rand.New(rand.NewSource(42))

	ds := &Dataset{DB: db, IDs: make([]string, 0, opts.Events)}
	for i := 0; i < opts.Events; i++ {
		day := start.AddDate(0, 0, i/2)
		hour := 11
		if i%2 == 1 {
			hour = 14
		}
		loc := locations[(i/2)%len(locations)]
		weekday := day.Weekday().String()
		row := i + 2

		e := &schema.Event{
			Title:                fmt.Sprintf("Show %d at %s", i, loc),
			StartDate:            time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC),
			Location:             &loc,
			DayOfWeek:            &weekday,
			GoogleSheetRowNumber: &row,
			Public:               rng.Float64() < opts.PublicPct,
		}
		e.SetDefaults()
		if err := db.InsertEvent(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to insert event %d: %w", i, err)
		}
		ds.IDs = append(ds.IDs, e.ID)
		if e.Public {
			ds.Public++
		}
		if i == 0 {
			ds.From = e.StartDate
		}
		ds.To = e.StartDate
	}
	return ds, nil
}

// Run issues queries from opts.Readers goroutines and returns their latency.
// Reader queries alternate between a month listing of public events and a
// sheet row lookup. Writers, if any, run until the readers finish.
func (ds *Dataset) Run(ctx context.Context, opts RunOptions) (*LatencyStats, error) {
	if opts.Readers <= 0 || opts.QueriesPerReader <= 0 {
		return nil, fmt.Errorf("readers and queries per reader must be positive")
	}

	var (
		mu        sync.Mutex
		durations = make([]time.Duration, 0, opts.Readers*opts.QueriesPerReader)
		writes    int
	)

	writeCtx, stopWriters := context.WithCancel(ctx)
	defer stopWriters()
	writers, wctx := errgroup.WithContext(writeCtx)
	for w := 0; w < opts.Writers; w++ {
		writers.Go(func() error {
			n, err := ds.write(wctx, w)
			mu.Lock()
			writes += n
			mu.Unlock()
			return err
		})
	}

	readers, rctx := errgroup.WithContext(ctx)
	for r := 0; r < opts.Readers; r++ {
		readers.Go(func() error {
			local := make([]time.Duration, 0, opts.QueriesPerReader)
			for q := 0; q < opts.QueriesPerReader; q++ {
				start := time.Now()
				if err := ds.read(rctx, r+q); err != nil {
					return fmt.Errorf("reader %d query %d failed: %w", r, q, err)
				}
				local = append(local, time.Since(start))
			}
			mu.Lock()
			durations = append(durations, local...)
			mu.Unlock()
			return nil
		})
	}

	readErr := readers.Wait()
	stopWriters()
	writeErr := writers.Wait()
	if readErr != nil {
		return nil, readErr
	}
	if writeErr != nil {
		return nil, writeErr
	}

	stats := computeLatencyStats(durations)
	stats.Writes = writes
	return stats, nil
}

func (ds *Dataset) read(ctx context.Context, n int) error {
	if n%2 == 0 {
		days := int(ds.To.Sub(ds.From).Hours()/24) + 1
		from := ds.From.AddDate(0, 0, n%days)
		to := from.AddDate(0, 1, 0)
		_, err := ds.DB.FindEvents(ctx, schema.EventFilter{StartFrom: &from, StartTo: &to, PublicOnly: true})
		return err
	}
	row := n%len(ds.IDs) + 2
	_, err := ds.DB.FindEvents(ctx, schema.EventFilter{RowNumber: &row})
	return err
}

// write toggles events' visibility with a conditional update until ctx is
// done. Lost races with other writers are expected and not counted.
func (ds *Dataset) write(ctx context.Context, worker int) (int, error) {
	var n int
	for i := worker; ; i += 7 {
		if ctx.Err() != nil {
			return n, nil
		}
		id := ds.IDs[i%len(ds.IDs)]
		e, err := ds.DB.GetEvent(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return n, nil
			}
			return n, fmt.Errorf("writer %d read failed: %w", worker, err)
		}
		token := e.UpdatedAt
		err = ds.DB.UpdateEvent(ctx, id, schema.EventPatch{
			Public:            schema.Set(!e.Public),
			IfUpdatedAt:       &token,
		})
		switch {
		case err == nil:
			n++
		case errors.Is(err, store.ErrStale):
		case ctx.Err() != nil:
			return n, nil
		default:
			return n, fmt.Errorf("writer %d update failed: %w", worker, err)
		}
	}
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(sorted)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(sorted),
	}
}

// Fprint writes the statistics in a human-readable form.
func (s *LatencyStats) Fprint(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Queries: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Writes:        %d\n", s.Writes)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
