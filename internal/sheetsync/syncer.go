package sheetsync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/sheet"
)

// Options configures a Syncer.
type Options struct {
	// Year is the calendar year of sheet dates (0 = current year).
	Year int
	// Location is the timezone the schedule is written in.
	Location *time.Location
	Logger   *zap.Logger
	// Notifier, if set, is told about every completed pass.
	Notifier Notifier
}

// Syncer runs the preview and apply passes.
type Syncer struct {
	reader     sheet.Reader
	parser     *Parser
	matcher    *Matcher
	classifier *Classifier
	applier    *Applier
	notifier   Notifier
	logger     *zap.Logger
}

// New creates a Syncer reading rows from reader and events from store.
//
// The store must have its schema initialized.
//
// Example:
//
//	syncer := sheetsync.New(&sheet.FileReader{Path: "schedule.yaml"}, database, sheetsync.Options{})
//	preview, err := syncer.Preview(ctx)
func New(reader sheet.Reader, store EventStore, opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Syncer{
		reader:     reader,
		parser:     NewParser(opts.Year, loc, logger.Named("parser")),
		matcher:    NewMatcher(store, loc, logger.Named("matcher")),
		classifier: NewClassifier(loc),
		applier:    NewApplier(store, loc, logger.Named("applier")),
		notifier:   opts.Notifier,
		logger:     logger,
	}
}

// Preview fetches the sheet and returns the rows that need operator review.
//
// Rows that already agree with their stored event are left out. Any sheet
// or store failure aborts the pass.
func (s *Syncer) Preview(ctx context.Context) (*PreviewResult, error) {
	rows, err := s.reader.FetchRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet rows: %w", err)
	}

	parsed := s.parser.ParseRows(rows)

	result := &PreviewResult{
		Parsed:    len(parsed.Events),
		Conflicts: []Conflict{},
		Skipped:   parsed.Skipped,
	}

	var unchanged int
	for _, ev := range parsed.Events {
		matched, err := s.matcher.Match(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("failed to match row %d: %w", ev.SheetRowNumber, err)
		}
		conflict := s.classifier.Classify(ev, matched)
		if conflict == nil {
			unchanged++
			continue
		}
		result.Conflicts = append(result.Conflicts, *conflict)
	}

	s.logger.Info("sync preview complete",
		zap.Int("rows", len(rows)),
		zap.Int("parsed", result.Parsed),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("unchanged", unchanged),
		zap.Int("skipped", len(result.Skipped)),
	)

	if s.notifier != nil {
		s.notifier.PreviewReady(result)
	}
	return result, nil
}

// Apply writes the operator's resolutions. It never fails as a whole; see
// ApplyResult.Errors for per-row failures.
func (s *Syncer) Apply(ctx context.Context, resolutions []Resolution) ApplyResult {
	result := s.applier.Apply(ctx, resolutions)
	if s.notifier != nil {
		s.notifier.Applied(result)
	}
	return result
}

// PreviewOnChange runs Preview each time changes fires until ctx is done
// or changes is closed. Failed passes are logged and the loop continues.
// It never applies anything.
func (s *Syncer) PreviewOnChange(ctx context.Context, changes <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if _, err := s.Preview(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("watched preview failed", zap.Error(err))
			}
		}
	}
}
