package sheetsync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/schema"
)

// Matcher finds the stored event a parsed row corresponds to.
//
// Only exact field equality is used. An ambiguous match is reported as no
// match, so the row shows up as new instead of overwriting the wrong event.
type Matcher struct {
	store  EventStore
	loc    *time.Location
	logger *zap.Logger
}

// NewMatcher creates a Matcher that interprets dates in loc.
func NewMatcher(store EventStore, loc *time.Location, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Matcher{store: store, loc: loc, logger: logger}
}

// Match returns the stored event for ev, or nil when there is none.
//
// Lookup order, first hit wins:
//  1. the single event linked to the same sheet row
//  2. events on the same local day at the same location, preferring the
//     one whose local HH:mm equals the row's time
//  3. the only event on that day and location
func (m *Matcher) Match(ctx context.Context, ev ParsedEvent) (*schema.Event, error) {
	row := ev.SheetRowNumber
	linked, err := m.store.FindEvents(ctx, schema.EventFilter{RowNumber: &row, Limit: 2})
	if err != nil {
		return nil, fmt.Errorf("failed to look up row %d: %w", row, err)
	}
	switch len(linked) {
	case 1:
		return linked[0], nil
	case 0:
	default:
		m.logger.Warn("sheet row linked to several events", zap.Int("row", row))
	}

	if ev.Location == nil {
		return nil, nil
	}

	start, end, err := dayBounds(ev.Date, m.loc)
	if err != nil {
		return nil, err
	}
	candidates, err := m.store.FindEvents(ctx, schema.EventFilter{
		StartFrom: &start,
		StartTo:   &end,
		Location:  ev.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up events on %s: %w", ev.Date, err)
	}

	if clock := clockOf(ev.Time); clock != "" {
		for _, c := range candidates {
			if c.StartDate.In(m.loc).Format("15:04") == clock {
				return c, nil
			}
		}
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if len(candidates) > 1 {
		m.logger.Debug("ambiguous day and location match",
			zap.Int("row", row),
			zap.String("date", ev.Date),
			zap.Int("candidates", len(candidates)),
		)
	}
	return nil, nil
}
