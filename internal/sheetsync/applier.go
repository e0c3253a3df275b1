package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
)

var (
	errMissingSheetData = errors.New("missing sheet data")
	errStalePreview     = errors.New("event was modified since the sync preview")
)

// Applier writes operator resolutions to the event store.
type Applier struct {
	store  EventStore
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewApplier creates an Applier. Sheet dates and times are interpreted in loc.
func NewApplier(store EventStore, loc *time.Location, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Applier{store: store, loc: loc, now: schema.Now, logger: logger}
}

// Apply processes every resolution independently. A failing resolution is
// recorded as "Row <n>: <message>" and the batch continues.
func (a *Applier) Apply(ctx context.Context, resolutions []Resolution) ApplyResult {
	var result ApplyResult

	for _, r := range resolutions {
		applied, err := a.applyOne(ctx, r)
		if err != nil {
			a.logger.Warn("resolution failed",
				zap.Int("row", r.RowNumber),
				zap.String("action", string(r.Action)),
				zap.String("event_id", r.EventID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", r.RowNumber, describe(err)))
			continue
		}
		if applied {
			result.Applied++
		}
	}

	result.Success = len(result.Errors) == 0
	a.logger.Info("resolutions applied",
		zap.Int("resolutions", len(resolutions)),
		zap.Int("applied", result.Applied),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// applyOne reports whether the resolution wrote anything.
func (a *Applier) applyOne(ctx context.Context, r Resolution) (bool, error) {
	switch r.Action {
	case ActionSkip:
		return false, nil

	case ActionKeepDB:
		if r.EventID == "" {
			return false, nil
		}
		now := a.now()
		if err := a.store.UpdateEvent(ctx, r.EventID, schema.EventPatch{SyncedAt: schema.Set(&now)}); err != nil {
			return false, err
		}
		return true, nil

	case ActionUseSheet:
		if r.SheetData == nil {
			return false, errMissingSheetData
		}
		if r.EventID != "" {
			return true, a.updateFromSheet(ctx, r)
		}
		return true, a.insertFromSheet(ctx, r)

	default:
		return false, fmt.Errorf("unknown action %q", r.Action)
	}
}

func (a *Applier) updateFromSheet(ctx context.Context, r Resolution) error {
	start, err := startInstant(r.SheetData.Date, r.SheetData.Time, a.loc)
	if err != nil {
		return err
	}
	now := a.now()
	row := r.RowNumber
	patch := schema.EventPatch{
		StartDate:            schema.Set(start),
		Location:             schema.Set(copyStr(r.SheetData.Location)),
		DayOfWeek:            schema.Set(copyStr(r.SheetData.DayOfWeek)),
		GoogleSheetRowNumber: schema.Set(&row),
		SyncedAt:             schema.Set(&now),
		IfUpdatedAt:          r.ExpectedUpdatedAt,
	}
	return a.store.UpdateEvent(ctx, r.EventID, patch)
}

func (a *Applier) insertFromSheet(ctx context.Context, r Resolution) error {
	start, err := startInstant(r.SheetData.Date, r.SheetData.Time, a.loc)
	if err != nil {
		return err
	}
	now := a.now()
	row := r.RowNumber
	e := &schema.Event{
		Title:                "Event " + r.SheetData.Date,
		Category:             schema.CategoryWeekly,
		Public:               false,
		StartDate:            start,
		Location:             copyStr(r.SheetData.Location),
		DayOfWeek:            copyStr(r.SheetData.DayOfWeek),
		GoogleSheetRowNumber: &row,
		SyncedAt:             &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	e.SetDefaults()
	return a.store.InsertEvent(ctx, e)
}

func describe(err error) string {
	switch {
	case errors.Is(err, store.ErrStale):
		return errStalePreview.Error()
	case errors.Is(err, store.ErrNotFound):
		return store.ErrNotFound.Error()
	default:
		return err.Error()
	}
}
