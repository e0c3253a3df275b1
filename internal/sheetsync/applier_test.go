package sheetsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusstage/stagesync/internal/schema"
)

func fixedNow() time.Time { return time.Date(2026, 1, 20, 3, 0, 0, 0, time.UTC) }

func newTestApplier(s EventStore) *Applier {
	a := NewApplier(s, ict, nil)
	a.now = fixedNow
	return a
}

func TestApply_PartialFailure(t *testing.T) {
	ok := storedEvent("ok", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 2)
	broken := storedEvent("broken", time.Date(2026, 2, 1, 14, 0, 0, 0, ict), "Temple", 3)
	s := newMemStore(ok, broken)
	s.failIDs["broken"] = errors.New("database is locked")

	res := newTestApplier(s).Apply(context.Background(), []Resolution{
		{RowNumber: 2, Action: ActionKeepDB, EventID: "ok"},
		{RowNumber: 3, Action: ActionKeepDB, EventID: "broken"},
	})

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []string{"Row 3: database is locked"}, res.Errors)
}

func TestApply_UseSheetInsertsPrivateWeekly(t *testing.T) {
	s := newMemStore()
	res := newTestApplier(s).Apply(context.Background(), []Resolution{
		{RowNumber: 2, Action: ActionUseSheet, SheetData: &ParsedEvent{Date: "2026-02-01", DayOfWeek: ptr("Sunday"), Time: ptr("11:00"), Location: ptr("Temple"), SheetRowNumber: 2}},
		{RowNumber: 3, Action: ActionUseSheet, SheetData: &ParsedEvent{Date: "2026-02-01", DayOfWeek: ptr("Sunday"), Time: ptr("TBA"), Location: ptr("Temple"), SheetRowNumber: 3}},
	})

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 2, res.Applied)

	events := s.all()
	require.Len(t, events, 2)

	midnight := events[0]
	assert.True(t, midnight.StartDate.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, ict)), "TBA start = %v", midnight.StartDate)
	assert.Equal(t, 3, *midnight.GoogleSheetRowNumber)

	timed := events[1]
	assert.True(t, timed.StartDate.Equal(time.Date(2026, 2, 1, 11, 0, 0, 0, ict)), "start = %v", timed.StartDate)
	assert.Equal(t, "Event 2026-02-01", timed.Title)
	assert.Equal(t, 2, *timed.GoogleSheetRowNumber)

	for _, e := range events {
		assert.False(t, e.Public)
		assert.Equal(t, schema.CategoryWeekly, e.Category)
		assert.Equal(t, "Temple", *e.Location)
		assert.Equal(t, "Sunday", *e.DayOfWeek)
		require.NotNil(t, e.SyncedAt)
		assert.True(t, e.SyncedAt.Equal(fixedNow()))
	}
}

func TestApply_UseSheetUpdatesScheduleOnly(t *testing.T) {
	e := storedEvent("ev", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 0)
	e.Title = "Lion dance"
	e.Public = true
	e.Category = schema.CategorySpecial
	s := newMemStore(e)

	res := newTestApplier(s).Apply(context.Background(), []Resolution{{
		RowNumber: 7,
		Action:    ActionUseSheet,
		EventID:   "ev",
		SheetData: &ParsedEvent{Date: "2026-02-08", DayOfWeek: ptr("Sunday"), Time: ptr("14:30"), Location: ptr("Market"), SheetRowNumber: 7},
	}})
	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.Applied)

	got := s.get("ev")
	assert.True(t, got.StartDate.Equal(time.Date(2026, 2, 8, 14, 30, 0, 0, ict)))
	assert.Equal(t, "Market", *got.Location)
	assert.Equal(t, "Sunday", *got.DayOfWeek)
	assert.Equal(t, 7, *got.GoogleSheetRowNumber)
	assert.Equal(t, "Lion dance", got.Title)
	assert.True(t, got.Public)
	assert.Equal(t, schema.CategorySpecial, got.Category)
}

func TestApply_KeepDBStampsSyncedAtOnly(t *testing.T) {
	start := time.Date(2026, 2, 1, 11, 0, 0, 0, ict)
	e := storedEvent("ev", start, "Temple", 2)
	s := newMemStore(e)

	res := newTestApplier(s).Apply(context.Background(), []Resolution{
		{RowNumber: 2, Action: ActionKeepDB, EventID: "ev"},
		{RowNumber: 3, Action: ActionKeepDB},
		{RowNumber: 4, Action: ActionSkip, EventID: "ev"},
	})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Applied)

	got := s.get("ev")
	require.NotNil(t, got.SyncedAt)
	assert.True(t, got.SyncedAt.Equal(fixedNow()))
	assert.True(t, got.StartDate.Equal(start))
	assert.Equal(t, "Temple", *got.Location)
}

func TestApply_PerRowErrors(t *testing.T) {
	e := storedEvent("ev", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 2)
	s := newMemStore(e)
	stale := e.UpdatedAt.Add(-time.Hour)

	res := newTestApplier(s).Apply(context.Background(), []Resolution{
		{RowNumber: 2, Action: ActionUseSheet},
		{RowNumber: 3, Action: "overwrite"},
		{RowNumber: 4, Action: ActionKeepDB, EventID: "missing"},
		{RowNumber: 5, Action: ActionUseSheet, EventID: "ev", ExpectedUpdatedAt: &stale,
			SheetData: &ParsedEvent{Date: "2026-02-01", Time: ptr("12:00"), SheetRowNumber: 5}},
		{RowNumber: 6, Action: ActionUseSheet, SheetData: &ParsedEvent{Date: "not-a-date", SheetRowNumber: 6}},
	})

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Applied)
	require.Len(t, res.Errors, 5)
	assert.Equal(t, "Row 2: missing sheet data", res.Errors[0])
	assert.Equal(t, `Row 3: unknown action "overwrite"`, res.Errors[1])
	assert.Equal(t, "Row 4: event not found", res.Errors[2])
	assert.Equal(t, "Row 5: event was modified since the sync preview", res.Errors[3])
	assert.Contains(t, res.Errors[4], "Row 6: invalid date")
}

func TestApply_ConditionalUpdateWithCurrentToken(t *testing.T) {
	e := storedEvent("ev", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 2)
	s := newMemStore(e)
	token := e.UpdatedAt

	res := newTestApplier(s).Apply(context.Background(), []Resolution{{
		RowNumber: 2, Action: ActionUseSheet, EventID: "ev", ExpectedUpdatedAt: &token,
		SheetData: &ParsedEvent{Date: "2026-02-01", Time: ptr("12:00"), Location: ptr("Temple"), SheetRowNumber: 2},
	}})
	assert.True(t, res.Success, "errors: %v", res.Errors)
	assert.Equal(t, 1, res.Applied)
}
