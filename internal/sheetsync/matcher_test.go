package sheetsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lotusstage/stagesync/internal/schema"
)

var ict = time.FixedZone("ICT", 7*3600)

func storedEvent(id string, start time.Time, location string, row int) *schema.Event {
	e := &schema.Event{ID: id, Title: "Event " + id, StartDate: start}
	if location != "" {
		e.Location = &location
	}
	if row > 0 {
		e.GoogleSheetRowNumber = &row
	}
	e.SetDefaults()
	return e
}

func TestMatch_RowNumberTakesPrecedence(t *testing.T) {
	linked := storedEvent("linked", time.Date(2026, 1, 10, 18, 0, 0, 0, ict), "Market", 5)
	sameDay := storedEvent("same-day", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 0)
	m := NewMatcher(newMemStore(linked, sameDay), ict, nil)

	ev := ParsedEvent{Date: "2026-02-01", Time: ptr("11:00"), Location: ptr("Temple"), SheetRowNumber: 5}
	got, err := m.Match(context.Background(), ev)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if got == nil || got.ID != "linked" {
		t.Errorf("Match() = %v, want the event linked to row 5", got)
	}
}

func TestMatch_DayLocationAndTime(t *testing.T) {
	morning := storedEvent("morning", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 0)
	afternoon := storedEvent("afternoon", time.Date(2026, 2, 1, 14, 0, 0, 0, ict), "Temple", 0)
	market := storedEvent("market", time.Date(2026, 2, 1, 14, 0, 0, 0, ict), "Market", 0)
	nextDay := storedEvent("next-day", time.Date(2026, 2, 2, 14, 0, 0, 0, ict), "Temple", 0)
	m := NewMatcher(newMemStore(morning, afternoon, market, nextDay), ict, nil)

	tests := []struct {
		name string
		ev   ParsedEvent
		want string
	}{
		{"time picks among candidates", ParsedEvent{Date: "2026-02-01", Time: ptr("14:00"), Location: ptr("Temple"), SheetRowNumber: 9}, "afternoon"},
		{"ambiguous without time match", ParsedEvent{Date: "2026-02-01", Time: ptr("16:00"), Location: ptr("Temple"), SheetRowNumber: 9}, ""},
		{"ambiguous with TBA", ParsedEvent{Date: "2026-02-01", Time: ptr("TBA"), Location: ptr("Temple"), SheetRowNumber: 9}, ""},
		{"single candidate accepted", ParsedEvent{Date: "2026-02-01", Time: ptr("09:00"), Location: ptr("Market"), SheetRowNumber: 9}, "market"},
		{"single candidate without time", ParsedEvent{Date: "2026-02-02", Location: ptr("Temple"), SheetRowNumber: 9}, "next-day"},
		{"location must match exactly", ParsedEvent{Date: "2026-02-01", Time: ptr("14:00"), Location: ptr("temple"), SheetRowNumber: 9}, ""},
		{"no location, no match", ParsedEvent{Date: "2026-02-01", Time: ptr("14:00"), SheetRowNumber: 9}, ""},
		{"other day", ParsedEvent{Date: "2026-02-03", Time: ptr("14:00"), Location: ptr("Temple"), SheetRowNumber: 9}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(context.Background(), tt.ev)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.want {
				t.Errorf("Match() = %q, want %q", gotID, tt.want)
			}
		})
	}
}

func TestMatch_DuplicateRowLinksFallThrough(t *testing.T) {
	a := storedEvent("a", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 4)
	b := storedEvent("b", time.Date(2026, 3, 1, 11, 0, 0, 0, ict), "Market", 4)
	m := NewMatcher(newMemStore(a, b), ict, nil)

	got, err := m.Match(context.Background(), ParsedEvent{Date: "2026-03-01", Time: ptr("11:00"), Location: ptr("Market"), SheetRowNumber: 4})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if got == nil || got.ID != "b" {
		t.Errorf("Match() = %v, want day+location match b", got)
	}
}

func TestMatch_StoreError(t *testing.T) {
	s := newMemStore()
	s.findErr = errors.New("connection reset")
	m := NewMatcher(s, ict, nil)

	_, err := m.Match(context.Background(), ParsedEvent{Date: "2026-02-01", SheetRowNumber: 2})
	if err == nil || !errors.Is(err, s.findErr) {
		t.Errorf("Match() error = %v, want wrapped store error", err)
	}
}
