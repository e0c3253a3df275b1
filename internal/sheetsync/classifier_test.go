package sheetsync

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(ict)

	base := func() ParsedEvent {
		return ParsedEvent{Date: "2026-02-01", DayOfWeek: ptr("Sunday"), Time: ptr("11:00"), Location: ptr("Temple"), SheetRowNumber: 2}
	}
	stored := storedEvent("ev", time.Date(2026, 2, 1, 11, 0, 0, 0, ict), "Temple", 2)
	stored.DayOfWeek = ptr("Sunday")

	midnight := storedEvent("midnight", time.Date(2026, 2, 1, 0, 0, 0, 0, ict), "Temple", 2)
	midnight.DayOfWeek = ptr("Sunday")

	tests := []struct {
		name    string
		mutate  func(ev *ParsedEvent)
		matched bool
		useMid  bool
		want    ConflictType
	}{
		{name: "no match is new", mutate: func(ev *ParsedEvent) {}, want: ConflictNew},
		{name: "identical is dropped", mutate: func(ev *ParsedEvent) {}, matched: true},
		{name: "date differs", mutate: func(ev *ParsedEvent) { ev.Date = "2026-02-02" }, matched: true, want: ConflictModified},
		{name: "time differs", mutate: func(ev *ParsedEvent) { ev.Time = ptr("14:00") }, matched: true, want: ConflictModified},
		{name: "TBA vs timed start", mutate: func(ev *ParsedEvent) { ev.Time = ptr("TBA") }, matched: true, want: ConflictModified},
		{name: "TBA vs midnight", mutate: func(ev *ParsedEvent) { ev.Time = ptr("TBA") }, matched: true, useMid: true},
		{name: "absent time vs midnight", mutate: func(ev *ParsedEvent) { ev.Time = nil }, matched: true, useMid: true},
		{name: "00:00 vs midnight", mutate: func(ev *ParsedEvent) { ev.Time = ptr("00:00") }, matched: true, useMid: true},
		{name: "timed sheet vs midnight", mutate: func(ev *ParsedEvent) {}, matched: true, useMid: true, want: ConflictModified},
		{name: "location differs", mutate: func(ev *ParsedEvent) { ev.Location = ptr("Market") }, matched: true, want: ConflictModified},
		{name: "location cleared", mutate: func(ev *ParsedEvent) { ev.Location = nil }, matched: true, want: ConflictModified},
		{name: "day of week differs", mutate: func(ev *ParsedEvent) { ev.DayOfWeek = nil }, matched: true, want: ConflictModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := base()
			tt.mutate(&ev)

			var got *Conflict
			switch {
			case !tt.matched:
				got = c.Classify(ev, nil)
			case tt.useMid:
				got = c.Classify(ev, midnight)
			default:
				got = c.Classify(ev, stored)
			}

			if tt.want == "" {
				if got != nil {
					t.Fatalf("Classify() = %+v, want no conflict", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Classify() = nil, want %s", tt.want)
			}
			if got.ConflictType != tt.want {
				t.Errorf("ConflictType = %s, want %s", got.ConflictType, tt.want)
			}
			if got.SheetRowNumber != ev.SheetRowNumber {
				t.Errorf("SheetRowNumber = %d, want %d", got.SheetRowNumber, ev.SheetRowNumber)
			}
			if (got.DBData == nil) != (tt.want == ConflictNew) {
				t.Errorf("DBData = %v for %s conflict", got.DBData, tt.want)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := NewClassifier(ict)
	stored := storedEvent("ev", time.Date(2026, 2, 1, 14, 0, 0, 0, ict), "Temple", 3)
	stored.DayOfWeek = ptr("Sunday")
	ev := ParsedEvent{Date: "2026-02-01", DayOfWeek: ptr("Sunday"), Time: ptr("14:00"), Location: ptr("Temple"), SheetRowNumber: 3}

	for i := 0; i < 2; i++ {
		if got := c.Classify(ev, stored); got != nil {
			t.Fatalf("run %d: Classify() = %+v, want no conflict", i+1, got)
		}
	}
}

func TestClassify_ComparesInConfiguredZone(t *testing.T) {
	// 23:30 UTC on Jan 31 is 06:30 on Feb 1 in ICT.
	stored := storedEvent("ev", time.Date(2026, 1, 31, 23, 30, 0, 0, time.UTC), "Temple", 2)
	ev := ParsedEvent{Date: "2026-02-01", Time: ptr("06:30"), Location: ptr("Temple"), SheetRowNumber: 2}

	if got := NewClassifier(ict).Classify(ev, stored); got != nil {
		t.Errorf("Classify() in ICT = %+v, want no conflict", got)
	}
	if got := NewClassifier(time.UTC).Classify(ev, stored); got == nil {
		t.Error("Classify() in UTC = nil, want modified")
	}
}
