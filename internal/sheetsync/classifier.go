package sheetsync

import (
	"time"

	"github.com/lotusstage/stagesync/internal/schema"
)

// Classifier decides whether a parsed row differs from its matched event.
type Classifier struct {
	loc *time.Location
}

// NewClassifier creates a Classifier that compares dates and times in loc.
func NewClassifier(loc *time.Location) *Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Classifier{loc: loc}
}

// Classify returns the conflict for ev, or nil when the matched event
// already agrees with the sheet.
func (c *Classifier) Classify(ev ParsedEvent, matched *schema.Event) *Conflict {
	if matched == nil {
		return &Conflict{
			SheetRowNumber: ev.SheetRowNumber,
			SheetData:      ev,
			ConflictType:   ConflictNew,
		}
	}
	if c.Differs(ev, matched) {
		return &Conflict{
			SheetRowNumber: ev.SheetRowNumber,
			SheetData:      ev,
			DBData:         matched,
			ConflictType:   ConflictModified,
		}
	}
	return nil
}

// Differs reports whether any of date, time, location or day of week
// differ between the row and the event.
func (c *Classifier) Differs(ev ParsedEvent, e *schema.Event) bool {
	if e.StartDate.In(c.loc).Format(dateLayout) != ev.Date {
		return true
	}
	sheetClock := clockOf(ev.Time)
	if sheetClock == "00:00" {
		sheetClock = ""
	}
	if storedClock(e.StartDate, c.loc) != sheetClock {
		return true
	}
	if !equalStr(e.Location, ev.Location) {
		return true
	}
	return !equalStr(e.DayOfWeek, ev.DayOfWeek)
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
