package sheetsync

import (
	"fmt"
	"time"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/sheet"
)

// ParsedEvent is one sheet row in normalized form.
type ParsedEvent struct {
	// Date is the calendar date as YYYY-MM-DD.
	Date string `json:"date"`
	// DayOfWeek is the title-cased day name from the date cell, if any.
	DayOfWeek *string `json:"dayOfWeek"`
	// Time is HH:mm, "TBA", or the cell text when it is not a clock time.
	Time *string `json:"time"`
	// Location has parenthetical notes removed.
	Location       *string `json:"location"`
	SheetRowNumber int     `json:"sheetRowNumber"`
}

// ParseFailure is a non-empty row the parser could not turn into an event.
type ParseFailure struct {
	RowNumber int       `json:"rowNumber"`
	Reason    string    `json:"reason"`
	Raw       sheet.Row `json:"raw"`
}

// ParseResult is the outcome of parsing a batch of rows. A row whose date
// cell is malformed is reported in Skipped and, if an earlier date is being
// carried, also emitted under that date. A row holding only a date sets
// the carried date and appears in neither list.
type ParseResult struct {
	Events  []ParsedEvent
	Skipped []ParseFailure
}

// ConflictType labels how a sheet row relates to the stored events.
type ConflictType string

const (
	ConflictNew      ConflictType = "new"
	ConflictModified ConflictType = "modified"
	// ConflictMissing is reserved for stored events with no sheet row. The
	// classifier does not produce it.
	ConflictMissing ConflictType = "missing"
)

// Conflict is a sheet row that differs from, or has no counterpart in, the
// stored events.
type Conflict struct {
	SheetRowNumber int           `json:"sheetRowNumber"`
	SheetData      ParsedEvent   `json:"sheetData"`
	DBData         *schema.Event `json:"dbData"`
	ConflictType   ConflictType  `json:"conflictType"`
}

// Action is the operator's decision for one conflict.
type Action string

const (
	ActionUseSheet Action = "useSheet"
	ActionKeepDB   Action = "keepDb"
	ActionSkip     Action = "skip"
)

// Resolution is one operator decision, consumed once by the Applier.
type Resolution struct {
	RowNumber int          `json:"rowNumber"`
	Action    Action       `json:"action"`
	SheetData *ParsedEvent `json:"sheetData,omitempty"`
	EventID   string       `json:"eventId,omitempty"`
	// ExpectedUpdatedAt is the updated_at of dbData when the conflict was
	// shown. When set, a useSheet update fails if the event changed since.
	ExpectedUpdatedAt *time.Time `json:"expectedUpdatedAt,omitempty"`
}

// PreviewResult is the outcome of the fetch and classify pass.
type PreviewResult struct {
	// Parsed counts the rows that became ParsedEvents.
	Parsed    int            `json:"parsed"`
	Conflicts []Conflict     `json:"conflicts"`
	Skipped   []ParseFailure `json:"skipped,omitempty"`
}

// ApplyResult is the outcome of applying a batch of resolutions.
type ApplyResult struct {
	Success bool     `json:"success"`
	Applied int      `json:"applied"`
	Errors  []string `json:"errors,omitempty"`
}

// ParseError reports a date cell that is not a M/D date.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse date %q: %s", e.Text, e.Reason)
}

// Resolve builds the resolution applying action to c. For stored events the
// resolution carries the event's updated_at so a useSheet update fails if
// someone edited the event after the preview.
func (c Conflict) Resolve(action Action) Resolution {
	r := Resolution{RowNumber: c.SheetRowNumber, Action: action}
	if c.DBData != nil {
		r.EventID = c.DBData.ID
	}
	switch action {
	case ActionUseSheet:
		data := c.SheetData
		r.SheetData = &data
		if c.DBData != nil {
			token := c.DBData.UpdatedAt
			r.ExpectedUpdatedAt = &token
		}
	case ActionSkip:
		r.EventID = ""
	}
	return r
}

// ParseAction converts operator input to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionUseSheet, ActionKeepDB, ActionSkip:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q (want useSheet, keepDb or skip)", s)
}
