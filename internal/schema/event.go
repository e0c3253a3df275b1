// Package schema defines the event records shared by the store, the sheet
// sync workflow and the HTTP API.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category classifies how often an event happens.
type Category string

const (
	CategoryDaily   Category = "daily"
	CategoryWeekly  Category = "weekly"
	CategorySpecial Category = "special"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDaily, CategoryWeekly, CategorySpecial:
		return true
	}
	return false
}

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q (want daily, weekly or special)", s)
	}
	return c, nil
}

// Event is a stored calendar event as shown on the public events page.
//
// Events created by the sheet sync carry GoogleSheetRowNumber as a
// back-reference to the schedule row they came from.
type Event struct {
	// ===== Identity =====
	ID string `json:"id"`

	// ===== Display =====
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Category    Category `json:"category"`
	ImageURL    *string  `json:"image_url"`
	VideoURL    *string  `json:"video_url"`
	Public      bool     `json:"public"`

	// ===== Schedule =====
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Location  *string    `json:"location"`
	DayOfWeek *string    `json:"day_of_week"`

	// ===== Sheet sync =====
	GoogleSheetRowNumber *int       `json:"google_sheet_row_number"`
	SyncedAt             *time.Time `json:"synced_at"`

	// ===== Timestamps (optimistic concurrency token) =====
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(e.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(e.Title))
	}
	if !e.Category.Valid() {
		return fmt.Errorf("invalid category %q", e.Category)
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	if e.GoogleSheetRowNumber != nil && *e.GoogleSheetRowNumber < 1 {
		return fmt.Errorf("google_sheet_row_number must be positive (got %d)", *e.GoogleSheetRowNumber)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if e.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults fills in the id, category and timestamps of a new event.
func (e *Event) SetDefaults() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Category == "" {
		e.Category = CategoryWeekly
	}
	now := Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
}

// Now returns the current time in the precision the store round-trips.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Field is one optional value of an EventPatch. Only fields with Set
// participate in the update.
type Field[T any] struct {
	Value T
	Set   bool
}

// Set returns a Field that assigns v.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// EventPatch is a partial update of an Event. Nullable columns use pointer
// values so a patch can clear them.
type EventPatch struct {
	Title                Field[string]
	Description          Field[*string]
	Category             Field[Category]
	Public               Field[bool]
	StartDate            Field[time.Time]
	Location             Field[*string]
	DayOfWeek            Field[*string]
	GoogleSheetRowNumber Field[*int]
	SyncedAt             Field[*time.Time]

	// IfUpdatedAt makes the update conditional on the stored updated_at.
	IfUpdatedAt *time.Time
}

// Empty reports whether the patch changes no column.
func (p EventPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Category.Set && !p.Public.Set &&
		!p.StartDate.Set && !p.Location.Set && !p.DayOfWeek.Set &&
		!p.GoogleSheetRowNumber.Set && !p.SyncedAt.Set
}

// Validate checks the values a patch would write.
func (p EventPatch) Validate() error {
	if p.Title.Set {
		if strings.TrimSpace(p.Title.Value) == "" {
			return fmt.Errorf("title is required")
		}
		if len(p.Title.Value) > 500 {
			return fmt.Errorf("title must be 500 characters or less (got %d)", len(p.Title.Value))
		}
	}
	if p.Category.Set && !p.Category.Value.Valid() {
		return fmt.Errorf("invalid category %q", p.Category.Value)
	}
	if p.StartDate.Set && p.StartDate.Value.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if p.GoogleSheetRowNumber.Set && p.GoogleSheetRowNumber.Value != nil && *p.GoogleSheetRowNumber.Value < 1 {
		return fmt.Errorf("google_sheet_row_number must be positive (got %d)", *p.GoogleSheetRowNumber.Value)
	}
	return nil
}

// EventFilter selects events. Zero-valued fields do not filter.
type EventFilter struct {
	// RowNumber matches google_sheet_row_number exactly.
	RowNumber *int
	// StartFrom and StartTo bound start_date inclusively.
	StartFrom *time.Time
	StartTo   *time.Time
	// Location matches location exactly.
	Location *string
	// PublicOnly restricts results to published events.
	PublicOnly bool
	// Category filters by category (empty = all).
	Category Category
	// Limit restricts the number of results (0 = no limit)
	Limit int
}
