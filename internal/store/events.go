package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lotusstage/stagesync/internal/schema"
)

const eventColumns = `id, title, description, start_date, end_date, location, category,
	       image_url, video_url, public, day_of_week, google_sheet_row_number,
	       synced_at, created_at, updated_at`

// InsertEvent stores a new event. The event must already carry an id and
// timestamps (see schema.Event.SetDefaults).
func (db *DB) InsertEvent(ctx context.Context, e *schema.Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	query := `
	INSERT INTO events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	d := db.dialect
	_, err := db.conn.ExecContext(ctx, d.rebind(query),
		e.ID,
		e.Title,
		e.Description,
		d.timeArg(e.StartDate),
		d.nullTimeArg(e.EndDate),
		e.Location,
		string(e.Category),
		e.ImageURL,
		e.VideoURL,
		d.boolArg(e.Public),
		e.DayOfWeek,
		e.GoogleSheetRowNumber,
		d.nullTimeArg(e.SyncedAt),
		d.timeArg(e.CreatedAt),
		d.timeArg(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// UpdateEvent applies patch to the event with the given id and stamps
// updated_at with the current time.
//
// When patch.IfUpdatedAt is set the update only happens if the stored
// updated_at still equals it; otherwise ErrStale is returned. ErrNotFound is
// returned when no event has the id.
func (db *DB) UpdateEvent(ctx context.Context, id string, patch schema.EventPatch) error {
	if patch.Empty() {
		return fmt.Errorf("nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("invalid update: %w", err)
	}

	d := db.dialect
	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Title.Set {
		set("title", patch.Title.Value)
	}
	if patch.Description.Set {
		set("description", patch.Description.Value)
	}
	if patch.Category.Set {
		set("category", string(patch.Category.Value))
	}
	if patch.Public.Set {
		set("public", d.boolArg(patch.Public.Value))
	}
	if patch.StartDate.Set {
		set("start_date", d.timeArg(patch.StartDate.Value))
	}
	if patch.Location.Set {
		set("location", patch.Location.Value)
	}
	if patch.DayOfWeek.Set {
		set("day_of_week", patch.DayOfWeek.Value)
	}
	if patch.GoogleSheetRowNumber.Set {
		set("google_sheet_row_number", patch.GoogleSheetRowNumber.Value)
	}
	if patch.SyncedAt.Set {
		set("synced_at", d.nullTimeArg(patch.SyncedAt.Value))
	}
	set("updated_at", d.timeArg(schema.Now()))

	query := "UPDATE events SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if patch.IfUpdatedAt != nil {
		query += " AND updated_at = ?"
		args = append(args, d.timeArg(*patch.IfUpdatedAt))
	}

	res, err := db.conn.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n > 0 {
		return nil
	}

	exists, err := db.eventExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStale
}

func (db *DB) eventExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, db.dialect.rebind(`SELECT 1 FROM events WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up event: %w", err)
	}
	return true, nil
}

// GetEvent retrieves a single event by id.
// Returns ErrNotFound if the event does not exist.
func (db *DB) GetEvent(ctx context.Context, id string) (*schema.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	e, err := scanEvent(db.conn.QueryRowContext(ctx, db.dialect.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// FindEvents retrieves events matching the filter.
// Results are ordered by start_date ASC, then id ASC.
func (db *DB) FindEvents(ctx context.Context, filter schema.EventFilter) ([]*schema.Event, error) {
	d := db.dialect
	var conditions []string
	var args []any

	if filter.RowNumber != nil {
		conditions = append(conditions, "google_sheet_row_number = ?")
		args = append(args, *filter.RowNumber)
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, "start_date >= ?")
		args = append(args, d.timeArg(*filter.StartFrom))
	}
	if filter.StartTo != nil {
		conditions = append(conditions, "start_date <= ?")
		args = append(args, d.timeArg(*filter.StartTo))
	}
	if filter.Location != nil {
		conditions = append(conditions, "location = ?")
		args = append(args, *filter.Location)
	}
	if filter.PublicOnly {
		conditions = append(conditions, "public = ?")
		args = append(args, d.boolArg(true))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer rows.Close()

	var events []*schema.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// EventCounts summarizes the events table.
type EventCounts struct {
	Total  int `json:"total"`
	Public int `json:"public"`
	Synced int `json:"synced"`
}

// CountEvents returns the number of events, published events and events
// linked to a sheet row.
func (db *DB) CountEvents(ctx context.Context) (EventCounts, error) {
	query := `
	SELECT COUNT(*),
	       CAST(COALESCE(SUM(CASE WHEN public = ? THEN 1 ELSE 0 END), 0) AS INTEGER),
	       CAST(COALESCE(SUM(CASE WHEN google_sheet_row_number IS NOT NULL THEN 1 ELSE 0 END), 0) AS INTEGER)
	FROM events
	`
	var c EventCounts
	err := db.conn.QueryRowContext(ctx, db.dialect.rebind(query), db.dialect.boolArg(true)).
		Scan(&c.Total, &c.Public, &c.Synced)
	if err != nil {
		return EventCounts{}, fmt.Errorf("failed to count events: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*schema.Event, error) {
	var e schema.Event
	var description, location, imageURL, videoURL, dayOfWeek sql.NullString
	var category string
	var rowNumber sql.NullInt64
	var startDate, endDate, syncedAt, createdAt, updatedAt dbTime

	err := row.Scan(
		&e.ID,
		&e.Title,
		&description,
		&startDate,
		&endDate,
		&location,
		&category,
		&imageURL,
		&videoURL,
		&e.Public,
		&dayOfWeek,
		&rowNumber,
		&syncedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Category = schema.Category(category)
	e.Description = nullStringPtr(description)
	e.Location = nullStringPtr(location)
	e.ImageURL = nullStringPtr(imageURL)
	e.VideoURL = nullStringPtr(videoURL)
	e.DayOfWeek = nullStringPtr(dayOfWeek)
	if rowNumber.Valid {
		n := int(rowNumber.Int64)
		e.GoogleSheetRowNumber = &n
	}
	e.StartDate = startDate.Time
	e.EndDate = endDate.ptr()
	e.SyncedAt = syncedAt.ptr()
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time

	return &e, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// dbTime scans a timestamp column stored either as text (SQLite, libSQL) or
// as a native timestamp (Postgres).
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
