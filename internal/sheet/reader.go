// Package sheet reads raw schedule rows from the source spreadsheet.
//
// A schedule has three columns: date ("01/31- Saturday"), time ("11:00 AM"
// or "TBA") and location ("Temple (main hall)"). The first row is a header.
// Rows are numbered the way the spreadsheet UI numbers them, so the first
// data row is row 2.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultRange is the A1 range read when none is configured.
const DefaultRange = "Schedule!A:C"

var (
	// ErrMissingSheetID is returned when no spreadsheet id is configured.
	ErrMissingSheetID = errors.New("missing sheet id")
	// ErrMissingCredentials is returned when no service account key is configured.
	ErrMissingCredentials = errors.New("missing Google Sheets service account credentials")
)

// Row is one non-empty data row of the schedule. Empty cells are "".
type Row struct {
	Date      string `json:"date" yaml:"date" toml:"date"`
	Time      string `json:"time" yaml:"time" toml:"time"`
	Location  string `json:"location" yaml:"location" toml:"location"`
	RowNumber int    `json:"row_number" yaml:"row_number" toml:"row_number"`
}

// Empty reports whether all three cells are blank.
func (r Row) Empty() bool {
	return strings.TrimSpace(r.Date) == "" &&
		strings.TrimSpace(r.Time) == "" &&
		strings.TrimSpace(r.Location) == ""
}

// Reader fetches the rows of a schedule range.
type Reader interface {
	FetchRows(ctx context.Context) ([]Row, error)
}

// rowsFromValues converts a spreadsheet value grid into rows. The first
// line is the header; fully empty lines are dropped.
func rowsFromValues(values [][]any) []Row {
	if len(values) < 2 {
		return nil
	}
	rows := make([]Row, 0, len(values)-1)
	for i, line := range values[1:] {
		r := Row{
			Date:      cell(line, 0),
			Time:      cell(line, 1),
			Location:  cell(line, 2),
			RowNumber: i + 2,
		}
		if r.Empty() {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

func cell(line []any, i int) string {
	if i >= len(line) || line[i] == nil {
		return ""
	}
	if s, ok := line[i].(string); ok {
		return s
	}
	return fmt.Sprint(line[i])
}

// StaticReader returns a fixed set of rows.
type StaticReader struct {
	Rows []Row
	Err  error
}

// FetchRows returns the configured rows, skipping empty ones.
func (s *StaticReader) FetchRows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]Row, 0, len(s.Rows))
	for _, r := range s.Rows {
		if !r.Empty() {
			out = append(out, r)
		}
	}
	return out, nil
}
