package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/sheetsync"
)

const none = "-"

var previewHeaders = []string{"ROW", "TYPE", "DATE", "DAY", "TIME", "LOCATION", "STORED"}

// PreviewView renders a preview: a summary line, the conflict table and
// any skipped rows. Stored start times are shown in loc.
func PreviewView(res *sheetsync.PreviewResult, s Styles, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var sb strings.Builder

	sb.WriteString(s.Title.Render(fmt.Sprintf("%d rows parsed, %d need review", res.Parsed, len(res.Conflicts))))
	sb.WriteString("\n")

	if len(res.Conflicts) == 0 {
		sb.WriteString(s.Muted.Render("Sheet and calendar agree."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(conflictTable(res.Conflicts, s, loc))
		sb.WriteString("\n")
	}

	if len(res.Skipped) > 0 {
		sb.WriteString("\n")
		sb.WriteString(s.Error.Render(fmt.Sprintf("%d rows skipped:", len(res.Skipped))))
		sb.WriteString("\n")
		for _, f := range res.Skipped {
			sb.WriteString(fmt.Sprintf("  row %d: %s", f.RowNumber, f.Reason))
			if raw := rawText(f); raw != "" {
				sb.WriteString(s.Muted.Render(" (" + raw + ")"))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func conflictTable(conflicts []sheetsync.Conflict, s Styles, loc *time.Location) string {
	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, []string{
			strconv.Itoa(c.SheetRowNumber),
			string(c.ConflictType),
			c.SheetData.Date,
			orNone(c.SheetData.DayOfWeek),
			orNone(c.SheetData.Time),
			orNone(c.SheetData.Location),
			StoredSummary(c.DBData, loc),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Muted).
		Headers(previewHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			if col == 1 && row >= 0 && row < len(conflicts) {
				if conflicts[row].ConflictType == sheetsync.ConflictModified {
					return s.Modified
				}
				return s.New
			}
			return s.Cell
		})
	return t.String()
}

// StoredSummary describes a stored event in one line.
func StoredSummary(e *schema.Event, loc *time.Location) string {
	if e == nil {
		return none
	}
	start := e.StartDate.In(loc)
	out := start.Format("2006-01-02")
	if start.Hour() != 0 || start.Minute() != 0 {
		out += " " + start.Format("15:04")
	}
	if e.Location != nil && *e.Location != "" {
		out += " @ " + *e.Location
	}
	return out
}

func rawText(f sheetsync.ParseFailure) string {
	var parts []string
	for _, v := range []string{f.Raw.Date, f.Raw.Time, f.Raw.Location} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return none
	}
	return *s
}
