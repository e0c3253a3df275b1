package sheetsync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/sheet"
)

var (
	// "01/31- Saturday", "1/31-saturday", "01/31 - Saturday (note)", "01/31"
	dateTokenRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:\s*-\s*([A-Za-z]+))?`)
	// "11:00 AM", "2:30pm", "14:00"; the first clock in the cell wins
	clockRe       = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)?`)
	parentheticRe = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	hhmmRe        = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

const (
	reasonNotADate      = "not a date"
	reasonNoDateContext = "no date context"
)

// Parser turns raw sheet rows into ParsedEvents.
type Parser struct {
	// Year is used for every date; the sheet omits years. Zero means the
	// current year in Location.
	Year     int
	Location *time.Location
	logger   *zap.Logger
}

// NewParser creates a Parser. A nil logger discards output and a nil
// location means UTC.
func NewParser(year int, loc *time.Location, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{Year: year, Location: loc, logger: logger}
}

func (p *Parser) year() int {
	if p.Year != 0 {
		return p.Year
	}
	return time.Now().In(p.Location).Year()
}

// ParseDateToken parses the leading M/D of a date cell and the optional
// "- DayName" after it. The day name is title-cased.
func (p *Parser) ParseDateToken(text string) (string, *string, error) {
	return parseDateToken(text, p.year())
}

func parseDateToken(text string, year int) (string, *string, error) {
	trimmed := strings.TrimSpace(text)
	m := dateTokenRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", nil, &ParseError{Text: text, Reason: "expected M/D"}
	}

	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", nil, &ParseError{Text: text, Reason: fmt.Sprintf("invalid date %d/%d", month, day)}
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Month() != time.Month(month) {
		return "", nil, &ParseError{Text: text, Reason: fmt.Sprintf("%d/%d does not exist in %d", month, day, year)}
	}

	var dow *string
	if m[3] != "" {
		name := NormalizeDayOfWeek(m[3])
		dow = &name
	}
	return d.Format(dateLayout), dow, nil
}

// NormalizeDayOfWeek title-cases a day name: "SATURDAY" becomes "Saturday".
func NormalizeDayOfWeek(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

// NormalizeTime converts a time cell to 24-hour HH:mm.
//
// Blank input gives nil and "TBA" in any case gives "TBA". A cell without a
// valid clock time is returned trimmed but otherwise unchanged.
func NormalizeTime(text string) *string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if strings.EqualFold(trimmed, "TBA") {
		s := "TBA"
		return &s
	}

	m := clockRe.FindStringSubmatch(trimmed)
	if m == nil {
		return &trimmed
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	switch strings.ToUpper(m[3]) {
	case "PM":
		if hours > 12 || hours == 0 {
			return &trimmed
		}
		if hours != 12 {
			hours += 12
		}
	case "AM":
		if hours > 12 || hours == 0 {
			return &trimmed
		}
		if hours == 12 {
			hours = 0
		}
	}
	if hours > 23 || minutes > 59 {
		return &trimmed
	}

	s := fmt.Sprintf("%02d:%02d", hours, minutes)
	return &s
}

// StripParenthetical removes every "(...)" note from a location and
// collapses the whitespace left behind.
func StripParenthetical(text string) string {
	return strings.Join(strings.Fields(parentheticRe.ReplaceAllString(text, " ")), " ")
}

func hasDatePrefix(text string) bool {
	return dateTokenRe.MatchString(strings.TrimSpace(text))
}

// ParseRows parses rows in sheet order, carrying the last valid date to
// rows that leave the date cell empty.
func (p *Parser) ParseRows(rows []sheet.Row) ParseResult {
	var (
		result     ParseResult
		currentDay string
		currentDow *string
		year       = p.year()
	)

	for _, row := range rows {
		if row.Empty() {
			continue
		}

		dateCell := strings.TrimSpace(row.Date)
		hasDetails := strings.TrimSpace(row.Time) != "" || strings.TrimSpace(row.Location) != ""

		// A bad date keeps the carried date; the row is still reported.
		reported := false
		if dateCell != "" && hasDatePrefix(dateCell) {
			date, dow, err := parseDateToken(dateCell, year)
			if err != nil {
				p.logger.Warn("invalid date in sheet row",
					zap.Int("row", row.RowNumber),
					zap.String("date", row.Date),
					zap.Error(err),
				)
				result.Skipped = append(result.Skipped, ParseFailure{RowNumber: row.RowNumber, Reason: err.Error(), Raw: row})
				reported = true
			} else {
				currentDay, currentDow = date, dow
			}
		}

		if !hasDetails {
			if dateCell != "" && !hasDatePrefix(dateCell) {
				p.skip(&result, row, reasonNotADate)
			}
			continue
		}

		if currentDay == "" {
			if !reported {
				p.skip(&result, row, reasonNoDateContext)
			}
			continue
		}

		ev := ParsedEvent{
			Date:           currentDay,
			DayOfWeek:      copyStr(currentDow),
			Time:           NormalizeTime(row.Time),
			SheetRowNumber: row.RowNumber,
		}
		if loc := StripParenthetical(row.Location); loc != "" {
			ev.Location = &loc
		}
		result.Events = append(result.Events, ev)
	}

	return result
}

func (p *Parser) skip(result *ParseResult, row sheet.Row, reason string) {
	p.logger.Warn("skipping sheet row",
		zap.Int("row", row.RowNumber),
		zap.String("reason", reason),
		zap.String("date", row.Date),
	)
	result.Skipped = append(result.Skipped, ParseFailure{RowNumber: row.RowNumber, Reason: reason, Raw: row})
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
