package sheetsync

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/lotusstage/stagesync/internal/sheet"
)

func ptr(s string) *string { return &s }

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{"2:30 PM", ptr("14:30")},
		{"11:00 AM", ptr("11:00")},
		{"TBA", ptr("TBA")},
		{" tba ", ptr("TBA")},
		{"", nil},
		{"   ", nil},
		{"12:00 PM", ptr("12:00")},
		{"12:15 AM", ptr("00:15")},
		{"2:30pm", ptr("14:30")},
		{"14:00", ptr("14:00")},
		{"9:05", ptr("09:05")},
		{"11:00 AM - 1:00 PM", ptr("11:00")},
		{"Afternoon", ptr("Afternoon")},
		{"25:00", ptr("25:00")},
		{"13:00 PM", ptr("13:00 PM")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeTime(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeTime(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestStripParenthetical(t *testing.T) {
	tests := map[string]string{
		"Saigon Mall (40 mins)":        "Saigon Mall",
		"Temple (main hall)":           "Temple",
		"(tbd)":                        "",
		"Park (north) gate (bring ID)": "Park gate",
		"  Plain   Street ":            "Plain Street",
		"Unclosed (note":               "Unclosed (note",
	}
	for in, want := range tests {
		if got := StripParenthetical(in); got != want {
			t.Errorf("StripParenthetical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDateToken(t *testing.T) {
	p := NewParser(2026, nil, nil)

	tests := []struct {
		in      string
		date    string
		dow     *string
		wantErr bool
	}{
		{in: "01/31- Saturday", date: "2026-01-31", dow: ptr("Saturday")},
		{in: "1/31-saturday", date: "2026-01-31", dow: ptr("Saturday")},
		{in: "02/01 - SUNDAY (Tet)", date: "2026-02-01", dow: ptr("Sunday")},
		{in: "12/5", date: "2026-12-05"},
		{in: " 3/7-", date: "2026-03-07"},
		{in: "13/01- Friday", wantErr: true},
		{in: "02/30", wantErr: true},
		{in: "0/12", wantErr: true},
		{in: "Saturday", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			date, dow, err := p.ParseDateToken(tt.in)
			if tt.wantErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("ParseDateToken(%q) error = %v, want *ParseError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateToken(%q) unexpected error: %v", tt.in, err)
			}
			if date != tt.date {
				t.Errorf("date = %q, want %q", date, tt.date)
			}
			if diff := cmp.Diff(tt.dow, dow); diff != "" {
				t.Errorf("dayOfWeek mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeDayOfWeek(t *testing.T) {
	for _, in := range []string{"saturday", "SATURDAY", "Saturday", "sAtUrDaY"} {
		if got := NormalizeDayOfWeek(in); got != "Saturday" {
			t.Errorf("NormalizeDayOfWeek(%q) = %q, want Saturday", in, got)
		}
	}
}

func TestParseRows_TwoRowDay(t *testing.T) {
	p := NewParser(2026, nil, nil)
	rows := []sheet.Row{
		{Date: "02/01- Sunday", Time: "11:00 AM", Location: "Temple (main hall)", RowNumber: 2},
		{Date: "", Time: "2:00 PM", Location: "Temple (main hall)", RowNumber: 3},
	}

	got := p.ParseRows(rows)
	want := []ParsedEvent{
		{Date: "2026-02-01", DayOfWeek: ptr("Sunday"), Time: ptr("11:00"), Location: ptr("Temple"), SheetRowNumber: 2},
		{Date: "2026-02-01", DayOfWeek: ptr("Sunday"), Time: ptr("14:00"), Location: ptr("Temple"), SheetRowNumber: 3},
	}
	if diff := cmp.Diff(want, got.Events); diff != "" {
		t.Errorf("ParseRows() mismatch (-want +got):\n%s", diff)
	}
	if len(got.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none", got.Skipped)
	}
}

func TestParseRows_CarryAndSkip(t *testing.T) {
	p := NewParser(2026, nil, nil)
	rows := []sheet.Row{
		{Time: "10:00 AM", Location: "Orphan", RowNumber: 2},
		{Date: "Week 5", RowNumber: 3},
		{Date: "01/31- Saturday", RowNumber: 4},
		{Time: "TBA", RowNumber: 5},
		{Location: "Saigon Mall (40 mins)", RowNumber: 6},
		{Date: "02/30- Monday", Time: "9:00 AM", Location: "Bad date", RowNumber: 7},
		{Date: "Note: bring drums", Time: "3:00 PM", Location: "Market", RowNumber: 8},
		{Date: "02/02", Time: "7:00 PM", Location: "(tbd)", RowNumber: 9},
	}

	got := p.ParseRows(rows)

	want := []ParsedEvent{
		{Date: "2026-01-31", DayOfWeek: ptr("Saturday"), Time: ptr("TBA"), SheetRowNumber: 5},
		{Date: "2026-01-31", DayOfWeek: ptr("Saturday"), Location: ptr("Saigon Mall"), SheetRowNumber: 6},
		{Date: "2026-01-31", DayOfWeek: ptr("Saturday"), Time: ptr("09:00"), Location: ptr("Bad date"), SheetRowNumber: 7},
		{Date: "2026-01-31", DayOfWeek: ptr("Saturday"), Time: ptr("15:00"), Location: ptr("Market"), SheetRowNumber: 8},
		{Date: "2026-02-02", Time: ptr("19:00"), SheetRowNumber: 9},
	}
	if diff := cmp.Diff(want, got.Events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}

	var skipped []string
	for _, s := range got.Skipped {
		skipped = append(skipped, fmt.Sprintf("%d:%s", s.RowNumber, strings.SplitN(s.Reason, " ", 2)[0]))
	}
	wantSkipped := []string{"2:no", "3:not", "7:unable"}
	if diff := cmp.Diff(wantSkipped, skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRows_NoDateContext(t *testing.T) {
	p := NewParser(2026, nil, nil)
	got := p.ParseRows([]sheet.Row{
		{Time: "2:00 PM", Location: "Temple", RowNumber: 2},
		{Location: "Market", RowNumber: 3},
	})
	if len(got.Events) != 0 {
		t.Errorf("Events = %+v, want none before the first date", got.Events)
	}
	if len(got.Skipped) != 2 {
		t.Fatalf("len(Skipped) = %d, want 2", len(got.Skipped))
	}
	if got.Skipped[0].Reason != reasonNoDateContext {
		t.Errorf("Reason = %q, want %q", got.Skipped[0].Reason, reasonNoDateContext)
	}
}

func TestProperty_CarryForward(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Each element marks whether the row carries its own date.
	properties.Property("rows without a date take the nearest preceding date", prop.ForAll(
		func(hasDate []bool, days []int) bool {
			p := NewParser(2026, nil, nil)
			var rows []sheet.Row
			for i, dated := range hasDate {
				r := sheet.Row{Time: "10:00 AM", Location: "Temple", RowNumber: i + 2}
				if dated {
					r.Date = fmt.Sprintf("03/%d", days[i%len(days)])
				}
				rows = append(rows, r)
			}

			res := p.ParseRows(rows)

			current := ""
			byRow := map[int]string{}
			for _, ev := range res.Events {
				byRow[ev.SheetRowNumber] = ev.Date
			}
			for i, dated := range hasDate {
				if dated {
					current = fmt.Sprintf("2026-03-%02d", days[i%len(days)])
				}
				got, emitted := byRow[i+2]
				if current == "" {
					if emitted {
						return false
					}
					continue
				}
				if !emitted || got != current {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
		gen.SliceOfN(5, gen.IntRange(1, 31)),
	))

	properties.Property("12-hour clock times normalize to the 24-hour clock", prop.ForAll(
		func(hour, minute int, pm bool) bool {
			suffix := "AM"
			want := hour % 12
			if pm {
				suffix = "PM"
				want += 12
			}
			got := NormalizeTime(fmt.Sprintf("%d:%02d %s", hour, minute, suffix))
			return got != nil && *got == fmt.Sprintf("%02d:%02d", want, minute)
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 59),
		gen.Bool(),
	))

	properties.Property("day names normalize regardless of case", prop.ForAll(
		func(idx int, upper []bool) bool {
			names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
			name := names[idx]
			var b strings.Builder
			for i, r := range strings.ToLower(name) {
				if i < len(upper) && upper[i] {
					b.WriteString(strings.ToUpper(string(r)))
				} else {
					b.WriteRune(r)
				}
			}
			_, dow, err := parseDateToken("01/05- "+b.String(), 2026)
			return err == nil && dow != nil && *dow == name
		},
		gen.IntRange(0, 6),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
