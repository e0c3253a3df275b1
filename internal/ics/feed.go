// Package ics renders stored events as an iCalendar feed.
package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/lotusstage/stagesync/internal/schema"
)

// ProductID identifies the generator in every feed.
const ProductID = "-//Lotus Stage//stagesync//EN"

// Options configures Build.
type Options struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Location is the zone the schedule is written in. Events starting at
	// local midnight become all-day events on that local date.
	Location *time.Location
	// UIDDomain is appended to event ids to form globally unique UIDs.
	UIDDomain string
}

// Build converts events into a calendar. Events keep their input order.
func Build(events []*schema.Event, opts Options) *ical.Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	domain := opts.UIDDomain
	if domain == "" {
		domain = "stagesync"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, e := range events {
		addEvent(cal, e, loc, domain)
	}
	return cal
}

// Write serializes events as an iCalendar document.
func Write(w io.Writer, events []*schema.Event, opts Options) error {
	return Build(events, opts).SerializeTo(w)
}

// UID returns the feed UID of an event id.
func UID(id, domain string) string {
	return id + "@" + domain
}

func addEvent(cal *ical.Calendar, e *schema.Event, loc *time.Location, domain string) {
	ev := cal.AddEvent(UID(e.ID, domain))
	ev.SetSummary(e.Title)
	ev.SetCreatedTime(e.CreatedAt)
	ev.SetDtStampTime(e.UpdatedAt)
	ev.SetModifiedAt(e.UpdatedAt)

	start := e.StartDate.In(loc)
	if isMidnight(start) {
		ev.SetAllDayStartAt(start)
		end := start.AddDate(0, 0, 1)
		if e.EndDate != nil && e.EndDate.After(e.StartDate) {
			// DTEND is exclusive for all-day events.
			last := e.EndDate.In(loc)
			end = time.Date(last.Year(), last.Month(), last.Day()+1, 0, 0, 0, 0, loc)
		}
		ev.SetAllDayEndAt(end)
	} else {
		ev.SetStartAt(e.StartDate)
		if e.EndDate != nil {
			ev.SetEndAt(*e.EndDate)
		}
	}

	if e.Location != nil && strings.TrimSpace(*e.Location) != "" {
		ev.SetLocation(*e.Location)
	}
	if e.Description != nil && strings.TrimSpace(*e.Description) != "" {
		ev.SetDescription(*e.Description)
	}
	if e.Category != "" {
		ev.AddProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(e.Category)))
	}
	if e.VideoURL != nil && *e.VideoURL != "" {
		ev.SetURL(*e.VideoURL)
	}
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
