package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
	"github.com/lotusstage/stagesync/internal/tui"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	GroupID: "data",
	Short:   "List and publish events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events",
	Long: `List events ordered by start date.

--from and --to accept dates like 2026-03-01 or phrases like
"today", "next friday" or "in 3 weeks".`,
	Run: func(cmd *cobra.Command, args []string) {
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		publicOnly, _ := cmd.Flags().GetBool("public")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		filter, err := listFilter(fromStr, toStr, category, time.Now(), cfg.Location())
		if err != nil {
			fatalf("%v", err)
		}
		filter.PublicOnly = publicOnly
		filter.Limit = limit

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		events, err := db.FindEvents(ctx, filter)
		if err != nil {
			fatalf("%v", err)
		}
		if asJSON {
			if events == nil {
				events = []*schema.Event{}
			}
			if err := writeIndented(os.Stdout, events); err != nil {
				fatalf("%v", err)
			}
			return
		}
		if len(events) == 0 {
			fmt.Println("No events found.")
			return
		}
		fmt.Println(eventTable(events, tui.NewStyles(tui.NewRenderer(os.Stdout)), cfg.Location()))
	},
}

var eventsPublishCmd = &cobra.Command{
	Use:   "publish ID...",
	Short: "Show events on the public calendar",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setPublic(cmd, args, true)
	},
}

var eventsUnpublishCmd = &cobra.Command{
	Use:   "unpublish ID...",
	Short: "Hide events from the public calendar",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setPublic(cmd, args, false)
	},
}

func setPublic(cmd *cobra.Command, ids []string, public bool) {
	ctx := cmd.Context()
	db, err := openStore(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	defer db.Close()

	verb := "Published"
	if !public {
		verb = "Unpublished"
	}
	failed := 0
	for _, id := range ids {
		err := db.UpdateEvent(ctx, id, schema.EventPatch{Public: schema.Set(public)})
		switch {
		case errors.Is(err, store.ErrNotFound):
			fmt.Fprintf(os.Stderr, "⚠ %s: event not found\n", id)
			failed++
		case err != nil:
			fmt.Fprintf(os.Stderr, "⚠ %s: %v\n", id, err)
			failed++
		default:
			fmt.Printf("✓ %s %s\n", verb, id)
		}
	}
	if failed > 0 {
		_ = db.Close()
		fatalf("%d of %d events not updated", failed, len(ids))
	}
}

// listFilter builds the start_date window for events list. A bare --to
// date includes that whole day.
func listFilter(from, to, category string, now time.Time, loc *time.Location) (schema.EventFilter, error) {
	var filter schema.EventFilter
	if from != "" {
		t, err := parseWhen(from, now, loc)
		if err != nil {
			return filter, fmt.Errorf("--from: %w", err)
		}
		filter.StartFrom = &t
	}
	if to != "" {
		t, err := parseWhen(to, now, loc)
		if err != nil {
			return filter, fmt.Errorf("--to: %w", err)
		}
		if t.Equal(startOfDay(t, loc)) {
			t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		filter.StartTo = &t
	}
	if filter.StartFrom != nil && filter.StartTo != nil && filter.StartTo.Before(*filter.StartFrom) {
		return filter, errors.New("--to is before --from")
	}
	if category != "" {
		c, err := schema.ParseCategory(category)
		if err != nil {
			return filter, err
		}
		filter.Category = c
	}
	return filter, nil
}

func eventTable(events []*schema.Event, s tui.Styles, loc *time.Location) string {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		start := e.StartDate.In(loc)
		startText := start.Format("2006-01-02 Mon")
		if start.Hour() != 0 || start.Minute() != 0 {
			startText += " " + start.Format("15:04")
		}
		public := "no"
		if e.Public {
			public = "yes"
		}
		place := "-"
		if e.Location != nil {
			place = *e.Location
		}
		rows = append(rows, []string{e.ID, startText, e.Title, place, string(e.Category), public})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Muted).
		Headers("ID", "START", "TITLE", "LOCATION", "CATEGORY", "PUBLIC").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		}).
		String()
}

func init() {
	eventsListCmd.Flags().String("from", "", "Only events starting at or after this date")
	eventsListCmd.Flags().String("to", "", "Only events starting on or before this date")
	eventsListCmd.Flags().Bool("public", false, "Only published events")
	eventsListCmd.Flags().String("category", "", "Only this category (daily, weekly, special)")
	eventsListCmd.Flags().IntP("limit", "n", 0, "Maximum number of events (0 = all)")
	eventsListCmd.Flags().Bool("json", false, "Print events as JSON")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsPublishCmd)
	eventsCmd.AddCommand(eventsUnpublishCmd)
	rootCmd.AddCommand(eventsCmd)
}
