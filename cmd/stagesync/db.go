package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lotusstage/stagesync/internal/archive"
	"github.com/lotusstage/stagesync/internal/loadtest"
	"github.com/lotusstage/stagesync/internal/store"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	GroupID: "data",
	Short:   "Manage the events database",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the events table and indexes",
	Long: `Create the events schema in the configured database.

Safe to run repeatedly. database.url may be a SQLite file path,
a libsql:// URL (with database.auth_token) or a postgres:// URL.`,
	Run: func(cmd *cobra.Command, args []string) {
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		fmt.Printf("✓ Schema ready (%s: %s)\n", db.Backend(), redactDSN(cfg.Database.URL))
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show event counts",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		counts, err := db.CountEvents(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("\nEvents Database Status\n\n")
		fmt.Printf("Backend:   %s\n", db.Backend())
		fmt.Printf("Location:  %s\n", redactDSN(cfg.Database.URL))
		fmt.Printf("Events:    %d\n", counts.Total)
		fmt.Printf("Published: %d\n", counts.Public)
		fmt.Printf("From sheet: %d\n", counts.Synced)
		fmt.Println()
	},
}

var dbExportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write every event as JSON Lines",
	Long: `Write every stored event as one JSON object per line.

Without FILE the export goes to stdout. Use it for backups or, together
with 'db import', to copy the calendar to another database backend.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		if len(args) == 0 {
			if _, err := archive.Export(ctx, db, os.Stdout); err != nil {
				_ = db.Close()
				fatalf("%v", err)
			}
			return
		}
		n, err := archive.ExportFile(ctx, db, args[0])
		if err != nil {
			_ = db.Close()
			fatalf("%v", err)
		}
		fmt.Printf("✓ Exported %d events to %s\n", n, args[0])
	},
}

var dbImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Insert events from a JSON Lines export",
	Long: `Insert the events in FILE that are not already stored.

Events are matched by id; existing events are left untouched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		res, err := archive.ImportFile(ctx, db, args[0], archive.ImportOptions{DryRun: dryRun})
		if err != nil {
			_ = db.Close()
			fatalf("%v", err)
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("✓ %s %d of %d events (%d already present)\n", verb, res.Inserted, res.Read, res.Skipped)
		for _, msg := range res.Errors {
			fmt.Fprintf(os.Stderr, "  ✗ %s\n", msg)
		}
		if len(res.Errors) > 0 {
			_ = db.Close()
			fatalf("%d events were not imported", len(res.Errors))
		}
	},
}

var dbBenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure event query latency under concurrent load",
	Long: `Seed a scratch SQLite database with a generated calendar and time the
queries the events page and the sheet sync issue, from many readers at
once while writers publish and unpublish events.

Generated events are inserted into the benchmark database. It defaults
to a temporary file; the configured database.url is not used.`,
	Run: func(cmd *cobra.Command, args []string) {
		dsn, _ := cmd.Flags().GetString("database")
		events, _ := cmd.Flags().GetInt("events")
		readers, _ := cmd.Flags().GetInt("readers")
		queries, _ := cmd.Flags().GetInt("queries")
		writers, _ := cmd.Flags().GetInt("writers")

		opts := loadtest.RunOptions{Readers: readers, QueriesPerReader: queries, Writers: writers}
		if err := runBench(cmd.Context(), dsn, events, opts); err != nil {
			fatalf("%v", err)
		}
	},
}

func runBench(ctx context.Context, dsn string, events int, opts loadtest.RunOptions) error {
	if dsn == "" {
		dir, err := os.MkdirTemp("", "stagesync-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		dsn = filepath.Join(dir, "bench.db")
	}

	db, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.InitSchemaContext(ctx); err != nil {
		return err
	}

	start := time.Now()
	ds, err := loadtest.Seed(ctx, db, loadtest.SeedOptions{Events: events, PublicPct: 0.6})
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d events (%d published) in %v\n\n", len(ds.IDs), ds.Public, time.Since(start).Round(time.Millisecond))

	stats, err := ds.Run(ctx, opts)
	if err != nil {
		return err
	}
	stats.Fprint(os.Stdout)
	return nil
}

func init() {
	dbBenchCmd.Flags().String("database", "", "Database to seed (default: a temporary SQLite file)")
	dbBenchCmd.Flags().Int("events", 2000, "Number of events to generate")
	dbBenchCmd.Flags().Int("readers", 50, "Concurrent readers")
	dbBenchCmd.Flags().Int("queries", 100, "Queries per reader")
	dbBenchCmd.Flags().Int("writers", 2, "Concurrent writers")
	dbImportCmd.Flags().Bool("dry-run", false, "Report what would be imported without writing")

	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbExportCmd)
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbBenchCmd)
	rootCmd.AddCommand(dbCmd)
}
