package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lotusstage/stagesync/internal/sheet"
	"github.com/lotusstage/stagesync/internal/sheetsync"
	"github.com/lotusstage/stagesync/internal/store"
	"github.com/lotusstage/stagesync/internal/tui"
)

var sheetCmd = &cobra.Command{
	Use:     "sheet",
	GroupID: "sync",
	Short:   "Preview and resolve schedule sheet conflicts",
	Long: `Compare the schedule sheet with the events calendar.

  stagesync sheet preview          # list rows that need review
  stagesync sheet resolve          # choose an action per row, then apply
  stagesync sheet apply FILE       # apply resolutions saved as JSON`,
}

var sheetPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show sheet rows that differ from the calendar",
	Long: `Show sheet rows that differ from the calendar. Nothing is written.

  --watch    keep running and preview again whenever sheet.file changes
             (sheet.source must be file)`,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		watch, _ := cmd.Flags().GetBool("watch")
		if watch && cfg.Sheet.Source != "file" {
			fatalf("--watch needs sheet.source file (got %s)", cfg.Sheet.Source)
		}

		ctx := cmd.Context()
		syncer, db, err := cliSyncer(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		if err := printPreview(ctx, syncer, asJSON); err != nil {
			_ = db.Close()
			fatalf("%v", err)
		}
		if !watch {
			return
		}

		w, err := sheet.NewWatcher(cfg.Sheet.File, sheet.DefaultDebounce)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			_ = db.Close()
			fatalf("%v", err)
		}
		defer w.Stop()

		fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", cfg.Sheet.File)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-w.Errors():
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			case <-w.Changes():
				if !asJSON {
					fmt.Printf("\n-- %s --\n", time.Now().Format("15:04:05"))
				}
				if err := printPreview(ctx, syncer, asJSON); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			}
		}
	},
}

func printPreview(ctx context.Context, syncer *sheetsync.Syncer, asJSON bool) error {
	preview, err := syncer.Preview(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeIndented(os.Stdout, preview)
	}
	fmt.Print(tui.PreviewView(preview, tui.NewStyles(tui.NewRenderer(os.Stdout)), cfg.Location()))
	return nil
}

var sheetResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Choose an action for every conflict and apply the result",
	Long: `Run a preview, ask for an action on each conflict and apply the answers.

  --all useSheet     resolve every conflict the same way without prompting
  --save FILE        write the resolutions to FILE instead of applying them`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetString("all")
		save, _ := cmd.Flags().GetString("save")

		ctx := cmd.Context()
		syncer, db, err := cliSyncer(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		preview, err := syncer.Preview(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Print(tui.PreviewView(preview, tui.NewStyles(tui.NewRenderer(os.Stdout)), cfg.Location()))
		if len(preview.Conflicts) == 0 {
			return
		}

		var resolutions []sheetsync.Resolution
		if all != "" {
			action, err := sheetsync.ParseAction(all)
			if err != nil {
				fatalf("%v", err)
			}
			resolutions = resolveAll(preview.Conflicts, action)
		} else {
			resolutions, err = tui.Review(preview.Conflicts, tui.ReviewOptions{
				In:         os.Stdin,
				Out:        os.Stdout,
				Accessible: !tui.IsTerminal(os.Stdin) || !tui.IsTerminal(os.Stdout),
				Location:   cfg.Location(),
			})
			if errors.Is(err, tui.ErrAborted) {
				fmt.Println("Review aborted, nothing applied.")
				return
			}
			if err != nil {
				fatalf("%v", err)
			}
		}

		if save != "" {
			if err := saveResolutions(save, resolutions); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("✓ Saved %d resolutions to %s\n", len(resolutions), save)
			return
		}
		if !printApplyResult(syncer.Apply(ctx, resolutions)) {
			_ = db.Close()
			fatalf("some resolutions were not applied")
		}
	},
}

var sheetApplyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Apply resolutions from a JSON file",
	Long: `Apply resolutions saved by 'sheet resolve --save' or written by hand.

The file holds either a JSON array of resolutions or {"resolutions": [...]}.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resolutions, err := loadResolutions(args[0])
		if err != nil {
			fatalf("%v", err)
		}

		ctx := cmd.Context()
		syncer, db, err := cliSyncer(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer db.Close()

		if !printApplyResult(syncer.Apply(ctx, resolutions)) {
			_ = db.Close()
			fatalf("some resolutions were not applied")
		}
	},
}

func cliSyncer(ctx context.Context) (*sheetsync.Syncer, *store.DB, error) {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	reader, err := newReader(ctx, cfg, logger.Logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return newSyncer(reader, db, cfg, logger.Logger, nil), db, nil
}

func resolveAll(conflicts []sheetsync.Conflict, action sheetsync.Action) []sheetsync.Resolution {
	out := make([]sheetsync.Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		a := action
		if a == sheetsync.ActionKeepDB && c.DBData == nil {
			a = sheetsync.ActionSkip
		}
		out = append(out, c.Resolve(a))
	}
	return out
}

// printApplyResult reports res and whether every resolution succeeded.
func printApplyResult(res sheetsync.ApplyResult) bool {
	if res.Success {
		fmt.Printf("✓ Applied %d resolutions\n", res.Applied)
		return true
	}
	fmt.Printf("⚠ Applied %d resolutions, %d failed:\n", res.Applied, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Printf("   %s\n", e)
	}
	return false
}

func saveResolutions(path string, resolutions []sheetsync.Resolution) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeIndented(f, map[string]any{
		"savedAt":     time.Now().UTC(),
		"resolutions": resolutions,
	}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func loadResolutions(path string) ([]sheetsync.Resolution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decodeResolutions(data)
}

// decodeResolutions accepts a bare array or an object with a resolutions
// array.
func decodeResolutions(data []byte) ([]sheetsync.Resolution, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Resolutions json.RawMessage `json:"resolutions"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("invalid resolutions file: %w", err)
		}
		data = bytes.TrimSpace(wrapper.Resolutions)
	}
	if len(data) == 0 || data[0] != '[' {
		return nil, errors.New("resolutions must be an array")
	}
	var resolutions []sheetsync.Resolution
	if err := json.Unmarshal(data, &resolutions); err != nil {
		return nil, fmt.Errorf("invalid resolutions file: %w", err)
	}
	for i, r := range resolutions {
		if _, err := sheetsync.ParseAction(string(r.Action)); err != nil {
			return nil, fmt.Errorf("resolution %d: %w", i, err)
		}
	}
	return resolutions, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	sheetPreviewCmd.Flags().Bool("json", false, "Print the preview as JSON")
	sheetPreviewCmd.Flags().Bool("watch", false, "Preview again whenever the schedule file changes")
	sheetResolveCmd.Flags().String("all", "", "Resolve every conflict with this action (useSheet, keepDb, skip)")
	sheetResolveCmd.Flags().String("save", "", "Write resolutions to this file instead of applying them")

	sheetCmd.AddCommand(sheetPreviewCmd)
	sheetCmd.AddCommand(sheetResolveCmd)
	sheetCmd.AddCommand(sheetApplyCmd)
	rootCmd.AddCommand(sheetCmd)
}
