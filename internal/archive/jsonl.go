// Package archive moves events in and out of the store as JSON Lines, one
// event per line. It is used for backups and for copying a calendar between
// database backends.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/store"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 1 << 20

// Store is the subset of store.DB the archive needs.
type Store interface {
	FindEvents(ctx context.Context, filter schema.EventFilter) ([]*schema.Event, error)
	GetEvent(ctx context.Context, id string) (*schema.Event, error)
	InsertEvent(ctx context.Context, e *schema.Event) error
}

// ImportOptions configures Import.
type ImportOptions struct {
	DryRun bool // Count what would be inserted without writing
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Read     int
	Inserted int
	// Skipped counts events whose id already exists. Existing events are
	// never overwritten.
	Skipped int
	Errors  []string
}

// Export writes every stored event to w, ordered by start date.
func Export(ctx context.Context, s Store, w io.Writer) (int, error) {
	events, err := s.FindEvents(ctx, schema.EventFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list events: %w", err)
	}
	enc := json.NewEncoder(w)
	for i, e := range events {
		if err := enc.Encode(e); err != nil {
			return i, fmt.Errorf("failed to write event %s: %w", e.ID, err)
		}
	}
	return len(events), nil
}

// ExportFile writes the export to path, replacing it atomically.
func ExportFile(ctx context.Context, s Store, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	tmpPath := path + ".tmp"
	// #nosec G304 - controlled path from CLI
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	bw := bufio.NewWriter(f)
	n, err := Export(ctx, s, bw)
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return n, nil
}

// Read parses a JSONL stream. Blank lines are ignored. Missing ids,
// categories and timestamps get their defaults.
func Read(r io.Reader) ([]*schema.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []*schema.Event
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e schema.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		e.SetDefaults()
		events = append(events, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}
	return events, nil
}

// Import inserts the events in r that are not already stored. A malformed
// line aborts before anything is written; an invalid or failing event is
// recorded in Errors and the rest continue.
func Import(ctx context.Context, s Store, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	events, err := Read(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Read: len(events)}
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if seen[e.ID] {
			result.Skipped++
			continue
		}
		seen[e.ID] = true

		if err := e.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", e.ID, err))
			continue
		}

		_, err := s.GetEvent(ctx, e.ID)
		switch {
		case err == nil:
			result.Skipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", e.ID, err))
			continue
		}

		if !opts.DryRun {
			if err := s.InsertEvent(ctx, e); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", e.ID, err))
				continue
			}
		}
		result.Inserted++
	}
	return result, nil
}

// ImportFile is Import reading from path.
func ImportFile(ctx context.Context, s Store, path string, opts ImportOptions) (*ImportResult, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer f.Close()
	return Import(ctx, s, f, opts)
}
