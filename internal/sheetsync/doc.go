// Package sheetsync reconciles the schedule spreadsheet with the event store.
//
// Overview
//
// The schedule sheet is the organization's source of truth for when and
// where performances happen. The event table is what the public site shows.
// A sync is a two-pass workflow with a human in the middle:
//
//	Sheet rows ──► Parser ──► Matcher ──► Classifier ──► conflicts
//	                                                         │
//	                                              operator review
//	                                                         │
//	Event store ◄────────────── Applier ◄──────────── resolutions
//
// Preview fetches the sheet, parses every row, finds the stored event each
// row corresponds to and reports only the rows that differ (new or
// modified). Apply takes the operator's decision for each reported row and
// writes it.
//
// Usage
//
//	database, err := store.Open("data/stagesync.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//
//	syncer := sheetsync.New(reader, database, sheetsync.Options{
//	    Location: loc,
//	    Logger:   logger,
//	})
//
//	preview, err := syncer.Preview(ctx)
//	if err != nil {
//	    return err
//	}
//	result := syncer.Apply(ctx, resolutions)
//
// Row carry
//
// Multi-event days are written with the date only on the first row:
//
//	02/01- Sunday   11:00 AM   Temple (main hall)
//	                 2:00 PM   Temple (main hall)
//
// The parser carries the last valid date forward so both rows become events
// on 2026-02-01.
//
// Error Handling
//
//   - Unparseable rows are logged and reported as ParseFailures; the batch continues
//   - Sheet and store failures during Preview abort the pass
//   - Apply never aborts; each failed resolution becomes a "Row <n>: <message>" entry
//
// Concurrency
//
// A pass runs sequentially: later rows depend on the date carried from
// earlier ones, and matching reads the store one row at a time. Syncer holds
// no per-run state, so concurrent passes are safe but not coordinated. The
// optional expectedUpdatedAt token on a Resolution turns a silent
// overwrite of a concurrently edited event into a per-row error.
package sheetsync
