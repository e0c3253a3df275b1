package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/config"
	"github.com/lotusstage/stagesync/internal/sheet"
	"github.com/lotusstage/stagesync/internal/sheetsync"
	"github.com/lotusstage/stagesync/internal/store"
)

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	if logger != nil {
		_ = logger.Close()
	}
	os.Exit(1)
}

// openStore opens the configured database and makes sure the schema exists.
func openStore(ctx context.Context, c *config.Config) (*store.DB, error) {
	db, err := store.Open(c.Database.URL, store.WithAuthToken(c.Database.AuthToken))
	if err != nil {
		return nil, err
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newReader builds the row source named by sheet.source.
func newReader(ctx context.Context, c *config.Config, log *zap.Logger) (sheet.Reader, error) {
	switch c.Sheet.Source {
	case "file":
		return &sheet.FileReader{Path: c.Sheet.File}, nil
	case "google":
		return sheet.NewGoogleReader(ctx, sheet.GoogleConfig{
			SpreadsheetID:       c.Sheet.ID,
			Range:               c.Sheet.Range,
			CredentialsFile:     c.Sheet.CredentialsFile,
			CredentialsJSON:     c.Sheet.CredentialsJSON,
			ServiceAccountEmail: c.Sheet.ServiceAccountEmail,
		}, log.Named("sheet"))
	default:
		return nil, fmt.Errorf("invalid sheet.source %q", c.Sheet.Source)
	}
}

// newSyncer wires a syncer from the configuration.
func newSyncer(reader sheet.Reader, db sheetsync.EventStore, c *config.Config, log *zap.Logger, notifier sheetsync.Notifier) *sheetsync.Syncer {
	return sheetsync.New(reader, db, sheetsync.Options{
		Year:     c.Sheet.Year,
		Location: c.Location(),
		Logger:   log.Named("sync"),
		Notifier: notifier,
	})
}

// redactDSN hides passwords and auth tokens in a database URL.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return dsn
	}
	q := u.Query()
	for _, key := range []string{"authToken", "password"} {
		if q.Has(key) {
			q.Set(key, "xxxxx")
		}
	}
	u.RawQuery = q.Encode()
	return u.Redacted()
}
