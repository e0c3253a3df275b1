package store

import (
	"strconv"
	"strings"
	"time"
)

const (
	dialectSQLite   = "sqlite"
	dialectLibSQL   = "libsql"
	dialectPostgres = "postgres"
)

// timeLayout is fixed-width so that text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type dialect struct {
	name    string
	driver  string
	pragmas []string
	schema  []string
}

func dialectFor(dsn string) dialect {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgresDialect
	case strings.HasPrefix(lower, "libsql://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "wss://"):
		return libsqlDialect
	default:
		return sqliteDialect
	}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d dialect) rebind(query string) string {
	if d.name != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts t into the column representation of the dialect.
func (d dialect) timeArg(t time.Time) any {
	t = t.UTC().Truncate(time.Microsecond)
	if d.name == dialectPostgres {
		return t
	}
	return t.Format(timeLayout)
}

func (d dialect) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.timeArg(*t)
}

func (d dialect) boolArg(b bool) any {
	if d.name == dialectPostgres {
		return b
	}
	if b {
		return 1
	}
	return 0
}

var sqliteTables = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		location TEXT,
		category TEXT NOT NULL DEFAULT 'weekly'
			CHECK (category IN ('daily', 'weekly', 'special')),
		image_url TEXT,
		video_url TEXT,
		public INTEGER NOT NULL DEFAULT 0,
		day_of_week TEXT,
		google_sheet_row_number INTEGER,
		synced_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_events_sheet_row ON events(google_sheet_row_number)`,
	`CREATE INDEX IF NOT EXISTS idx_events_public_start ON events(public, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_events_location ON events(location)`,
}

var sqliteDialect = dialect{
	name:   dialectSQLite,
	driver: "sqlite3",
	// journal_mode persists in the file; the per-connection settings
	// travel in the DSN so every pooled connection gets them.
	pragmas: []string{
		"PRAGMA journal_mode=WAL",
	},
	schema: sqliteTables,
}

// Hosted libSQL manages its own journal; only the schema is shared with SQLite.
var libsqlDialect = dialect{
	name:   dialectLibSQL,
	driver: "libsql",
	schema: sqliteTables,
}

var postgresDialect = dialect{
	name:   dialectPostgres,
	driver: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ,
			location TEXT,
			category TEXT NOT NULL DEFAULT 'weekly'
				CHECK (category IN ('daily', 'weekly', 'special')),
			image_url TEXT,
			video_url TEXT,
			public BOOLEAN NOT NULL DEFAULT FALSE,
			day_of_week TEXT,
			google_sheet_row_number INTEGER,
			synced_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_sheet_row ON events(google_sheet_row_number)`,
		`CREATE INDEX IF NOT EXISTS idx_events_public_start ON events(public, start_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_location ON events(location)`,
	},
}
