package sheet

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleConfig configures a GoogleReader.
type GoogleConfig struct {
	SpreadsheetID string
	Range         string

	// CredentialsFile is a path to a service account JSON key. It wins over
	// CredentialsJSON when both are set.
	CredentialsFile string
	CredentialsJSON string
	// ServiceAccountEmail is used when the key itself has no client_email.
	ServiceAccountEmail string
}

// GoogleReader reads a schedule range through the Sheets v4 API using a
// service account with read-only scope.
type GoogleReader struct {
	svc    *sheets.Service
	id     string
	rng    string
	logger *zap.Logger
}

// NewGoogleReader builds the Sheets client. No request is made until FetchRows.
func NewGoogleReader(ctx context.Context, cfg GoogleConfig, logger *zap.Logger) (*GoogleReader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrMissingSheetID
	}

	key, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	conf, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}
	if conf.Email == "" {
		conf.Email = cfg.ServiceAccountEmail
	}
	if conf.Email == "" {
		return nil, fmt.Errorf("missing Google Sheets service account email")
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	rng := cfg.Range
	if rng == "" {
		rng = DefaultRange
	}

	return &GoogleReader{svc: svc, id: cfg.SpreadsheetID, rng: rng, logger: logger}, nil
}

// FetchRows reads the configured range and returns its non-empty data rows.
func (g *GoogleReader) FetchRows(ctx context.Context) ([]Row, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.id, g.rng).Context(ctx).Do()
	if err != nil {
		g.logger.Error("sheet fetch failed", zap.String("range", g.rng), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch sheet data: %w", err)
	}
	rows := rowsFromValues(resp.Values)
	g.logger.Debug("sheet fetched",
		zap.String("range", g.rng),
		zap.Int("lines", len(resp.Values)),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// loadCredentials returns the service account key, preferring the file.
func loadCredentials(cfg GoogleConfig) ([]byte, error) {
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account key from file (%s): %w", cfg.CredentialsFile, err)
		}
		data = bytes.TrimPrefix(data, []byte("\ufeff"))
		return bytes.TrimSpace(data), nil
	}
	if strings.TrimSpace(cfg.CredentialsJSON) == "" {
		return nil, ErrMissingCredentials
	}
	return []byte(cleanInlineKey(cfg.CredentialsJSON)), nil
}

// cleanInlineKey undoes the quoting that env files commonly add around a
// JSON key: one pair of surrounding quotes and escaped inner quotes.
func cleanInlineKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}
