package sheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// scheduleFile is the on-disk layout of a local schedule export.
//
// Either form is accepted:
//
//	rows:                      # explicit rows with their sheet numbers
//	  - {date: "01/31- Saturday", time: "11:00", location: "Temple", row_number: 2}
//	values:                    # a raw grid, header line first
//	  - [Date, Time, Location]
//	  - ["01/31- Saturday", "11:00", "Temple"]
type scheduleFile struct {
	Rows   []Row      `yaml:"rows" toml:"rows"`
	Values [][]string `yaml:"values" toml:"values"`
}

// FileReader reads a schedule from a YAML or TOML file. It stands in for the
// live spreadsheet in local development and tests.
type FileReader struct {
	Path string
}

// FetchRows decodes the file on every call so edits are picked up.
func (f *FileReader) FetchRows(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var sf scheduleFile
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &sf); err != nil {
			return nil, fmt.Errorf("failed to parse schedule file %s: %w", f.Path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sf); err != nil {
			return nil, fmt.Errorf("failed to parse schedule file %s: %w", f.Path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported schedule file type %q (want .yaml, .yml or .toml)", filepath.Ext(f.Path))
	}

	if len(sf.Rows) > 0 {
		out := make([]Row, 0, len(sf.Rows))
		for i, r := range sf.Rows {
			if r.RowNumber == 0 {
				r.RowNumber = i + 2
			}
			if !r.Empty() {
				out = append(out, r)
			}
		}
		return out, nil
	}

	grid := make([][]any, len(sf.Values))
	for i, line := range sf.Values {
		grid[i] = make([]any, len(line))
		for j, v := range line {
			grid[i][j] = v
		}
	}
	return rowsFromValues(grid), nil
}
