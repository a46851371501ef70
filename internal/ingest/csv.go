package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/outbreak-metrics-etl/internal/domain"
)

// table is a header-indexed CSV document.
type table struct {
	source  string
	columns map[string]int
	rows    [][]string
}

func readTable(source string, r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", source, domain.ErrEmptyDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}

	t := &table{source: source, columns: make(map[string]int, len(header))}
	for i, name := range header {
		t.columns[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", source, name)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: read rows: %w", source, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", source, domain.ErrEmptyDataset)
	}
	t.rows = rows
	return t, nil
}

// column returns the named field of row, or "" when absent.
func (t *table) column(row []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// columnWithPrefix finds the first header starting with prefix.
func (t *table) columnWithPrefix(prefix string) (string, bool) {
	best := ""
	for name := range t.columns {
		if strings.HasPrefix(name, prefix) && name > best {
			best = name
		}
	}
	return best, best != ""
}

// integer parses a required count; anything but an integer is fatal.
func (t *table) integer(row []string, rowNum int, name string) (int64, error) {
	raw := t.column(row, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ParseError{Source: t.source, Row: rowNum, Field: name, Value: raw, Err: domain.ErrMalformedNumber}
	}
	return v, nil
}

// count parses a case or death count. An empty field is an unreported zero.
func (t *table) count(row []string, rowNum int, name string) (int64, error) {
	if t.column(row, name) == "" {
		return 0, nil
	}
	return t.integer(row, rowNum, name)
}
