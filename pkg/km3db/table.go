package km3db

import (
	"fmt"
	"strings"
)

// Table is a tab-separated result with a header line.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ParseTable parses tab-separated text. Blank lines are skipped; every row
// must have as many fields as the header.
func ParseTable(text string) (*Table, error) {
	t := &Table{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if t.Columns == nil {
			t.Columns = fields
			continue
		}
		if len(fields) != len(t.Columns) {
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrMalformedTable, i+1, len(fields), len(t.Columns))
		}
		t.Rows = append(t.Rows, fields)
	}
	if t.Columns == nil {
		return nil, fmt.Errorf("%w: no header", ErrMalformedTable)
	}
	return t, nil
}

// Index returns the position of the named column, ignoring case, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Records returns the rows keyed by column name.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for r, row := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			m[c] = row[i]
		}
		out[r] = m
	}
	return out
}
