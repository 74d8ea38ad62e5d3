// Package dataset turns tabular artifacts into numeric training matrices.
//
// The last column of a Table is the prediction target; every other column is
// a feature. Non-numeric feature columns are one-hot expanded with the first
// category dropped.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/okian/ecoaudit/internal/domain/model"
)

// TypeName is the registered artifact name of a serialized Table.
const TypeName = "dataset.Table"

func init() {
	model.Register(TypeName, func() any { return &Table{} })
}

// Table is a header plus string cells, as read from a file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Parse reads a delimited file with a header row.
func Parse(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	t := &Table{Header: records[0], Rows: records[1:]}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the structural invariants Prepare relies on.
func (t *Table) Validate() error {
	if len(t.Header) < 2 {
		return ErrTooFewCols
	}
	if len(t.Rows) == 0 {
		return ErrEmpty
	}
	seen := make(map[string]struct{}, len(t.Header))
	for _, name := range t.Header {
		name = strings.TrimSpace(name)
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateCol, name)
		}
		seen[name] = struct{}{}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%w: row %d has %d cells, header has %d", ErrRaggedRow, i+1, len(row), len(t.Header))
		}
	}
	return nil
}

// Target returns the name of the target column.
func (t *Table) Target() string {
	return t.Header[len(t.Header)-1]
}
