package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Prepared is a Table encoded for training.
type Prepared struct {
	X        *mat.Dense
	Y        []int
	Classes  []string
	Features []string
}

// Samples returns the number of rows.
func (p *Prepared) Samples() int {
	r, _ := p.X.Dims()
	return r
}

// FeatureCount returns the number of encoded feature columns.
func (p *Prepared) FeatureCount() int {
	_, c := p.X.Dims()
	return c
}

type column struct {
	name    string
	numeric []float64
	// levels holds the sorted distinct values of a categorical column, first level dropped.
	levels []string
	cells  []string
}

// Prepare splits off the target column and one-hot encodes categorical features.
// Numeric columns come first, then dummy columns in source column order.
func (t *Table) Prepare() (*Prepared, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	nFeat := len(t.Header) - 1
	cols := make([]column, nFeat)
	for j := 0; j < nFeat; j++ {
		c, err := buildColumn(strings.TrimSpace(t.Header[j]), t.Rows, j)
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}

	var names []string
	for _, c := range cols {
		if c.numeric != nil {
			names = append(names, c.name)
		}
	}
	for _, c := range cols {
		if c.numeric == nil {
			for _, lvl := range c.levels {
				names = append(names, c.name+"_"+lvl)
			}
		}
	}
	if len(names) == 0 {
		return nil, ErrNoFeatures
	}

	n := len(t.Rows)
	x := mat.NewDense(n, len(names), nil)
	at := 0
	for _, c := range cols {
		if c.numeric == nil {
			continue
		}
		for i, v := range c.numeric {
			x.Set(i, at, v)
		}
		at++
	}
	for _, c := range cols {
		if c.numeric != nil {
			continue
		}
		offset := make(map[string]int, len(c.levels))
		for k, lvl := range c.levels {
			offset[lvl] = at + k
		}
		for i, cell := range c.cells {
			if col, ok := offset[cell]; ok {
				x.Set(i, col, 1)
			}
		}
		at += len(c.levels)
	}

	y, classes := encodeTarget(t.Rows, len(t.Header)-1)
	return &Prepared{X: x, Y: y, Classes: classes, Features: names}, nil
}

// missingTokens are cells read as a missing value rather than a category.
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "#N/A": {}, "#NA": {}, "<NA>": {},
	"NaN": {}, "nan": {}, "-NaN": {}, "-nan": {}, "NULL": {}, "null": {}, "None": {},
}

func isMissing(cell string) bool {
	_, ok := missingTokens[cell]
	return ok
}

// buildColumn keeps a column numeric when every present cell parses as a number.
// Missing numeric cells take the column mean; infinities are rejected.
func buildColumn(name string, rows [][]string, j int) (column, error) {
	c := column{name: name, cells: make([]string, len(rows))}
	values := make([]float64, len(rows))
	present := make([]bool, len(rows))
	numeric := true
	for i, row := range rows {
		cell := strings.TrimSpace(row[j])
		c.cells[i] = cell
		if !numeric || isMissing(cell) {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			numeric = false
			continue
		}
		if math.IsNaN(v) {
			continue
		}
		values[i], present[i] = v, true
	}
	if numeric {
		n := 0
		for i, v := range values {
			if !present[i] {
				continue
			}
			if math.IsInf(v, 0) {
				return column{}, fmt.Errorf("%w: column %q row %d", ErrNonFinite, name, i+1)
			}
			n++
		}
		// Dividing before summing keeps the mean finite near the float64 limits.
		mean := 0.0
		for i, v := range values {
			if present[i] {
				mean += v / float64(n)
			}
		}
		for i := range values {
			if !present[i] {
				values[i] = mean
			}
		}
		c.numeric = values
		return c, nil
	}

	distinct := make(map[string]struct{})
	for _, cell := range c.cells {
		if !isMissing(cell) {
			distinct[cell] = struct{}{}
		}
	}
	levels := make([]string, 0, len(distinct))
	for v := range distinct {
		levels = append(levels, v)
	}
	sort.Strings(levels)
	if len(levels) > 0 {
		levels = levels[1:]
	}
	c.levels = levels
	return c, nil
}

// encodeTarget maps target values to class indices in sorted label order.
func encodeTarget(rows [][]string, j int) ([]int, []string) {
	distinct := make(map[string]struct{})
	for _, row := range rows {
		distinct[strings.TrimSpace(row[j])] = struct{}{}
	}
	classes := make([]string, 0, len(distinct))
	for v := range distinct {
		classes = append(classes, v)
	}
	sortLabels(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, len(rows))
	for i, row := range rows {
		y[i] = index[strings.TrimSpace(row[j])]
	}
	return y, classes
}

// sortLabels orders numerically when every label is a number, lexicographically otherwise.
func sortLabels(labels []string) {
	nums := make(map[string]float64, len(labels))
	for _, l := range labels {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			sort.Strings(labels)
			return
		}
		nums[l] = v
	}
	sort.Slice(labels, func(a, b int) bool { return nums[labels[a]] < nums[labels[b]] })
}

// String summarizes the shape for logs.
func (p *Prepared) String() string {
	return fmt.Sprintf("%dx%d (%d classes)", p.Samples(), p.FeatureCount(), len(p.Classes))
}
