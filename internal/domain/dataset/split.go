package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DefaultTestFraction is the share of rows held out for testing.
const DefaultTestFraction = 0.2

// Split is a train/test partition of a Prepared dataset.
type Split struct {
	TrainX *mat.Dense
	TrainY []int
	TestX  *mat.Dense
	TestY  []int
}

// SplitRows shuffles rows with the given seed and holds out ceil(fraction*n) of them.
// The same seed always yields the same partition.
func SplitRows(p *Prepared, fraction float64, seed int64) (*Split, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrBadFraction, fraction)
	}
	n := p.Samples()
	nTest := int(math.Ceil(fraction * float64(n)))
	if n-nTest < 1 {
		return nil, fmt.Errorf("%w: %d rows", ErrTooFewRows, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]

	s := &Split{
		TrainX: selectRows(p.X, trainIdx),
		TrainY: selectLabels(p.Y, trainIdx),
		TestY:  selectLabels(p.Y, testIdx),
	}
	if len(testIdx) > 0 {
		s.TestX = selectRows(p.X, testIdx)
	}
	return s, nil
}

func selectRows(x *mat.Dense, idx []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}

func selectLabels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
