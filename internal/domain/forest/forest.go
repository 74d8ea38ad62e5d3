// Package forest implements the baseline random forest classifier used by training audits.
package forest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/ecoaudit/internal/domain/model"
)

const (
	// TypeName is the artifact name of a serialized Classifier.
	TypeName = "forest.Classifier"
	// DisplayName is how training audits report this model.
	DisplayName = "RandomForest"

	DefaultTrees = 100
	DefaultSeed  = 42

	minSamplesSplit = 2
)

func init() {
	model.Register(TypeName, func() any { return &Classifier{} })
}

// Node is one decision node; leaves have Left == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Class     int
}

// Tree is a flattened CART tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(row []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Class
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Classifier is a bagged ensemble of gini CART trees.
//
// The random source is created on the first Fit and keeps advancing across later
// fits, so fitting the same data twice grows different trees.
type Classifier struct {
	NTrees      int
	MaxDepth    int
	MaxFeatures int
	Seed        int64

	Trees       []Tree
	Features    int
	Classes     int
	Importances []float64

	rng *rand.Rand
}

// New returns an unfitted classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{NTrees: DefaultTrees, Seed: DefaultSeed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit grows the ensemble on x and integer class labels y.
func (c *Classifier) Fit(x mat.Matrix, y []int) error {
	r, d := x.Dims()
	if r == 0 || d == 0 {
		return ErrEmptyInput
	}
	if len(y) != r {
		return fmt.Errorf("%w: %d labels for %d rows", ErrLabelMismatch, len(y), r)
	}

	classes := 0
	for _, v := range y {
		if v < 0 {
			return fmt.Errorf("%w: %d", ErrNegativeLabel, v)
		}
		if v+1 > classes {
			classes = v + 1
		}
	}

	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
	}

	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(c.Seed))
	}
	nTrees := c.NTrees
	if nTrees <= 0 {
		nTrees = DefaultTrees
	}
	tries := c.MaxFeatures
	if tries <= 0 || tries > d {
		tries = max(1, int(math.Sqrt(float64(d))))
	}

	trees := make([]Tree, nTrees)
	importances := make([]float64, d)
	for t := range trees {
		sample := make([]int, r)
		for i := range sample {
			sample[i] = c.rng.Intn(r)
		}
		b := &builder{
			rows:     rows,
			y:        y,
			classes:  classes,
			tries:    tries,
			maxDepth: c.MaxDepth,
			rng:      c.rng,
			gain:     make([]float64, d),
		}
		b.grow(sample, 0)
		trees[t] = Tree{Nodes: b.nodes}
		addNormalized(importances, b.gain)
	}
	normalize(importances)

	c.Trees = trees
	c.Features = d
	c.Classes = classes
	c.Importances = importances
	return nil
}

// Validate checks the structure of a decoded forest so that Predict cannot
// index out of range or loop. Children must follow their parent in Nodes.
func (c *Classifier) Validate() error {
	if len(c.Trees) == 0 {
		return nil
	}
	if c.Features < 1 || c.Classes < 1 {
		return fmt.Errorf("%w: %d features, %d classes", ErrMalformed, c.Features, c.Classes)
	}
	for t, tree := range c.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d has no nodes", ErrMalformed, t)
		}
		for i, n := range tree.Nodes {
			if n.Class < 0 || n.Class >= c.Classes {
				return fmt.Errorf("%w: tree %d node %d class %d", ErrMalformed, t, i, n.Class)
			}
			if n.Left < 0 {
				continue
			}
			if n.Feature < 0 || n.Feature >= c.Features {
				return fmt.Errorf("%w: tree %d node %d feature %d", ErrMalformed, t, i, n.Feature)
			}
			if n.Left <= i || n.Right <= i || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("%w: tree %d node %d children %d/%d", ErrMalformed, t, i, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Predict returns the majority-vote class index for each row.
func (c *Classifier) Predict(x mat.Matrix) ([]float64, error) {
	if len(c.Trees) == 0 {
		return nil, ErrNotFitted
	}
	r, d := x.Dims()
	if d != c.Features {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, d, c.Features)
	}

	out := make([]float64, r)
	row := make([]float64, d)
	votes := make([]int, c.Classes)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		clear(votes)
		for t := range c.Trees {
			votes[c.Trees[t].predict(row)]++
		}
		out[i] = float64(argmax(votes))
	}
	return out, nil
}

// Score returns the accuracy of Predict on x against y.
func (c *Classifier) Score(x mat.Matrix, y []int) (float64, error) {
	pred, err := c.Predict(x)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, fmt.Errorf("%w: %d labels for %d rows", ErrLabelMismatch, len(y), len(pred))
	}
	if len(y) == 0 {
		return 0, nil
	}
	hits := 0
	for i, p := range pred {
		if int(p) == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(y)), nil
}

// NFeaturesIn is the input width seen by the last Fit, zero before fitting.
func (c *Classifier) NFeaturesIn() int { return c.Features }

// FeatureImportances returns normalized mean impurity decrease per feature.
func (c *Classifier) FeatureImportances() ([]float64, error) {
	if len(c.Trees) == 0 {
		return nil, ErrNotFitted
	}
	return append([]float64(nil), c.Importances...), nil
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type builder struct {
	rows     [][]float64
	y        []int
	classes  int
	tries    int
	maxDepth int
	rng      *rand.Rand

	nodes []Node
	gain  []float64
}

func (b *builder) grow(idx []int, depth int) int {
	counts := b.count(idx)
	node := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Class: argmax(counts)})

	if len(idx) < minSamplesSplit || pure(counts) || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return node
	}
	sp, ok := b.bestSplit(idx, counts)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.rows[i][sp.feature] <= sp.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return node
	}
	b.gain[sp.feature] += sp.gain * float64(len(idx))

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[node].Feature = sp.feature
	b.nodes[node].Threshold = sp.threshold
	b.nodes[node].Left = l
	b.nodes[node].Right = r
	return node
}

// bestSplit samples features until tries non-constant ones were examined.
func (b *builder) bestSplit(idx []int, counts []int) (split, bool) {
	n := len(idx)
	parent := gini(counts, n)
	order := make([]int, n)
	left := make([]int, b.classes)
	right := make([]int, b.classes)

	var best split
	found := false
	tried := 0
	for _, f := range b.rng.Perm(len(b.gain)) {
		if tried == b.tries {
			break
		}
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.rows[order[a]][f] < b.rows[order[c]][f] })
		if b.rows[order[0]][f] == b.rows[order[n-1]][f] {
			continue
		}
		tried++

		clear(left)
		copy(right, counts)
		for k := 0; k < n-1; k++ {
			cls := b.y[order[k]]
			left[cls]++
			right[cls]--
			v, next := b.rows[order[k]][f], b.rows[order[k+1]][f]
			if v == next {
				continue
			}
			nl := k + 1
			nr := n - nl
			child := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
			gain := parent - child
			if !found || gain > best.gain {
				threshold := v/2 + next/2
				if threshold >= next || threshold < v {
					threshold = v
				}
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) count(idx []int) []int {
	counts := make([]int, b.classes)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func pure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// argmax returns the lowest index of the maximum.
func argmax(v []int) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func addNormalized(dst, src []float64) {
	total := 0.0
	for _, v := range src {
		total += v
	}
	if total == 0 {
		return
	}
	for i, v := range src {
		dst[i] += v / total
	}
}

func normalize(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total == 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
