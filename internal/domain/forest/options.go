package forest

// Option configures a Classifier.
type Option func(*Classifier)

// WithTrees sets the number of trees. Non-positive values are ignored.
func WithTrees(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.NTrees = n
		}
	}
}

// WithSeed sets the random seed used for bootstrapping and feature sampling.
func WithSeed(seed int64) Option {
	return func(c *Classifier) {
		c.Seed = seed
	}
}

// WithMaxDepth limits tree depth. Zero means unbounded.
func WithMaxDepth(depth int) Option {
	return func(c *Classifier) {
		if depth >= 0 {
			c.MaxDepth = depth
		}
	}
}

// WithMaxFeatures sets how many features are tried per split. Zero means sqrt(d).
func WithMaxFeatures(n int) Option {
	return func(c *Classifier) {
		if n >= 0 {
			c.MaxFeatures = n
		}
	}
}
