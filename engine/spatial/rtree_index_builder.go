package spatial

type rtreeConfig struct {
	minChildren int
	maxChildren int
	epsilon     float64
}

func defaultRTreeConfig() rtreeConfig {
	return rtreeConfig{
		minChildren: 4,
		maxChildren: 16,
		epsilon:     1e-4,
	}
}

// RTreeBuilderOption is a functional option applied to an R-tree index during construction via NewRTreeIndex.
type RTreeBuilderOption func(*rtreeConfig)

// WithBranching sets the minimum and maximum number of children per R-tree node.
//
// Parameters:
//   - minChildren: the minimum fill of a node (default 4)
//   - maxChildren: the maximum fill of a node (default 16)
//
// Returns:
//   - RTreeBuilderOption: a function that applies the branching option to an index
func WithBranching(minChildren, maxChildren int) RTreeBuilderOption {
	return func(c *rtreeConfig) {
		c.minChildren = max(minChildren, 1)
		c.maxChildren = max(maxChildren, c.minChildren*2)
	}
}

// WithEpsilon sets the padding applied to R-tree rectangles so that boxes touching along a face still meet.
//
// Parameters:
//   - epsilon: the padding in world units (default 1e-4)
//
// Returns:
//   - RTreeBuilderOption: a function that applies the epsilon option to an index
func WithEpsilon(epsilon float64) RTreeBuilderOption {
	return func(c *rtreeConfig) {
		c.epsilon = epsilon
	}
}
