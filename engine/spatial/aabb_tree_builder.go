package spatial

type aabbTreeConfig struct {
	margin           float32
	rebuildThreshold float32
	minRebuildSize   int
	initialCapacity  int
}

func defaultAABBTreeConfig() aabbTreeConfig {
	return aabbTreeConfig{
		margin:           0,
		rebuildThreshold: 0.5,
		minRebuildSize:   32,
		initialCapacity:  64,
	}
}

// AABBTreeBuilderOption is a functional option applied to an AABB tree during construction via NewAABBTree.
type AABBTreeBuilderOption func(*aabbTreeConfig)

// WithMargin sets the padding added around every leaf box when it is inserted.
// Updates that keep an item inside its padded box only refit the ancestors instead of reinserting the leaf,
// which suits content that moves a little every frame.
//
// Parameters:
//   - margin: the padding in world units, 0 to disable
//
// Returns:
//   - AABBTreeBuilderOption: a function that applies the margin option to a tree
func WithMargin(margin float32) AABBTreeBuilderOption {
	return func(c *aabbTreeConfig) {
		c.margin = max(margin, 0)
	}
}

// WithRebuildThreshold sets the fraction of pending mutations, relative to the current item count,
// above which Finalize rebuilds the whole tree top-down instead of applying mutations one by one.
//
// Parameters:
//   - fraction: the rebuild fraction (default 0.5)
//   - minPending: the minimum number of pending mutations before a rebuild is considered (default 32)
//
// Returns:
//   - AABBTreeBuilderOption: a function that applies the rebuild threshold option to a tree
func WithRebuildThreshold(fraction float32, minPending int) AABBTreeBuilderOption {
	return func(c *aabbTreeConfig) {
		c.rebuildThreshold = fraction
		c.minRebuildSize = max(minPending, 1)
	}
}

// WithInitialCapacity pre-sizes the node arena for the expected number of items.
//
// Parameters:
//   - items: the expected item count
//
// Returns:
//   - AABBTreeBuilderOption: a function that applies the capacity option to a tree
func WithInitialCapacity(items int) AABBTreeBuilderOption {
	return func(c *aabbTreeConfig) {
		c.initialCapacity = max(items, 1)
	}
}
