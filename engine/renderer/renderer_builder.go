package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithSortOrder sets the distance ordering used inside each technique group.
// When not specified, items are drawn front to back.
//
// Parameters:
//   - order: SortFrontToBack or SortBackToFront
//
// Returns:
//   - RendererBuilderOption: a function that applies the sort order option to a renderer
func WithSortOrder(order SortOrder) RendererBuilderOption {
	return func(r *renderer) {
		r.sortOrder = order
	}
}

// WithInitialCapacity pre-sizes the renderer's item storage so the first frames do not grow it.
//
// Parameters:
//   - n: the expected number of items per Submit
//
// Returns:
//   - RendererBuilderOption: a function that applies the capacity option to a renderer
func WithInitialCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.items = make([]DrawItem, 0, n)
		}
	}
}
