package area

// GraphBuilderOption is a function that configures a Graph during construction.
type GraphBuilderOption func(*Graph)

// WithMaxVisiblePortals is an option builder that caps the number of portals a single traversal may collect.
// A traversal hitting the cap stops expanding and returns what it has, logging once.
//
// Parameters:
//   - n: the maximum number of portals per traversal, ignored if not positive
//
// Returns:
//   - GraphBuilderOption: a function that applies the cap to a Graph
func WithMaxVisiblePortals(n int) GraphBuilderOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxVisiblePortals = n
		}
	}
}
