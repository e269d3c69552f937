package geometry

type loadConfig struct {
	keepVertexData bool
}

// LoadOption is a functional option applied by LoadShape.
type LoadOption func(*loadConfig)

// WithKeepVertexData keeps the CPU copies of vertex and index data after the buffers are created.
// Without a device the data is always kept.
//
// Parameters:
//   - keep: true to keep CPU data
//
// Returns:
//   - LoadOption: functional option to keep vertex data
func WithKeepVertexData(keep bool) LoadOption {
	return func(c *loadConfig) {
		c.keepVertexData = keep
	}
}
