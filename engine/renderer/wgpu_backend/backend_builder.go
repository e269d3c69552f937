package wgpu_backend

import "github.com/cogentcore/webgpu/wgpu"

// BackendBuilderOption is a functional option applied to the backend during construction via NewBackend.
type BackendBuilderOption func(*backendImpl)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - BackendBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(b *backendImpl) {
		switch mode {
		case PresentModeVSync:
			b.presentMode = wgpu.PresentModeFifo
		default:
			b.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithMSAA sets the multisample anti-aliasing sample count.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x, MSAA8x, or MSAA16x)
//
// Returns:
//   - BackendBuilderOption: a function that applies the MSAA option
func WithMSAA(count MSAASampleCount) BackendBuilderOption {
	return func(b *backendImpl) {
		b.sampleCount = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - BackendBuilderOption: a function that applies the force software renderer option
func WithForceSoftwareRenderer(force bool) BackendBuilderOption {
	return func(b *backendImpl) {
		b.forceFallbackAdapter = force
	}
}

// WithMaxDrawsPerFrame sets the initial number of parameter slots each technique allocates.
// A technique that runs out of slots doubles its storage at the start of the next frame.
//
// Parameters:
//   - n: draws per technique per frame
//
// Returns:
//   - BackendBuilderOption: a function that applies the slot count option
func WithMaxDrawsPerFrame(n int) BackendBuilderOption {
	return func(b *backendImpl) {
		if n > 0 {
			b.maxDrawsPerSet = n
		}
	}
}

// WithClearColor sets the color the main render pass clears to.
//
// Parameters:
//   - r, g, b, a: color components in [0, 1]
//
// Returns:
//   - BackendBuilderOption: a function that applies the clear color option
func WithClearColor(r, g, b, a float64) BackendBuilderOption {
	return func(bi *backendImpl) {
		bi.clearColor = wgpu.Color{R: r, G: g, B: b, A: a}
	}
}
