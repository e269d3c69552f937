package light

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a lightImpl
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize3(x, y, z)
	}
}

// WithOrigin is an option builder that sets the node-space origin of the light.
//
// Parameters:
//   - origin: the origin
//
// Returns:
//   - LightBuilderOption: a function that applies the origin option to a lightImpl
func WithOrigin(origin mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.origin = origin
	}
}

// WithRadius is an option builder that bounds a point light by a cube of the given half size.
// For spot lights without a target the radius is the length of the default axis.
//
// Parameters:
//   - radius: the bounding radius
//
// Returns:
//   - LightBuilderOption: a function that applies the radius option to a lightImpl
func WithRadius(radius float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.radius = radius
	}
}

// WithHalfExtents is an option builder that bounds a point light by a box around its center.
//
// Parameters:
//   - halfExtents: the box half extents
//
// Returns:
//   - LightBuilderOption: a function that applies the bounds option to a lightImpl
func WithHalfExtents(halfExtents mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.halfExtents = halfExtents
		l.hasExtents = true
	}
}

// WithCenter is an option builder that offsets the bounds of a point light from its node origin.
//
// Parameters:
//   - center: the node-space bounds center
//
// Returns:
//   - LightBuilderOption: a function that applies the center option to a lightImpl
func WithCenter(center mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.center = center
	}
}

// WithTarget is an option builder that sets the axis of a spot light pyramid.
//
// Parameters:
//   - target: the node-space end point of the spot axis
//
// Returns:
//   - LightBuilderOption: a function that applies the target option to a lightImpl
func WithTarget(target mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.target = target
		l.hasTarget = true
	}
}

// WithFalloffAngle is an option builder that sets the full opening angle of a spot light pyramid.
//
// Parameters:
//   - degrees: the full angle in degrees, 90 by default
//
// Returns:
//   - LightBuilderOption: a function that applies the falloff option to a lightImpl
func WithFalloffAngle(degrees float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.falloffAngle = degrees
	}
}

// WithSpotFrustum is an option builder that sets the spot pyramid explicitly instead of deriving
// it from the target and falloff angle.
//
// Parameters:
//   - right: half width vector of the far face
//   - up: half height vector of the far face
//   - end: the far face center
//
// Returns:
//   - LightBuilderOption: a function that applies the frustum option to a lightImpl
func WithSpotFrustum(right, up, end mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.spotRight = &right
		l.spotUp = &up
		l.spotEnd = &end
	}
}

// WithSpotStart is an option builder that cuts the spot pyramid at a near point along its axis.
//
// Parameters:
//   - start: the node-space near point
//
// Returns:
//   - LightBuilderOption: a function that applies the start option to a lightImpl
func WithSpotStart(start mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.spotStart = &start
	}
}

// WithSpotCone is an option builder that sets the inner and outer cone half-angles
// for spot lights. Angles are specified in degrees and converted to cosines internally,
// which is the format required by the GPU shader.
//
// Parameters:
//   - innerDeg: inner cone half-angle in degrees
//   - outerDeg: outer cone half-angle in degrees
//
// Returns:
//   - LightBuilderOption: a function that applies the spot cone option to a lightImpl
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.innerCone = cosDeg(innerDeg)
		l.outerCone = cosDeg(outerDeg)
	}
}

// WithCastsShadows is an option builder that sets whether the light is eligible for
// shadow map generation. Ignored for global lights.
//
// Parameters:
//   - castsShadows: true to enable shadow casting
//   - dynamic: true to also let dynamic geometry cast shadows
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow casting option to a lightImpl
func WithCastsShadows(castsShadows, dynamic bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows || dynamic
		l.dynamicShadows = dynamic
	}
}

// WithDisabled is an option builder that creates the light switched off.
//
// Parameters:
//   - disabled: true to switch the light off
//
// Returns:
//   - LightBuilderOption: a function that applies the disabled option to a lightImpl
func WithDisabled(disabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.disabled = disabled
	}
}

// WithDynamic is an option builder that marks the light as expected to move.
//
// Parameters:
//   - dynamic: true if the light moves
//
// Returns:
//   - LightBuilderOption: a function that applies the dynamic option to a lightImpl
func WithDynamic(dynamic bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.dynamic = dynamic
	}
}

// WithFog is an option builder that marks the light as a fog volume.
//
// Parameters:
//   - fog: true for a fog light
//
// Returns:
//   - LightBuilderOption: a function that applies the fog option to a lightImpl
func WithFog(fog bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.fog = fog
	}
}

// normalize3 normalizes a 3-component vector. Returns a zero vector if the input
// has zero length.
func normalize3(x, y, z float32) mgl32.Vec3 {
	length := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if length == 0 {
		return mgl32.Vec3{}
	}
	inv := 1.0 / length
	return mgl32.Vec3{x * inv, y * inv, z * inv}
}

// cosDeg converts an angle in degrees to the cosine of that angle in radians.
func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(deg) * math.Pi / 180.0))
}
