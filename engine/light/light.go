package light

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon. Directional lights are global
	// and never spatially culled.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Its influence is bounded by a box of HalfExtents around Center, in node space.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a pyramid from its node origin.
	// The pyramid is described by the Frustum basis: the end point of the axis and the
	// right and up half-vectors of the far face.
	LightTypeSpot

	// LightTypeAmbient represents a uniform light with no position or direction.
	// Ambient lights are global.
	LightTypeAmbient
)

// String returns the lowercase name used by scene documents.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	case LightTypeAmbient:
		return "ambient"
	}
	return "unknown"
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	name      string
	lightType LightType
	color     mgl32.Vec3
	intensity float32
	direction mgl32.Vec3
	origin    mgl32.Vec3

	// Bounding parameters as supplied. The derived fields below are resolved once all options ran.
	radius       float32
	halfExtents  mgl32.Vec3
	hasExtents   bool
	target       mgl32.Vec3
	hasTarget    bool
	falloffAngle float32
	spotRight    *mgl32.Vec3
	spotUp       *mgl32.Vec3
	spotEnd      *mgl32.Vec3
	spotStart    *mgl32.Vec3

	center      mgl32.Vec3
	frustum     mgl32.Mat3
	frustumNear float32
	global      bool

	innerCone      float32 // stored as cos(angle in radians)
	outerCone      float32 // stored as cos(angle in radians)
	castsShadows   bool
	dynamicShadows bool
	disabled       bool
	dynamic        bool
	fog            bool
}

// Light defines the interface for a light source registered with a scene.
//
// A Light is shared: scene nodes reference it through light instances, and each instance
// places the light's node-space bounds in the world using the node's world transform.
// Global lights (directional, ambient, or lights created without any bounds) affect
// everything and are never spatially culled.
type Light interface {
	// Name returns the registry name of the light.
	//
	// Returns:
	//   - string: the light name
	Name() string

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type
	Type() LightType

	// IsGlobal reports whether the light affects the whole scene regardless of position.
	//
	// Returns:
	//   - bool: true for directional, ambient and unbounded lights
	IsGlobal() bool

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - mgl32.Vec3: color as (r, g, b)
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Direction returns the node-space direction of a directional light.
	//
	// Returns:
	//   - mgl32.Vec3: normalized direction, zero if none was given
	Direction() mgl32.Vec3

	// Origin returns the node-space origin supplied at creation.
	//
	// Returns:
	//   - mgl32.Vec3: the origin
	Origin() mgl32.Vec3

	// Center returns the node-space center of the light bounds.
	//
	// Returns:
	//   - mgl32.Vec3: the bounds center
	Center() mgl32.Vec3

	// HalfExtents returns the node-space half extents of the light bounds.
	//
	// Returns:
	//   - mgl32.Vec3: the half extents
	HalfExtents() mgl32.Vec3

	// Radius returns the radius the light was created with, zero if bounded otherwise.
	//
	// Returns:
	//   - float32: the radius
	Radius() float32

	// Frustum returns the spot pyramid basis with columns right, up and end.
	// Meaningless for other light types.
	//
	// Returns:
	//   - mgl32.Mat3: the frustum basis
	Frustum() mgl32.Mat3

	// FrustumNear returns the fraction of the spot axis cut off at the near end.
	//
	// Returns:
	//   - float32: the near fraction in [0, 1)
	FrustumNear() float32

	// InnerCone returns the cosine of the inner cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(inner half-angle)
	InnerCone() float32

	// OuterCone returns the cosine of the outer cone half-angle for spot lights.
	//
	// Returns:
	//   - float32: cos(outer half-angle)
	OuterCone() float32

	// CastsShadows returns whether this light is eligible for shadow map generation.
	// Global lights never cast shadows.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// DynamicShadows returns whether dynamic geometry casts shadows from this light.
	//
	// Returns:
	//   - bool: true if dynamic shadows are enabled
	DynamicShadows() bool

	// Disabled returns whether the light is switched off.
	//
	// Returns:
	//   - bool: true if disabled
	Disabled() bool

	// Dynamic returns whether the light is expected to move.
	//
	// Returns:
	//   - bool: true if dynamic
	Dynamic() bool

	// Fog returns whether the light is used as a fog volume.
	//
	// Returns:
	//   - bool: true for fog lights
	Fog() bool

	// LocalExtents returns the node-space bounds of a non-global light.
	//
	// Returns:
	//   - common.Extents: the bounds
	//   - bool: false for global lights
	LocalExtents() (common.Extents, bool)

	// WorldExtents places the light bounds in the world with a node world transform.
	// Spot bounds always include the node origin.
	//
	// Parameters:
	//   - world: the node world transform
	//
	// Returns:
	//   - common.Extents: the world-space bounds
	WorldExtents(world mgl32.Mat4) common.Extents

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - color: the color as (r, g, b)
	SetColor(color mgl32.Vec3)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetDirection sets the direction of the light and normalizes it.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetSpotCone sets the inner and outer cone half-angles for spot lights.
	// Angles are specified in degrees and stored internally as cosines.
	//
	// Parameters:
	//   - innerDeg: inner cone half-angle in degrees
	//   - outerDeg: outer cone half-angle in degrees
	SetSpotCone(innerDeg, outerDeg float32)

	// SetDisabled switches the light off or on.
	//
	// Parameters:
	//   - disabled: true to switch the light off
	SetDisabled(disabled bool)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied. Bounds are derived after all options ran:
//   - spot lights build their pyramid from the target (default (0, 0, -radius)) and falloff angle
//   - other lights use the half extents, else the radius, else become global
//   - directional and ambient lights are always global
//
// Parameters:
//   - name: the registry name of the light
//   - lightType: the kind of light to create
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(name string, lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		name:         name,
		lightType:    lightType,
		color:        mgl32.Vec3{1, 1, 1},
		intensity:    1.0,
		falloffAngle: 90,
		innerCone:    0.9063, // cos(25°)
		outerCone:    0.8192, // cos(35°)
	}
	for _, opt := range opts {
		opt(l)
	}
	l.resolve()
	return l
}

func (l *lightImpl) resolve() {
	if l.lightType == LightTypeSpot || l.hasTarget {
		l.resolveSpot()
	} else if !l.hasExtents {
		switch {
		case l.radius > 0:
			l.halfExtents = mgl32.Vec3{l.radius, l.radius, l.radius}
		case l.lightType != LightTypeAmbient:
			l.halfExtents = mgl32.Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32}
		}
	}

	l.global = l.lightType == LightTypeDirectional || l.lightType == LightTypeAmbient ||
		(!l.hasExtents && l.radius <= 0 && !l.hasTarget)

	if l.global {
		l.castsShadows = false
		l.dynamicShadows = false
	}
}

func (l *lightImpl) resolveSpot() {
	target := l.target
	if !l.hasTarget {
		r := l.radius
		if r <= 0 {
			r = 1
		}
		target = mgl32.Vec3{0, 0, -r}
	}

	// falloffAngle is the full angle in degrees.
	tangent := math32.Abs(target[2]) * math32.Tan(mgl32.DegToRad(l.falloffAngle)*0.5)
	right := mgl32.Vec3{tangent, 0, 0}
	if l.spotRight != nil {
		right = *l.spotRight
	}
	up := mgl32.Vec3{0, tangent, 0}
	if l.spotUp != nil {
		up = *l.spotUp
	}
	end := target
	if l.spotEnd != nil {
		end = *l.spotEnd
	}
	l.frustum = mgl32.Mat3FromCols(right, up, end)

	if l.spotStart != nil {
		axis := target.Normalize()
		l.frustumNear = axis.Dot(*l.spotStart) / axis.Dot(end)
		l.center = end.Add(*l.spotStart).Mul(0.5)
	} else {
		l.frustumNear = 0
		l.center = end.Mul(0.5)
	}

	for i := range 3 {
		d := math32.Abs(right[i]) + math32.Abs(up[i])
		l.halfExtents[i] = max(math32.Abs(end[i]-d-l.center[i]), math32.Abs(end[i]+d-l.center[i]))
	}
}

func (l *lightImpl) Name() string {
	return l.name
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) IsGlobal() bool {
	return l.global
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Origin() mgl32.Vec3 {
	return l.origin
}

func (l *lightImpl) Center() mgl32.Vec3 {
	return l.center
}

func (l *lightImpl) HalfExtents() mgl32.Vec3 {
	return l.halfExtents
}

func (l *lightImpl) Radius() float32 {
	return l.radius
}

func (l *lightImpl) Frustum() mgl32.Mat3 {
	return l.frustum
}

func (l *lightImpl) FrustumNear() float32 {
	return l.frustumNear
}

func (l *lightImpl) InnerCone() float32 {
	return l.innerCone
}

func (l *lightImpl) OuterCone() float32 {
	return l.outerCone
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) DynamicShadows() bool {
	return l.dynamicShadows
}

func (l *lightImpl) Disabled() bool {
	return l.disabled
}

func (l *lightImpl) Dynamic() bool {
	return l.dynamic
}

func (l *lightImpl) Fog() bool {
	return l.fog
}

func (l *lightImpl) LocalExtents() (common.Extents, bool) {
	if l.global {
		return common.Extents{}, false
	}
	if l.lightType == LightTypeSpot || l.hasTarget {
		e := common.ExtentsFromCenter(l.center, l.halfExtents)
		return e.AddPoint(mgl32.Vec3{}), true
	}
	return common.ExtentsFromCenter(l.center, l.halfExtents), true
}

func (l *lightImpl) WorldExtents(world mgl32.Mat4) common.Extents {
	pos := world.Col(3).Vec3()
	rx, ry, rz := world.Col(0).Vec3(), world.Col(1).Vec3(), world.Col(2).Vec3()

	if l.lightType == LightTypeSpot || l.hasTarget {
		f := l.frustum
		right, up, end := f.Col(0), f.Col(1), f.Col(2)
		ct := pos.Add(rx.Mul(end[0])).Add(ry.Mul(end[1])).Add(rz.Mul(end[2]))
		wr := rx.Mul(right[0]).Add(ry.Mul(right[1])).Add(rz.Mul(right[2]))
		wu := rx.Mul(up[0]).Add(ry.Mul(up[1])).Add(rz.Mul(up[2]))
		var d mgl32.Vec3
		for i := range 3 {
			d[i] = math32.Abs(wr[i]) + math32.Abs(wu[i])
		}
		e := common.Extents{pos[0], pos[1], pos[2], pos[0], pos[1], pos[2]}
		e = e.AddPoint(ct.Sub(d))
		return e.AddPoint(ct.Add(d))
	}

	c := l.center
	ct := pos.Add(rx.Mul(c[0])).Add(ry.Mul(c[1])).Add(rz.Mul(c[2]))
	h := l.halfExtents
	var ht mgl32.Vec3
	for i := range 3 {
		ht[i] = math32.Abs(rx[i])*h[0] + math32.Abs(ry[i])*h[1] + math32.Abs(rz[i])*h[2]
	}
	return common.Extents{ct[0] - ht[0], ct[1] - ht[1], ct[2] - ht[2], ct[0] + ht[0], ct[1] + ht[1], ct[2] + ht[2]}
}

func (l *lightImpl) SetColor(color mgl32.Vec3) {
	l.color = color
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}

func (l *lightImpl) SetDirection(x, y, z float32) {
	l.direction = normalize3(x, y, z)
}

func (l *lightImpl) SetSpotCone(innerDeg, outerDeg float32) {
	l.innerCone = cosDeg(innerDeg)
	l.outerCone = cosDeg(outerDeg)
}

func (l *lightImpl) SetDisabled(disabled bool) {
	l.disabled = disabled
}
