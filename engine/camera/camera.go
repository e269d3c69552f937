package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	worldMatrix          mgl32.Mat4
	viewMatrix           mgl32.Mat4
	projectionMatrix     mgl32.Mat4
	viewProjectionMatrix mgl32.Mat4

	controller CameraController
}

// Camera defines the interface for a perspective camera.
// The camera keeps its placement as a world matrix (camera space to world space, looking down -Z)
// and derives view, projection and view-projection matrices from it. Placement comes either from
// LookAt / SetWorldMatrix or from an attached CameraController on Update.
type Camera interface {
	// Up returns the up vector used by LookAt and controller updates.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// WorldMatrix returns the camera-to-world transform.
	//
	// Returns:
	//   - mgl32.Mat4: the world matrix
	WorldMatrix() mgl32.Mat4

	// Position returns the world-space camera position.
	//
	// Returns:
	//   - mgl32.Vec3: the camera position
	Position() mgl32.Vec3

	// Forward returns the normalized world-space view direction.
	//
	// Returns:
	//   - mgl32.Vec3: the view direction
	Forward() mgl32.Vec3

	// ViewMatrix returns the current view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix with WebGPU [0, 1] depth.
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns the current combined view-projection matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the combined view-projection matrix
	ViewProjectionMatrix() mgl32.Mat4

	// Frustum returns the world-space clipping planes of the camera.
	//
	// Returns:
	//   - common.Frustum: the six frustum planes, normals pointing inside
	Frustum() common.Frustum

	// FrustumPoints returns the world-space corners of the view volume: the four near corners
	// (top right, top left, bottom left, bottom right) followed by the four far corners in the same order.
	//
	// Parameters:
	//   - farClip: distance of the far corners, the camera far plane when not positive
	//
	// Returns:
	//   - [8]mgl32.Vec3: the corners
	FrustumPoints(farClip float32) [8]mgl32.Vec3

	// FrustumExtents returns the world-space box around FrustumPoints.
	//
	// Parameters:
	//   - farClip: distance of the far corners, the camera far plane when not positive
	//
	// Returns:
	//   - common.Extents: the box
	FrustumExtents(farClip float32) common.Extents

	// Controller returns the attached CameraController.
	// Returns nil if no controller is attached.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// Update reads position/target from controller and recomputes matrices.
	// Should be called once per frame (typically in the tick callback).
	// If no controller is attached, this method does nothing.
	Update()

	// LookAt places the camera at eye looking at target.
	//
	// Parameters:
	//   - eye: the camera position
	//   - target: the point to look at
	//   - up: the up vector, stored for later updates
	LookAt(eye, target, up mgl32.Vec3)

	// SetWorldMatrix places the camera with a camera-to-world transform.
	//
	// Parameters:
	//   - m: the world matrix, must be invertible
	SetWorldMatrix(m mgl32.Mat4)

	// SetFov sets the vertical field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at the origin looking down -Z with default perspective settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:          &sync.Mutex{},
		up:          mgl32.Vec3{0, 1, 0},
		fov:         45.0 * (math.Pi / 180.0), // radians
		aspect:      1.0,
		near:        0.1,
		far:         100.0,
		worldMatrix: mgl32.Ident4(),
		viewMatrix:  mgl32.Ident4(),
	}
	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.applyController()
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) WorldMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worldMatrix
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worldMatrix.Col(3).Vec3()
}

func (c *cameraImpl) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worldMatrix.Col(2).Vec3().Mul(-1).Normalize()
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ExtractFrustumFromMatrix(c.viewProjectionMatrix)
}

func (c *cameraImpl) FrustumPoints(farClip float32) [8]mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustumPoints(farClip)
}

func (c *cameraImpl) FrustumExtents(farClip float32) common.Extents {
	c.mu.Lock()
	points := c.frustumPoints(farClip)
	c.mu.Unlock()
	return common.ExtentsFromPoints(points[:])
}

func (c *cameraImpl) frustumPoints(farClip float32) [8]mgl32.Vec3 {
	if farClip <= 0 {
		farClip = c.far
	}

	halfH := math32.Tan(c.fov * 0.5)
	halfW := halfH * c.aspect

	w := c.worldMatrix
	right := w.Col(0).Vec3().Mul(halfW)
	up := w.Col(1).Vec3().Mul(halfH)
	at := w.Col(2).Vec3().Mul(-1)
	pos := w.Col(3).Vec3()

	dirs := [4]mgl32.Vec3{
		at.Add(right).Add(up),
		at.Sub(right).Add(up),
		at.Sub(right).Sub(up),
		at.Add(right).Sub(up),
	}

	var points [8]mgl32.Vec3
	for i, d := range dirs {
		points[i] = pos.Add(d.Mul(c.near))
		points[i+4] = pos.Add(d.Mul(farClip))
	}
	return points
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.applyController()
	c.updateMatrices()
}

func (c *cameraImpl) LookAt(eye, target, up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.lookAt(eye, target)
	c.updateMatrices()
}

func (c *cameraImpl) SetWorldMatrix(m mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.worldMatrix = m
	c.viewMatrix = m.Inv()
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

// lookAt sets the view and world matrices. Caller must hold the mutex.
func (c *cameraImpl) lookAt(eye, target mgl32.Vec3) {
	c.viewMatrix = mgl32.LookAtV(eye, target, c.up)
	c.worldMatrix = c.viewMatrix.Inv()
}

// applyController reads position and target from the controller. Caller must hold the mutex.
func (c *cameraImpl) applyController() {
	c.lookAt(c.controller.Position(), c.controller.Target())
}

// updateMatrices recalculates the projection and view-projection matrices from the current view.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
}
