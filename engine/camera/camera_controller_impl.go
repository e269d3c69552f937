package camera

import (
	"math"
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	yaw      float32
	pitch    float32

	minPitch float32
	maxPitch float32

	moveSpeed float32
	turnSpeed float32
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new fly controller at the origin looking down -Z.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:        &sync.Mutex{},
		minPitch:  float32(-math.Pi/2 + 0.05),
		maxPitch:  float32(math.Pi/2 - 0.05),
		moveSpeed: 0.1,
		turnSpeed: 0.03,
	}

	for _, option := range options {
		option(cc)
	}

	cc.pitch = mgl32.Clamp(cc.pitch, cc.minPitch, cc.maxPitch)
	return cc
}

// --- internal helpers ---

// heading returns the unit view direction. Caller must hold the mutex.
func (cc *cameraControllerImpl) heading() mgl32.Vec3 {
	sy, cy := math32.Sincos(cc.yaw)
	sp, cp := math32.Sincos(cc.pitch)
	return mgl32.Vec3{cp * sy, sp, -cp * cy}
}

// flatAxes returns the horizontal forward and right axes. Caller must hold the mutex.
func (cc *cameraControllerImpl) flatAxes() (forward, right mgl32.Vec3) {
	sy, cy := math32.Sincos(cc.yaw)
	return mgl32.Vec3{sy, 0, -cy}, mgl32.Vec3{cy, 0, sy}
}

func (cc *cameraControllerImpl) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position.Add(cc.heading())
}

func (cc *cameraControllerImpl) SetPosition(p mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = p
}

func (cc *cameraControllerImpl) Yaw() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.yaw
}

func (cc *cameraControllerImpl) Pitch() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.pitch
}

func (cc *cameraControllerImpl) Turn(dYaw, dPitch float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.yaw += dYaw * cc.turnSpeed
	if cc.yaw > math32.Pi {
		cc.yaw -= 2 * math32.Pi
	} else if cc.yaw < -math32.Pi {
		cc.yaw += 2 * math32.Pi
	}
	cc.pitch = mgl32.Clamp(cc.pitch+dPitch*cc.turnSpeed, cc.minPitch, cc.maxPitch)
}

func (cc *cameraControllerImpl) MoveForward(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	forward, _ := cc.flatAxes()
	cc.position = cc.position.Add(forward.Mul(delta * cc.moveSpeed))
}

func (cc *cameraControllerImpl) MoveRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, right := cc.flatAxes()
	cc.position = cc.position.Add(right.Mul(delta * cc.moveSpeed))
}

func (cc *cameraControllerImpl) MoveUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position[1] += delta * cc.moveSpeed
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.moveSpeed
}

func (cc *cameraControllerImpl) TurnSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.turnSpeed
}
