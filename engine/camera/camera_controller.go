package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController defines a first-person fly controller.
// Controllers own positional state (position, heading). Camera reads from the controller
// and computes view/projection matrices. The world is Y-up: yaw turns around +Y, zero yaw
// looks down -Z, and pitch tilts towards +Y.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns a point one unit ahead of the camera along its heading.
	//
	// Returns:
	//   - mgl32.Vec3: world-space look-at point
	Target() mgl32.Vec3

	// SetPosition moves the camera without changing its heading.
	//
	// Parameters:
	//   - p: world-space position
	SetPosition(p mgl32.Vec3)

	// Yaw returns the heading around the up axis in radians.
	//
	// Returns:
	//   - float32: yaw in radians
	Yaw() float32

	// Pitch returns the tilt above the horizontal plane in radians.
	//
	// Returns:
	//   - float32: pitch in radians
	Pitch() float32

	// Turn rotates the heading, scaled by TurnSpeed. Pitch is clamped to the configured bounds.
	//
	// Parameters:
	//   - dYaw: yaw steps, positive turns right
	//   - dPitch: pitch steps, positive looks up
	Turn(dYaw, dPitch float32)

	// MoveForward translates along the horizontal heading, scaled by MoveSpeed.
	//
	// Parameters:
	//   - delta: movement steps, negative moves backwards
	MoveForward(delta float32)

	// MoveRight strafes along the horizontal right axis, scaled by MoveSpeed.
	//
	// Parameters:
	//   - delta: movement steps, negative moves left
	MoveRight(delta float32)

	// MoveUp translates along the world up axis, scaled by MoveSpeed.
	//
	// Parameters:
	//   - delta: movement steps, negative moves down
	MoveUp(delta float32)

	// MoveSpeed returns the distance covered per movement step.
	//
	// Returns:
	//   - float32: units per step
	MoveSpeed() float32

	// TurnSpeed returns the angle covered per turn step.
	//
	// Returns:
	//   - float32: radians per step
	TurnSpeed() float32
}
