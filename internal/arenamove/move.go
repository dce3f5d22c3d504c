// Package arenamove is a concrete pmove: the deterministic movement
// simulation spec.md places outside the replicated core (both
// network.Server and network.Client invoke a pmove function but the
// core never defines one). cmd/server and cmd/client need a real
// implementation to be runnable end to end, so this package supplies one,
// grounded on opd-ai-venture's pkg/engine/movement.go: velocity integrated
// against elapsed time, then bounds-clamped against a fixed arena
// rectangle. Speed is not clamped, so combined forward and right input
// moves faster than MoveSpeed.
package arenamove

import (
	"math"

	"github.com/opd-ai/skirmish/pkg/network"
)

// Tuning constants for the demo arena. These are gameplay values, not
// protocol values; a real game-rules layer would own them.
const (
	MoveSpeed    = 250.0 // units/s
	JumpVelocity = 260.0 // units/s, upward (negative Y)
	Gravity      = 600.0 // units/s^2, downward (positive Y)
	GroundY      = 0.0   // position at which a falling player lands
)

// Bounds is the rectangular arena a player's position is clamped to.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float32
}

// DefaultBounds returns a 2000x2000 arena centered on the origin.
func DefaultBounds() Bounds {
	return Bounds{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000}
}

// Move is a network.PMoveFunc: given a player's current state, one queued
// command, and the elapsed time the command covers, it returns the next
// state. It is a pure function of its arguments, as spec.md's design notes
// require, so client-side prediction and server-side authority agree bit
// for bit given identical inputs.
//
// collision must be a Bounds value (or nil, which falls back to
// DefaultBounds()); this package's PMoveFunc never speaks to a real map
// collision model, since asset/map loading is external to this module.
func Move(state network.PlayerState, cmd network.UserCommand, dtMillis uint32, collision network.CollisionMap) network.PlayerState {
	bounds, ok := collision.(Bounds)
	if !ok {
		bounds = DefaultBounds()
	}
	dt := float32(dtMillis) / 1000.0

	sinA, cosA := float32(math.Sin(float64(cmd.Angle))), float32(math.Cos(float64(cmd.Angle)))
	forwardX, forwardY := cosA, sinA
	rightX, rightY := -sinA, cosA

	state.VelX = (forwardX*cmd.MoveForward + rightX*cmd.MoveRight) * MoveSpeed
	wishY := (forwardY*cmd.MoveForward + rightY*cmd.MoveRight) * MoveSpeed

	if state.OnGround {
		state.VelY = wishY
		if cmd.Buttons&network.ButtonJump != 0 {
			state.VelY = -JumpVelocity
			state.OnGround = false
		}
	} else {
		state.VelY += Gravity * dt
	}

	state.X += state.VelX * dt
	state.Y += state.VelY * dt

	if state.Y >= GroundY && !state.OnGround && state.VelY >= 0 {
		state.Y = GroundY
		state.VelY = 0
		state.OnGround = true
	}

	if state.X < bounds.MinX {
		state.X, state.VelX = bounds.MinX, 0
	}
	if state.X > bounds.MaxX {
		state.X, state.VelX = bounds.MaxX, 0
	}
	if state.Y < bounds.MinY {
		state.Y, state.VelY = bounds.MinY, 0
	}
	if state.Y > bounds.MaxY {
		state.Y = bounds.MaxY
	}

	state.Angle = cmd.Angle
	state.Attacking = cmd.Buttons&network.ButtonAttack != 0
	state.Crouching = cmd.Buttons&network.ButtonUse != 0
	return state
}
