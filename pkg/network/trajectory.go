package network

// TrajectoryKind selects the closed-form motion model a Trajectory
// evaluates.
type TrajectoryKind uint8

const (
	// TrajectoryStationary never moves from BaseX/BaseY.
	TrajectoryStationary TrajectoryKind = iota
	// TrajectoryLinear moves at a constant velocity (DeltaX/DeltaY).
	TrajectoryLinear
	// TrajectoryGravity adds a constant downward acceleration to the
	// linear motion's Y component.
	TrajectoryGravity
	// TrajectoryInterpolate means "consult snapshot history, do not
	// extrapolate" — evaluate is never called for this kind.
	TrajectoryInterpolate
)

// gravity is the constant vertical acceleration applied by
// TrajectoryGravity, in units/s^2. Matches the original's 0.25*60.
const gravity = 15.0

// Trajectory is a compact closed-form descriptor of position/velocity
// over time: pos(t) = base + delta*dt [+ 1/2*g*dt^2 for Gravity, y only],
// dt = (t-T0)/1000 saturating at zero for t < T0.
type Trajectory struct {
	Kind   TrajectoryKind
	T0     uint32
	BaseX  float32
	BaseY  float32
	DeltaX float32
	DeltaY float32
}

// NewStationaryTrajectory builds a Trajectory that never moves.
func NewStationaryTrajectory(x, y float32, t0 uint32) Trajectory {
	return Trajectory{Kind: TrajectoryStationary, T0: t0, BaseX: x, BaseY: y}
}

// NewLinearTrajectory builds a constant-velocity Trajectory.
func NewLinearTrajectory(x, y, velX, velY float32, t0 uint32) Trajectory {
	return Trajectory{Kind: TrajectoryLinear, T0: t0, BaseX: x, BaseY: y, DeltaX: velX, DeltaY: velY}
}

// NewGravityTrajectory builds a Trajectory subject to constant downward
// acceleration on Y (positive Y points down).
func NewGravityTrajectory(x, y, velX, velY float32, t0 uint32) Trajectory {
	return Trajectory{Kind: TrajectoryGravity, T0: t0, BaseX: x, BaseY: y, DeltaX: velX, DeltaY: velY}
}

// deltaSeconds computes (atMillis-T0)/1000, saturating at zero instead of
// going negative when atMillis precedes T0.
func (tr Trajectory) deltaSeconds(atMillis uint32) float32 {
	if atMillis <= tr.T0 {
		return 0
	}
	return float32(atMillis-tr.T0) / 1000.0
}

// Evaluate returns (x, y) at atMillis. Total function: never errors, never
// panics, and is safe to call for any atMillis including one before T0.
func (tr Trajectory) Evaluate(atMillis uint32) (float32, float32) {
	dt := tr.deltaSeconds(atMillis)
	switch tr.Kind {
	case TrajectoryLinear:
		return tr.BaseX + tr.DeltaX*dt, tr.BaseY + tr.DeltaY*dt
	case TrajectoryGravity:
		return tr.BaseX + tr.DeltaX*dt, tr.BaseY + tr.DeltaY*dt + 0.5*gravity*dt*dt
	default: // Stationary, Interpolate
		return tr.BaseX, tr.BaseY
	}
}

// EvaluateVelocity returns (vx, vy) at atMillis.
func (tr Trajectory) EvaluateVelocity(atMillis uint32) (float32, float32) {
	dt := tr.deltaSeconds(atMillis)
	switch tr.Kind {
	case TrajectoryLinear:
		return tr.DeltaX, tr.DeltaY
	case TrajectoryGravity:
		return tr.DeltaX, tr.DeltaY + gravity*dt
	default:
		return 0, 0
	}
}

// Weapon types that select a projectile's trajectory kind. Matches the
// original's weapon_type -> TrajectoryType mapping: grenades arc under
// gravity, everything else flies straight.
const (
	WeaponMachinegun uint8 = 1
	WeaponShotgun    uint8 = 2
	WeaponGrenade    uint8 = 3
	WeaponRocket     uint8 = 4
	WeaponLightning  uint8 = 5
	WeaponRailgun    uint8 = 6
	WeaponPlasma     uint8 = 7
	WeaponBFG        uint8 = 8
)

// NewProjectileTrajectory picks a Trajectory kind from weaponType: grenades
// (WeaponGrenade) get TrajectoryGravity, every other weapon type gets
// TrajectoryLinear.
func NewProjectileTrajectory(x, y, velX, velY float32, weaponType uint8, t0 uint32) Trajectory {
	if weaponType == WeaponGrenade {
		return NewGravityTrajectory(x, y, velX, velY, t0)
	}
	return NewLinearTrajectory(x, y, velX, velY, t0)
}
