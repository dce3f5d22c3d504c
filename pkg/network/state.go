package network

// Button bits carried in UserCommand.Buttons / PlayerState flags derive
// from. Only attack, jump and use are named; game-rule-specific buttons
// are opaque to this package.
const (
	ButtonAttack uint32 = 1 << 0
	ButtonJump   uint32 = 1 << 1
	ButtonUse    uint32 = 1 << 2
)

const weaponSlots = 10

// PlayerState is the authoritative public description of one avatar at a
// tick. All fields are value-typed; PlayerState is compared and copied by
// value throughout this package.
type PlayerState struct {
	PlayerID    uint16
	X, Y        float32
	VelX, VelY  float32
	Angle       float32
	Health      int32
	Armor       int32
	Weapon      uint8
	Ammo        [weaponSlots]uint16
	Frags       int32
	Deaths      int32
	QuadTicks   uint16
	OnGround    bool
	Crouching   bool
	Attacking   bool
	Dead        bool
	CommandTime uint32
}

// dummyPlayerState is the reserved all-zero baseline used when a player is
// seen on the wire for the first time; diffing against it yields a delta
// with every non-default field present, i.e. a full update.
var dummyPlayerState = PlayerState{}

// ProjectileState describes a projectile independent of any player;
// identity is the server-issued ID.
type ProjectileState struct {
	ID         uint32
	Trajectory Trajectory
	WeaponType uint8
	OwnerID    uint16
	SpawnTime  uint32
}

var dummyProjectileState = ProjectileState{}

// PositionAt evaluates the projectile's trajectory at atMillis.
func (p ProjectileState) PositionAt(atMillis uint32) (float32, float32) {
	return p.Trajectory.Evaluate(atMillis)
}

// VelocityAt evaluates the projectile's trajectory velocity at atMillis.
func (p ProjectileState) VelocityAt(atMillis uint32) (float32, float32) {
	return p.Trajectory.EvaluateVelocity(atMillis)
}
