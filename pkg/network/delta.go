package network

// PlayerStateDelta is a field-level diff of a PlayerState against a
// baseline. Every field except PlayerID is a pointer: non-nil means
// "changed, apply this value"; nil means "inherit from baseline".
// PlayerID is never optional — it anchors which player the delta applies
// to.
type PlayerStateDelta struct {
	PlayerID    uint16
	X, Y        *float32
	VelX, VelY  *float32
	Angle       *float32
	Health      *int32
	Armor       *int32
	Weapon      *uint8
	Ammo        *[weaponSlots]uint16
	Frags       *int32
	Deaths      *int32
	QuadTicks   *uint16
	OnGround    *bool
	Crouching   *bool
	Attacking   *bool
	Dead        *bool
	CommandTime *uint32
}

// ProjectileStateDelta is a field-level diff of a ProjectileState against
// a baseline, same "present means changed" convention as
// PlayerStateDelta.
type ProjectileStateDelta struct {
	ID         uint32
	Trajectory *Trajectory
	WeaponType *uint8
	OwnerID    *uint16
	SpawnTime  *uint32
}

// ComparePlayers builds the minimal delta that turns old into new. The
// returned delta always carries PlayerID and is always worth transmitting
// (the player_id anchor makes an all-nil player delta meaningless to
// drop).
func ComparePlayers(old, new PlayerState) PlayerStateDelta {
	d := PlayerStateDelta{PlayerID: new.PlayerID}
	if old.X != new.X {
		x := new.X
		d.X = &x
	}
	if old.Y != new.Y {
		y := new.Y
		d.Y = &y
	}
	if old.VelX != new.VelX {
		vx := new.VelX
		d.VelX = &vx
	}
	if old.VelY != new.VelY {
		vy := new.VelY
		d.VelY = &vy
	}
	if old.Angle != new.Angle {
		a := new.Angle
		d.Angle = &a
	}
	if old.Health != new.Health {
		v := new.Health
		d.Health = &v
	}
	if old.Armor != new.Armor {
		v := new.Armor
		d.Armor = &v
	}
	if old.Weapon != new.Weapon {
		v := new.Weapon
		d.Weapon = &v
	}
	if old.Ammo != new.Ammo {
		v := new.Ammo
		d.Ammo = &v
	}
	if old.Frags != new.Frags {
		v := new.Frags
		d.Frags = &v
	}
	if old.Deaths != new.Deaths {
		v := new.Deaths
		d.Deaths = &v
	}
	if old.QuadTicks != new.QuadTicks {
		v := new.QuadTicks
		d.QuadTicks = &v
	}
	if old.OnGround != new.OnGround {
		v := new.OnGround
		d.OnGround = &v
	}
	if old.Crouching != new.Crouching {
		v := new.Crouching
		d.Crouching = &v
	}
	if old.Attacking != new.Attacking {
		v := new.Attacking
		d.Attacking = &v
	}
	if old.Dead != new.Dead {
		v := new.Dead
		d.Dead = &v
	}
	if old.CommandTime != new.CommandTime {
		v := new.CommandTime
		d.CommandTime = &v
	}
	return d
}

// ApplyPlayerDelta reconstructs a PlayerState from a baseline and a delta:
// every present field in d overrides base; every absent field inherits
// from base.
func ApplyPlayerDelta(base PlayerState, d PlayerStateDelta) PlayerState {
	out := base
	out.PlayerID = d.PlayerID
	if d.X != nil {
		out.X = *d.X
	}
	if d.Y != nil {
		out.Y = *d.Y
	}
	if d.VelX != nil {
		out.VelX = *d.VelX
	}
	if d.VelY != nil {
		out.VelY = *d.VelY
	}
	if d.Angle != nil {
		out.Angle = *d.Angle
	}
	if d.Health != nil {
		out.Health = *d.Health
	}
	if d.Armor != nil {
		out.Armor = *d.Armor
	}
	if d.Weapon != nil {
		out.Weapon = *d.Weapon
	}
	if d.Ammo != nil {
		out.Ammo = *d.Ammo
	}
	if d.Frags != nil {
		out.Frags = *d.Frags
	}
	if d.Deaths != nil {
		out.Deaths = *d.Deaths
	}
	if d.QuadTicks != nil {
		out.QuadTicks = *d.QuadTicks
	}
	if d.OnGround != nil {
		out.OnGround = *d.OnGround
	}
	if d.Crouching != nil {
		out.Crouching = *d.Crouching
	}
	if d.Attacking != nil {
		out.Attacking = *d.Attacking
	}
	if d.Dead != nil {
		out.Dead = *d.Dead
	}
	if d.CommandTime != nil {
		out.CommandTime = *d.CommandTime
	}
	return out
}

// CompareProjectiles builds the minimal delta that turns old into new.
func CompareProjectiles(old, new ProjectileState) ProjectileStateDelta {
	d := ProjectileStateDelta{ID: new.ID}
	if old.Trajectory != new.Trajectory {
		t := new.Trajectory
		d.Trajectory = &t
	}
	if old.WeaponType != new.WeaponType {
		v := new.WeaponType
		d.WeaponType = &v
	}
	if old.OwnerID != new.OwnerID {
		v := new.OwnerID
		d.OwnerID = &v
	}
	if old.SpawnTime != new.SpawnTime {
		v := new.SpawnTime
		d.SpawnTime = &v
	}
	return d
}

// ApplyProjectileDelta reconstructs a ProjectileState from a baseline and
// a delta.
func ApplyProjectileDelta(base ProjectileState, d ProjectileStateDelta) ProjectileState {
	out := base
	out.ID = d.ID
	if d.Trajectory != nil {
		out.Trajectory = *d.Trajectory
	}
	if d.WeaponType != nil {
		out.WeaponType = *d.WeaponType
	}
	if d.OwnerID != nil {
		out.OwnerID = *d.OwnerID
	}
	if d.SpawnTime != nil {
		out.SpawnTime = *d.SpawnTime
	}
	return out
}

// ChangedFieldCount reports how many fields beyond the ID/PlayerID anchor
// are present in the delta. Used to decide whether a projectile delta is
// worth transmitting (player deltas are always sent regardless of this
// count; the player_id anchor alone justifies the packet).
func (d ProjectileStateDelta) ChangedFieldCount() int {
	n := 0
	for _, present := range []bool{d.Trajectory != nil, d.WeaponType != nil, d.OwnerID != nil, d.SpawnTime != nil} {
		if present {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the projectile delta carries no field changes
// at all, in which case it is eligible to be dropped from the outgoing
// GameStateDelta.
func (d ProjectileStateDelta) IsEmpty() bool {
	return d.ChangedFieldCount() == 0
}

// BuildDelta diffs a new snapshot against a baseline, producing per-player
// and per-projectile deltas plus the new/removed projectile id sets. A
// player absent from base is diffed against the dummy baseline (a full
// update); a player absent from the new snapshot is simply omitted (player
// departure is handled by the session layer via Disconnect, not by delta
// semantics).
func BuildDelta(base, cur GameStateSnapshot) (players []PlayerStateDelta, projectiles []ProjectileStateDelta, newProj []ProjectileState, removedProj []uint32) {
	baseByPlayer := make(map[uint16]PlayerState, len(base.Players))
	for _, p := range base.Players {
		baseByPlayer[p.PlayerID] = p
	}
	for _, p := range cur.Players {
		old, ok := baseByPlayer[p.PlayerID]
		if !ok {
			old = dummyPlayerState
		}
		players = append(players, ComparePlayers(old, p))
	}

	baseByProj := make(map[uint32]ProjectileState, len(base.Projectiles))
	for _, p := range base.Projectiles {
		baseByProj[p.ID] = p
	}
	curByProj := make(map[uint32]ProjectileState, len(cur.Projectiles))
	for _, p := range cur.Projectiles {
		curByProj[p.ID] = p
	}

	for _, p := range cur.Projectiles {
		old, existed := baseByProj[p.ID]
		if !existed {
			newProj = append(newProj, p)
			continue
		}
		pd := CompareProjectiles(old, p)
		if !pd.IsEmpty() {
			projectiles = append(projectiles, pd)
		}
	}
	for id := range baseByProj {
		if _, stillThere := curByProj[id]; !stillThere {
			removedProj = append(removedProj, id)
		}
	}
	return players, projectiles, newProj, removedProj
}

// ReconstructSnapshot applies a delta (as returned by BuildDelta, or
// received over the wire in a GameStateDelta) to a retained baseline
// snapshot, producing the full current snapshot.
func ReconstructSnapshot(base GameStateSnapshot, tick uint32, playerDeltas []PlayerStateDelta, projectileDeltas []ProjectileStateDelta, newProj []ProjectileState, removedProj []uint32) GameStateSnapshot {
	baseByPlayer := make(map[uint16]PlayerState, len(base.Players))
	for _, p := range base.Players {
		baseByPlayer[p.PlayerID] = p
	}
	players := make([]PlayerState, 0, len(playerDeltas))
	for _, d := range playerDeltas {
		old, ok := baseByPlayer[d.PlayerID]
		if !ok {
			old = dummyPlayerState
		}
		players = append(players, ApplyPlayerDelta(old, d))
	}

	removed := make(map[uint32]bool, len(removedProj))
	for _, id := range removedProj {
		removed[id] = true
	}
	byProj := make(map[uint32]ProjectileState, len(base.Projectiles))
	for _, p := range base.Projectiles {
		if !removed[p.ID] {
			byProj[p.ID] = p
		}
	}
	for _, p := range newProj {
		byProj[p.ID] = p
	}
	for _, d := range projectileDeltas {
		old, ok := byProj[d.ID]
		if !ok {
			old = dummyProjectileState
		}
		byProj[d.ID] = ApplyProjectileDelta(old, d)
	}
	projectiles := make([]ProjectileState, 0, len(byProj))
	for _, p := range byProj {
		projectiles = append(projectiles, p)
	}

	return GameStateSnapshot{Tick: tick, Players: players, Projectiles: projectiles}
}
