package network

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Codec implements compact binary encoding for every message type in this
// package: little-endian scalars, length-prefixed strings (uint16 length)
// and vectors (uint16 count), one leading MessageKind tag byte per
// message. Mirrors the teacher's BinaryProtocol, generalized from two
// message types to the full arena-shooter catalogue.
type Codec struct{}

// NewCodec returns a Codec. Codec carries no state; it exists as a type so
// the session layer can depend on an interface rather than a package-level
// function set, matching the teacher's Protocol interface pattern.
func NewCodec() *Codec { return &Codec{} }

func writeString(buf *bytes.Buffer, s string) {
	b := []byte(s)
	binary.Write(buf, binary.LittleEndian, uint16(len(b)))
	buf.Write(b)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return "", fmt.Errorf("read string bytes: %w", err)
		}
	}
	return string(b), nil
}

func writeFloat32(buf *bytes.Buffer, v float32) {
	binary.Write(buf, binary.LittleEndian, math.Float32bits(v))
}

func readFloat32(r *bytes.Reader) (float32, error) {
	var bits uint32
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func writePlayerState(buf *bytes.Buffer, p PlayerState) {
	binary.Write(buf, binary.LittleEndian, p.PlayerID)
	writeFloat32(buf, p.X)
	writeFloat32(buf, p.Y)
	writeFloat32(buf, p.VelX)
	writeFloat32(buf, p.VelY)
	writeFloat32(buf, p.Angle)
	binary.Write(buf, binary.LittleEndian, p.Health)
	binary.Write(buf, binary.LittleEndian, p.Armor)
	buf.WriteByte(p.Weapon)
	for _, ammo := range p.Ammo {
		binary.Write(buf, binary.LittleEndian, ammo)
	}
	binary.Write(buf, binary.LittleEndian, p.Frags)
	binary.Write(buf, binary.LittleEndian, p.Deaths)
	binary.Write(buf, binary.LittleEndian, p.QuadTicks)
	writeBool(buf, p.OnGround)
	writeBool(buf, p.Crouching)
	writeBool(buf, p.Attacking)
	writeBool(buf, p.Dead)
	binary.Write(buf, binary.LittleEndian, p.CommandTime)
}

func readPlayerState(r *bytes.Reader) (PlayerState, error) {
	var p PlayerState
	var err error
	if err = binary.Read(r, binary.LittleEndian, &p.PlayerID); err != nil {
		return p, err
	}
	if p.X, err = readFloat32(r); err != nil {
		return p, err
	}
	if p.Y, err = readFloat32(r); err != nil {
		return p, err
	}
	if p.VelX, err = readFloat32(r); err != nil {
		return p, err
	}
	if p.VelY, err = readFloat32(r); err != nil {
		return p, err
	}
	if p.Angle, err = readFloat32(r); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.Health); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.Armor); err != nil {
		return p, err
	}
	if p.Weapon, err = r.ReadByte(); err != nil {
		return p, err
	}
	for i := range p.Ammo {
		if err = binary.Read(r, binary.LittleEndian, &p.Ammo[i]); err != nil {
			return p, err
		}
	}
	if err = binary.Read(r, binary.LittleEndian, &p.Frags); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.Deaths); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.QuadTicks); err != nil {
		return p, err
	}
	if p.OnGround, err = readBool(r); err != nil {
		return p, err
	}
	if p.Crouching, err = readBool(r); err != nil {
		return p, err
	}
	if p.Attacking, err = readBool(r); err != nil {
		return p, err
	}
	if p.Dead, err = readBool(r); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.CommandTime); err != nil {
		return p, err
	}
	return p, nil
}

func writeTrajectory(buf *bytes.Buffer, t Trajectory) {
	buf.WriteByte(byte(t.Kind))
	binary.Write(buf, binary.LittleEndian, t.T0)
	writeFloat32(buf, t.BaseX)
	writeFloat32(buf, t.BaseY)
	writeFloat32(buf, t.DeltaX)
	writeFloat32(buf, t.DeltaY)
}

func readTrajectory(r *bytes.Reader) (Trajectory, error) {
	var t Trajectory
	kind, err := r.ReadByte()
	if err != nil {
		return t, err
	}
	t.Kind = TrajectoryKind(kind)
	if err = binary.Read(r, binary.LittleEndian, &t.T0); err != nil {
		return t, err
	}
	if t.BaseX, err = readFloat32(r); err != nil {
		return t, err
	}
	if t.BaseY, err = readFloat32(r); err != nil {
		return t, err
	}
	if t.DeltaX, err = readFloat32(r); err != nil {
		return t, err
	}
	if t.DeltaY, err = readFloat32(r); err != nil {
		return t, err
	}
	return t, nil
}

func writeProjectileState(buf *bytes.Buffer, p ProjectileState) {
	binary.Write(buf, binary.LittleEndian, p.ID)
	writeTrajectory(buf, p.Trajectory)
	buf.WriteByte(p.WeaponType)
	binary.Write(buf, binary.LittleEndian, p.OwnerID)
	binary.Write(buf, binary.LittleEndian, p.SpawnTime)
}

func readProjectileState(r *bytes.Reader) (ProjectileState, error) {
	var p ProjectileState
	var err error
	if err = binary.Read(r, binary.LittleEndian, &p.ID); err != nil {
		return p, err
	}
	if p.Trajectory, err = readTrajectory(r); err != nil {
		return p, err
	}
	if p.WeaponType, err = r.ReadByte(); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.OwnerID); err != nil {
		return p, err
	}
	if err = binary.Read(r, binary.LittleEndian, &p.SpawnTime); err != nil {
		return p, err
	}
	return p, nil
}

// Encode serializes msg to its tagged binary wire form. msg must be one of
// the message types declared in messages.go (passed by value, not
// pointer).
func (c *Codec) Encode(msg any) ([]byte, error) {
	scratch := acquireScratch()
	defer releaseScratch(scratch)
	buf := bytes.NewBuffer(*scratch)

	switch m := msg.(type) {
	case ConnectRequest:
		buf.WriteByte(byte(MsgConnectRequest))
		writeString(buf, m.Name)
		binary.Write(buf, binary.LittleEndian, m.ProtocolVersion)

	case ConnectResponse:
		buf.WriteByte(byte(MsgConnectResponse))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		writeBool(buf, m.Accepted)
		writeString(buf, m.Reason)

	case Disconnect:
		buf.WriteByte(byte(MsgDisconnect))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		writeString(buf, m.Reason)

	case Heartbeat:
		buf.WriteByte(byte(MsgHeartbeat))

	case PlayerInput:
		buf.WriteByte(byte(MsgPlayerInput))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		binary.Write(buf, binary.LittleEndian, m.InputSequence)
		writeFloat32(buf, m.MoveForward)
		writeFloat32(buf, m.MoveRight)
		writeFloat32(buf, m.Angle)
		binary.Write(buf, binary.LittleEndian, m.Buttons)
		binary.Write(buf, binary.LittleEndian, m.ServerTime)

	case PlayerInputBatch:
		buf.WriteByte(byte(MsgPlayerInputBatch))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		binary.Write(buf, binary.LittleEndian, uint16(len(m.Commands)))
		for _, cmd := range m.Commands {
			writeFloat32(buf, cmd.MoveForward)
			writeFloat32(buf, cmd.MoveRight)
			writeFloat32(buf, cmd.Angle)
			binary.Write(buf, binary.LittleEndian, cmd.Buttons)
			binary.Write(buf, binary.LittleEndian, cmd.ServerTime)
		}

	case PlayerShoot:
		buf.WriteByte(byte(MsgPlayerShoot))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		buf.WriteByte(m.Weapon)
		writeFloat32(buf, m.OriginX)
		writeFloat32(buf, m.OriginY)
		writeFloat32(buf, m.Direction)

	case PlayerDamaged:
		buf.WriteByte(byte(MsgPlayerDamaged))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		binary.Write(buf, binary.LittleEndian, m.AttackerID)
		binary.Write(buf, binary.LittleEndian, m.Amount)
		writeFloat32(buf, m.X)
		writeFloat32(buf, m.Y)

	case PlayerDied:
		buf.WriteByte(byte(MsgPlayerDied))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		binary.Write(buf, binary.LittleEndian, m.KillerID)
		writeFloat32(buf, m.X)
		writeFloat32(buf, m.Y)

	case PlayerGibbed:
		buf.WriteByte(byte(MsgPlayerGibbed))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		writeFloat32(buf, m.X)
		writeFloat32(buf, m.Y)
		writeFloat32(buf, m.VelX)
		writeFloat32(buf, m.VelY)

	case PlayerRespawn:
		buf.WriteByte(byte(MsgPlayerRespawn))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		writeFloat32(buf, m.X)
		writeFloat32(buf, m.Y)

	case Chat:
		buf.WriteByte(byte(MsgChat))
		binary.Write(buf, binary.LittleEndian, m.PlayerID)
		writeString(buf, m.Message)

	case ServerInfo:
		buf.WriteByte(byte(MsgServerInfo))
		writeString(buf, m.MapName)
		buf.WriteByte(m.GameType)
		buf.WriteByte(m.MaxPlayers)
		buf.WriteByte(m.CurrentPlayers)

	case MapChange:
		buf.WriteByte(byte(MsgMapChange))
		writeString(buf, m.MapName)

	case GameStateSnapshot:
		buf.WriteByte(byte(MsgGameStateSnapshot))
		binary.Write(buf, binary.LittleEndian, m.Tick)
		binary.Write(buf, binary.LittleEndian, uint16(len(m.Players)))
		for _, p := range m.Players {
			writePlayerState(buf, p)
		}
		binary.Write(buf, binary.LittleEndian, uint16(len(m.Projectiles)))
		for _, p := range m.Projectiles {
			writeProjectileState(buf, p)
		}

	case GameStateDelta:
		buf.WriteByte(byte(MsgGameStateDelta))
		if err := encodeGameStateDelta(buf, m); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("network: no encoder registered for %T", msg)
	}

	// The scratch buffer goes back to the pool on return; the body the
	// caller keeps must not alias it.
	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())
	return body, nil
}

func encodeGameStateDelta(buf *bytes.Buffer, m GameStateDelta) error {
	binary.Write(buf, binary.LittleEndian, m.Tick)
	binary.Write(buf, binary.LittleEndian, m.BaseMessageNum)

	binary.Write(buf, binary.LittleEndian, uint16(len(m.PlayerDeltas)))
	for _, d := range m.PlayerDeltas {
		writePlayerDelta(buf, d)
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(m.ProjectileDeltas)))
	for _, d := range m.ProjectileDeltas {
		writeProjectileDelta(buf, d)
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(m.NewProjectiles)))
	for _, p := range m.NewProjectiles {
		writeProjectileState(buf, p)
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(m.RemovedProjectiles)))
	for _, id := range m.RemovedProjectiles {
		binary.Write(buf, binary.LittleEndian, id)
	}
	return nil
}

// optional-field presence bits, one per field, LSB first. Keeping field
// presence as a bitmask rather than a byte per field keeps the delta
// genuinely compact — it is the whole point of the format.
const playerDeltaFieldCount = 17
const projectileDeltaFieldCount = 4

func writePlayerDelta(buf *bytes.Buffer, d PlayerStateDelta) {
	binary.Write(buf, binary.LittleEndian, d.PlayerID)
	mask := playerDeltaMask(d)
	binary.Write(buf, binary.LittleEndian, mask)

	if d.X != nil {
		writeFloat32(buf, *d.X)
	}
	if d.Y != nil {
		writeFloat32(buf, *d.Y)
	}
	if d.VelX != nil {
		writeFloat32(buf, *d.VelX)
	}
	if d.VelY != nil {
		writeFloat32(buf, *d.VelY)
	}
	if d.Angle != nil {
		writeFloat32(buf, *d.Angle)
	}
	if d.Health != nil {
		binary.Write(buf, binary.LittleEndian, *d.Health)
	}
	if d.Armor != nil {
		binary.Write(buf, binary.LittleEndian, *d.Armor)
	}
	if d.Weapon != nil {
		buf.WriteByte(*d.Weapon)
	}
	if d.Ammo != nil {
		for _, a := range *d.Ammo {
			binary.Write(buf, binary.LittleEndian, a)
		}
	}
	if d.Frags != nil {
		binary.Write(buf, binary.LittleEndian, *d.Frags)
	}
	if d.Deaths != nil {
		binary.Write(buf, binary.LittleEndian, *d.Deaths)
	}
	if d.QuadTicks != nil {
		binary.Write(buf, binary.LittleEndian, *d.QuadTicks)
	}
	if d.OnGround != nil {
		writeBool(buf, *d.OnGround)
	}
	if d.Crouching != nil {
		writeBool(buf, *d.Crouching)
	}
	if d.Attacking != nil {
		writeBool(buf, *d.Attacking)
	}
	if d.Dead != nil {
		writeBool(buf, *d.Dead)
	}
	if d.CommandTime != nil {
		binary.Write(buf, binary.LittleEndian, *d.CommandTime)
	}
}

// playerDeltaMask/projectileDeltaMask bit layout (LSB first):
// player:     X Y VelX VelY Angle Health Armor Weapon Ammo Frags Deaths QuadTicks OnGround Crouching Attacking Dead CommandTime
// projectile: Trajectory WeaponType OwnerID SpawnTime
const (
	bitX uint32 = 1 << iota
	bitY
	bitVelX
	bitVelY
	bitAngle
	bitHealth
	bitArmor
	bitWeapon
	bitAmmo
	bitFrags
	bitDeaths
	bitQuadTicks
	bitOnGround
	bitCrouching
	bitAttacking
	bitDead
	bitCommandTime
)

func playerDeltaMask(d PlayerStateDelta) uint32 {
	var m uint32
	if d.X != nil {
		m |= bitX
	}
	if d.Y != nil {
		m |= bitY
	}
	if d.VelX != nil {
		m |= bitVelX
	}
	if d.VelY != nil {
		m |= bitVelY
	}
	if d.Angle != nil {
		m |= bitAngle
	}
	if d.Health != nil {
		m |= bitHealth
	}
	if d.Armor != nil {
		m |= bitArmor
	}
	if d.Weapon != nil {
		m |= bitWeapon
	}
	if d.Ammo != nil {
		m |= bitAmmo
	}
	if d.Frags != nil {
		m |= bitFrags
	}
	if d.Deaths != nil {
		m |= bitDeaths
	}
	if d.QuadTicks != nil {
		m |= bitQuadTicks
	}
	if d.OnGround != nil {
		m |= bitOnGround
	}
	if d.Crouching != nil {
		m |= bitCrouching
	}
	if d.Attacking != nil {
		m |= bitAttacking
	}
	if d.Dead != nil {
		m |= bitDead
	}
	if d.CommandTime != nil {
		m |= bitCommandTime
	}
	return m
}

func readPlayerDelta(r *bytes.Reader) (PlayerStateDelta, error) {
	var d PlayerStateDelta
	if err := binary.Read(r, binary.LittleEndian, &d.PlayerID); err != nil {
		return d, err
	}
	var m uint32
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return d, err
	}

	readF := func() (float32, error) { return readFloat32(r) }
	if m&bitX != 0 {
		v, err := readF()
		if err != nil {
			return d, err
		}
		d.X = &v
	}
	if m&bitY != 0 {
		v, err := readF()
		if err != nil {
			return d, err
		}
		d.Y = &v
	}
	if m&bitVelX != 0 {
		v, err := readF()
		if err != nil {
			return d, err
		}
		d.VelX = &v
	}
	if m&bitVelY != 0 {
		v, err := readF()
		if err != nil {
			return d, err
		}
		d.VelY = &v
	}
	if m&bitAngle != 0 {
		v, err := readF()
		if err != nil {
			return d, err
		}
		d.Angle = &v
	}
	if m&bitHealth != 0 {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.Health = &v
	}
	if m&bitArmor != 0 {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.Armor = &v
	}
	if m&bitWeapon != 0 {
		v, err := r.ReadByte()
		if err != nil {
			return d, err
		}
		d.Weapon = &v
	}
	if m&bitAmmo != 0 {
		var v [weaponSlots]uint16
		for i := range v {
			if err := binary.Read(r, binary.LittleEndian, &v[i]); err != nil {
				return d, err
			}
		}
		d.Ammo = &v
	}
	if m&bitFrags != 0 {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.Frags = &v
	}
	if m&bitDeaths != 0 {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.Deaths = &v
	}
	if m&bitQuadTicks != 0 {
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.QuadTicks = &v
	}
	if m&bitOnGround != 0 {
		v, err := readBool(r)
		if err != nil {
			return d, err
		}
		d.OnGround = &v
	}
	if m&bitCrouching != 0 {
		v, err := readBool(r)
		if err != nil {
			return d, err
		}
		d.Crouching = &v
	}
	if m&bitAttacking != 0 {
		v, err := readBool(r)
		if err != nil {
			return d, err
		}
		d.Attacking = &v
	}
	if m&bitDead != 0 {
		v, err := readBool(r)
		if err != nil {
			return d, err
		}
		d.Dead = &v
	}
	if m&bitCommandTime != 0 {
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.CommandTime = &v
	}
	return d, nil
}

const (
	bitTrajectory uint32 = 1 << iota
	bitWeaponType
	bitOwnerID
	bitSpawnTime
)

func writeProjectileDelta(buf *bytes.Buffer, d ProjectileStateDelta) {
	binary.Write(buf, binary.LittleEndian, d.ID)
	var mask uint8
	if d.Trajectory != nil {
		mask |= uint8(bitTrajectory)
	}
	if d.WeaponType != nil {
		mask |= uint8(bitWeaponType)
	}
	if d.OwnerID != nil {
		mask |= uint8(bitOwnerID)
	}
	if d.SpawnTime != nil {
		mask |= uint8(bitSpawnTime)
	}
	buf.WriteByte(mask)
	if d.Trajectory != nil {
		writeTrajectory(buf, *d.Trajectory)
	}
	if d.WeaponType != nil {
		buf.WriteByte(*d.WeaponType)
	}
	if d.OwnerID != nil {
		binary.Write(buf, binary.LittleEndian, *d.OwnerID)
	}
	if d.SpawnTime != nil {
		binary.Write(buf, binary.LittleEndian, *d.SpawnTime)
	}
}

func readProjectileDelta(r *bytes.Reader) (ProjectileStateDelta, error) {
	var d ProjectileStateDelta
	if err := binary.Read(r, binary.LittleEndian, &d.ID); err != nil {
		return d, err
	}
	mask, err := r.ReadByte()
	if err != nil {
		return d, err
	}
	if uint32(mask)&bitTrajectory != 0 {
		t, err := readTrajectory(r)
		if err != nil {
			return d, err
		}
		d.Trajectory = &t
	}
	if uint32(mask)&bitWeaponType != 0 {
		v, err := r.ReadByte()
		if err != nil {
			return d, err
		}
		d.WeaponType = &v
	}
	if uint32(mask)&bitOwnerID != 0 {
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.OwnerID = &v
	}
	if uint32(mask)&bitSpawnTime != 0 {
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return d, err
		}
		d.SpawnTime = &v
	}
	return d, nil
}

// Decode parses a tagged message body produced by Encode. The returned
// value's dynamic type is one of the message structs in messages.go.
func (c *Codec) Decode(data []byte) (any, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("network: empty message")
	}
	kind := MessageKind(data[0])
	r := bytes.NewReader(data[1:])

	switch kind {
	case MsgConnectRequest:
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode ConnectRequest: %w", err)
		}
		var version uint32
		if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
			return nil, fmt.Errorf("decode ConnectRequest version: %w", err)
		}
		return ConnectRequest{Name: name, ProtocolVersion: version}, nil

	case MsgConnectResponse:
		var playerID uint16
		if err := binary.Read(r, binary.LittleEndian, &playerID); err != nil {
			return nil, fmt.Errorf("decode ConnectResponse: %w", err)
		}
		accepted, err := readBool(r)
		if err != nil {
			return nil, fmt.Errorf("decode ConnectResponse accepted: %w", err)
		}
		reason, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode ConnectResponse reason: %w", err)
		}
		return ConnectResponse{PlayerID: playerID, Accepted: accepted, Reason: reason}, nil

	case MsgDisconnect:
		var playerID uint16
		if err := binary.Read(r, binary.LittleEndian, &playerID); err != nil {
			return nil, fmt.Errorf("decode Disconnect: %w", err)
		}
		reason, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode Disconnect reason: %w", err)
		}
		return Disconnect{PlayerID: playerID, Reason: reason}, nil

	case MsgHeartbeat:
		return Heartbeat{}, nil

	case MsgPlayerInput:
		var m PlayerInput
		var err error
		if err = binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &m.InputSequence); err != nil {
			return nil, err
		}
		if m.MoveForward, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.MoveRight, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.Angle, err = readFloat32(r); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &m.Buttons); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &m.ServerTime); err != nil {
			return nil, err
		}
		return m, nil

	case MsgPlayerInputBatch:
		var m PlayerInputBatch
		if err := binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		var count uint16
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, err
		}
		m.Commands = make([]PlayerInputCmd, count)
		for i := range m.Commands {
			cmd := &m.Commands[i]
			var err error
			if cmd.MoveForward, err = readFloat32(r); err != nil {
				return nil, err
			}
			if cmd.MoveRight, err = readFloat32(r); err != nil {
				return nil, err
			}
			if cmd.Angle, err = readFloat32(r); err != nil {
				return nil, err
			}
			if err = binary.Read(r, binary.LittleEndian, &cmd.Buttons); err != nil {
				return nil, err
			}
			if err = binary.Read(r, binary.LittleEndian, &cmd.ServerTime); err != nil {
				return nil, err
			}
		}
		return m, nil

	case MsgPlayerShoot:
		var m PlayerShoot
		var err error
		if err = binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		if m.Weapon, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if m.OriginX, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.OriginY, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.Direction, err = readFloat32(r); err != nil {
			return nil, err
		}
		return m, nil

	case MsgPlayerDamaged:
		var m PlayerDamaged
		var err error
		if err = binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &m.AttackerID); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &m.Amount); err != nil {
			return nil, err
		}
		if m.X, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.Y, err = readFloat32(r); err != nil {
			return nil, err
		}
		return m, nil

	case MsgPlayerDied:
		var m PlayerDied
		var err error
		if err = binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &m.KillerID); err != nil {
			return nil, err
		}
		if m.X, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.Y, err = readFloat32(r); err != nil {
			return nil, err
		}
		return m, nil

	case MsgPlayerGibbed:
		var m PlayerGibbed
		var err error
		if err = binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		if m.X, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.Y, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.VelX, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.VelY, err = readFloat32(r); err != nil {
			return nil, err
		}
		return m, nil

	case MsgPlayerRespawn:
		var m PlayerRespawn
		var err error
		if err = binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		if m.X, err = readFloat32(r); err != nil {
			return nil, err
		}
		if m.Y, err = readFloat32(r); err != nil {
			return nil, err
		}
		return m, nil

	case MsgChat:
		var m Chat
		if err := binary.Read(r, binary.LittleEndian, &m.PlayerID); err != nil {
			return nil, err
		}
		msg, err := readString(r)
		if err != nil {
			return nil, err
		}
		m.Message = msg
		return m, nil

	case MsgServerInfo:
		var m ServerInfo
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		m.MapName = name
		if m.GameType, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if m.MaxPlayers, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if m.CurrentPlayers, err = r.ReadByte(); err != nil {
			return nil, err
		}
		return m, nil

	case MsgMapChange:
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		return MapChange{MapName: name}, nil

	case MsgGameStateSnapshot:
		var m GameStateSnapshot
		if err := binary.Read(r, binary.LittleEndian, &m.Tick); err != nil {
			return nil, err
		}
		var playerCount uint16
		if err := binary.Read(r, binary.LittleEndian, &playerCount); err != nil {
			return nil, err
		}
		m.Players = make([]PlayerState, playerCount)
		for i := range m.Players {
			p, err := readPlayerState(r)
			if err != nil {
				return nil, fmt.Errorf("decode snapshot player %d: %w", i, err)
			}
			m.Players[i] = p
		}
		var projCount uint16
		if err := binary.Read(r, binary.LittleEndian, &projCount); err != nil {
			return nil, err
		}
		m.Projectiles = make([]ProjectileState, projCount)
		for i := range m.Projectiles {
			p, err := readProjectileState(r)
			if err != nil {
				return nil, fmt.Errorf("decode snapshot projectile %d: %w", i, err)
			}
			m.Projectiles[i] = p
		}
		return m, nil

	case MsgGameStateDelta:
		return decodeGameStateDelta(r)

	default:
		return nil, fmt.Errorf("network: unknown message kind %d", kind)
	}
}

func decodeGameStateDelta(r *bytes.Reader) (GameStateDelta, error) {
	var m GameStateDelta
	if err := binary.Read(r, binary.LittleEndian, &m.Tick); err != nil {
		return m, err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.BaseMessageNum); err != nil {
		return m, err
	}

	var playerCount uint16
	if err := binary.Read(r, binary.LittleEndian, &playerCount); err != nil {
		return m, err
	}
	m.PlayerDeltas = make([]PlayerStateDelta, playerCount)
	for i := range m.PlayerDeltas {
		d, err := readPlayerDelta(r)
		if err != nil {
			return m, fmt.Errorf("decode player delta %d: %w", i, err)
		}
		m.PlayerDeltas[i] = d
	}

	var projDeltaCount uint16
	if err := binary.Read(r, binary.LittleEndian, &projDeltaCount); err != nil {
		return m, err
	}
	m.ProjectileDeltas = make([]ProjectileStateDelta, projDeltaCount)
	for i := range m.ProjectileDeltas {
		d, err := readProjectileDelta(r)
		if err != nil {
			return m, fmt.Errorf("decode projectile delta %d: %w", i, err)
		}
		m.ProjectileDeltas[i] = d
	}

	var newCount uint16
	if err := binary.Read(r, binary.LittleEndian, &newCount); err != nil {
		return m, err
	}
	m.NewProjectiles = make([]ProjectileState, newCount)
	for i := range m.NewProjectiles {
		p, err := readProjectileState(r)
		if err != nil {
			return m, fmt.Errorf("decode new projectile %d: %w", i, err)
		}
		m.NewProjectiles[i] = p
	}

	var removedCount uint16
	if err := binary.Read(r, binary.LittleEndian, &removedCount); err != nil {
		return m, err
	}
	m.RemovedProjectiles = make([]uint32, removedCount)
	for i := range m.RemovedProjectiles {
		if err := binary.Read(r, binary.LittleEndian, &m.RemovedProjectiles[i]); err != nil {
			return m, err
		}
	}
	return m, nil
}
