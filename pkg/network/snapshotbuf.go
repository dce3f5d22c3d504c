package network

import "math"

// MaxSnapshots bounds the client-side history used for interpolation and
// short extrapolation of remote entities.
const MaxSnapshots = 16

// extrapolationThresholdS is how far past the latest snapshot the client
// will extrapolate remote motion before freezing in place.
const extrapolationThresholdS = 0.050

// minNudgeMS is the floor applied to the interpolation delay regardless
// of cl_autoNudge/cl_timeNudge configuration.
const minNudgeMS = 30

// timedSnapshot is one entry in the SnapshotBuffer history.
type timedSnapshot struct {
	tick      uint32
	timestamp float64
	players   map[uint16]PlayerState
	proj      []ProjectileState
}

// SnapshotBuffer is a bounded deque of the MaxSnapshots most recently
// received world states, used to interpolate and briefly extrapolate
// remote entities for smooth rendering. It has a single writer (the
// receive loop) and single reader (the render-time query), so no
// synchronization is needed beyond that ownership discipline.
type SnapshotBuffer struct {
	entries []timedSnapshot
}

// NewSnapshotBuffer returns an empty SnapshotBuffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{entries: make([]timedSnapshot, 0, MaxSnapshots)}
}

// Add pushes a new snapshot, evicting the oldest once the buffer is full.
func (b *SnapshotBuffer) Add(tick uint32, timestamp float64, players []PlayerState, proj []ProjectileState) {
	byID := make(map[uint16]PlayerState, len(players))
	for _, p := range players {
		byID[p.PlayerID] = p
	}
	entry := timedSnapshot{tick: tick, timestamp: timestamp, players: byID, proj: proj}
	if len(b.entries) == MaxSnapshots {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = entry
		return
	}
	b.entries = append(b.entries, entry)
}

// Len reports how many snapshots are currently retained.
func (b *SnapshotBuffer) Len() int { return len(b.entries) }

// Latest returns the most recently added snapshot's tick and timestamp,
// or (0, 0, false) if the buffer is empty.
func (b *SnapshotBuffer) Latest() (tick uint32, timestamp float64, ok bool) {
	if len(b.entries) == 0 {
		return 0, 0, false
	}
	last := b.entries[len(b.entries)-1]
	return last.tick, last.timestamp, true
}

func lerp(a, b, alpha float32) float32 { return a + (b-a)*alpha }

func smoothstep(alpha float32) float32 { return alpha * alpha * (3 - 2*alpha) }

// lerpAngle interpolates from a to b along the shortest arc, wrapping the
// difference to (-pi, pi].
func lerpAngle(a, b, alpha float32) float32 {
	diff := b - a
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff <= -math.Pi {
		diff += 2 * math.Pi
	}
	return a + diff*alpha
}

// findBracket locates the pair of entries bracketing renderTime: the
// first index i such that entries[i].timestamp <= renderTime <=
// entries[i+1].timestamp, paired with i+1. ok is false if renderTime falls
// outside the retained range or the buffer holds fewer than two entries.
func (b *SnapshotBuffer) findBracket(renderTime float64) (lo, hi int, ok bool) {
	if len(b.entries) < 2 {
		return 0, 0, false
	}
	for i := 0; i < len(b.entries)-1; i++ {
		if b.entries[i].timestamp <= renderTime && renderTime <= b.entries[i+1].timestamp {
			return i, i + 1, true
		}
	}
	return 0, 0, false
}

// InterpolatePlayer computes the render-time state of player id. See
// spec §4.6 for the exact three-way branch (single-snapshot
// extrapolation, near-latest extrapolation/freeze, or bracketed
// smoothstep interpolation).
func (b *SnapshotBuffer) InterpolatePlayer(id uint16, renderTime float64) (PlayerState, bool) {
	if len(b.entries) == 0 {
		return PlayerState{}, false
	}

	if len(b.entries) == 1 {
		p, ok := b.entries[0].players[id]
		if !ok {
			return PlayerState{}, false
		}
		dt := float32(renderTime - b.entries[0].timestamp)
		p.X += p.VelX * dt
		p.Y += p.VelY * dt
		return p, true
	}

	lastIdx := len(b.entries) - 1
	last := b.entries[lastIdx]
	if renderTime >= last.timestamp {
		p, ok := last.players[id]
		if !ok {
			return PlayerState{}, false
		}
		if renderTime-last.timestamp < extrapolationThresholdS {
			dt := float32(renderTime - last.timestamp)
			p.X += p.VelX * dt
			p.Y += p.VelY * dt
		}
		return p, true
	}

	lo, hi, ok := b.findBracket(renderTime)
	if !ok {
		p, has := last.players[id]
		return p, has
	}
	from, to := b.entries[lo], b.entries[hi]
	pf, hasFrom := from.players[id]
	pt, hasTo := to.players[id]
	if !hasFrom && !hasTo {
		return PlayerState{}, false
	}
	if !hasFrom {
		return pt, true
	}
	if !hasTo {
		return pf, true
	}

	span := to.timestamp - from.timestamp
	var alpha float32
	if span > 0 {
		alpha = float32((renderTime - from.timestamp) / span)
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	eased := smoothstep(alpha)

	out := pt // categorical fields take the "to" snapshot's value
	out.X = lerp(pf.X, pt.X, eased)
	out.Y = lerp(pf.Y, pt.Y, eased)
	out.VelX = lerp(pf.VelX, pt.VelX, eased)
	out.VelY = lerp(pf.VelY, pt.VelY, eased)
	out.Angle = lerpAngle(pf.Angle, pt.Angle, eased)
	return out, true
}

// InterpolateProjectile evaluates projectile id's closed-form trajectory
// (as recorded in the latest snapshot) at renderTime. No inter-snapshot
// blending is needed since Trajectory is already a continuous function of
// time.
func (b *SnapshotBuffer) InterpolateProjectile(id uint32, renderTime float64) (float32, float32, bool) {
	if len(b.entries) == 0 {
		return 0, 0, false
	}
	last := b.entries[len(b.entries)-1]
	for _, p := range last.proj {
		if p.ID == id {
			x, y := p.Trajectory.Evaluate(uint32(renderTime * 1000))
			return x, y, true
		}
	}
	return 0, 0, false
}

// ComputeNudgeMS derives the interpolation delay added to render time.
// autoNudge > 0 uses autoNudge*medianPingMS (floored at minNudgeMS);
// otherwise the manual timeNudgeMS override is used, floored the same way.
func ComputeNudgeMS(autoNudge float64, medianPingMS float64, timeNudgeMS int) int {
	if autoNudge > 0 {
		nudge := int(autoNudge * medianPingMS)
		if nudge < minNudgeMS {
			return minNudgeMS
		}
		return nudge
	}
	if timeNudgeMS < minNudgeMS {
		return minNudgeMS
	}
	return timeNudgeMS
}
