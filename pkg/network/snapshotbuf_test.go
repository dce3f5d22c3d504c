package network

import "testing"

func TestSnapshotBuffer_AddAndLen(t *testing.T) {
	b := NewSnapshotBuffer()
	if b.Len() != 0 {
		t.Fatalf("Len() on empty buffer = %d, want 0", b.Len())
	}
	b.Add(1, 0.1, []PlayerState{{PlayerID: 1}}, nil)
	if b.Len() != 1 {
		t.Errorf("Len() after one Add = %d, want 1", b.Len())
	}
}

func TestSnapshotBuffer_EvictsOldestPastCapacity(t *testing.T) {
	b := NewSnapshotBuffer()
	for i := 0; i < MaxSnapshots+5; i++ {
		b.Add(uint32(i), float64(i), []PlayerState{{PlayerID: 1, X: float32(i)}}, nil)
	}
	if b.Len() != MaxSnapshots {
		t.Fatalf("Len() = %d, want %d", b.Len(), MaxSnapshots)
	}
	tick, ts, ok := b.Latest()
	if !ok || tick != uint32(MaxSnapshots+4) || ts != float64(MaxSnapshots+4) {
		t.Errorf("Latest() = (%d, %v, %v), want (%d, %v, true)", tick, ts, ok, MaxSnapshots+4, float64(MaxSnapshots+4))
	}
}

func TestSnapshotBuffer_InterpolateAtExactSampleTimes(t *testing.T) {
	b := NewSnapshotBuffer()
	p1 := PlayerState{PlayerID: 1, X: 0, Y: 0, VelX: 1, VelY: 0}
	p2 := PlayerState{PlayerID: 1, X: 10, Y: 0, VelX: 1, VelY: 0}
	b.Add(1, 1.0, []PlayerState{p1}, nil)
	b.Add(2, 2.0, []PlayerState{p2}, nil)

	got, ok := b.InterpolatePlayer(1, 1.0)
	if !ok {
		t.Fatal("InterpolatePlayer at t1 failed")
	}
	if got.X != p1.X || got.Y != p1.Y {
		t.Errorf("at t1: got (%v,%v), want (%v,%v)", got.X, got.Y, p1.X, p1.Y)
	}

	got, ok = b.InterpolatePlayer(1, 2.0)
	if !ok {
		t.Fatal("InterpolatePlayer at t2 failed")
	}
	if got.X != p2.X || got.Y != p2.Y {
		t.Errorf("at t2: got (%v,%v), want (%v,%v)", got.X, got.Y, p2.X, p2.Y)
	}
}

func TestSnapshotBuffer_InterpolateBetweenSamplesIsBounded(t *testing.T) {
	b := NewSnapshotBuffer()
	b.Add(1, 1.0, []PlayerState{{PlayerID: 1, X: 0, Y: 0}}, nil)
	b.Add(2, 2.0, []PlayerState{{PlayerID: 1, X: 100, Y: 0}}, nil)

	got, ok := b.InterpolatePlayer(1, 1.5)
	if !ok {
		t.Fatal("InterpolatePlayer at midpoint failed")
	}
	if got.X <= 0 || got.X >= 100 {
		t.Errorf("midpoint X = %v, want strictly between 0 and 100", got.X)
	}
}

func TestSnapshotBuffer_SingleSnapshotExtrapolates(t *testing.T) {
	b := NewSnapshotBuffer()
	b.Add(1, 1.0, []PlayerState{{PlayerID: 1, X: 0, Y: 0, VelX: 10, VelY: 0}}, nil)
	got, ok := b.InterpolatePlayer(1, 1.1)
	if !ok {
		t.Fatal("InterpolatePlayer with single snapshot failed")
	}
	want := float32(1.0)
	if diff := got.X - want; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("extrapolated X = %v, want %v", got.X, want)
	}
}

func TestSnapshotBuffer_FreezesPastExtrapolationThreshold(t *testing.T) {
	b := NewSnapshotBuffer()
	b.Add(1, 1.0, []PlayerState{{PlayerID: 1, X: 0, Y: 0}}, nil)
	b.Add(2, 2.0, []PlayerState{{PlayerID: 1, X: 5, Y: 0, VelX: 100, VelY: 0}}, nil)

	// Far past the latest snapshot (beyond the 50ms extrapolation window):
	// position should freeze at the latest snapshot's value.
	got, ok := b.InterpolatePlayer(1, 2.5)
	if !ok {
		t.Fatal("InterpolatePlayer past extrapolation window failed")
	}
	if got.X != 5 {
		t.Errorf("frozen X = %v, want 5 (latest snapshot position)", got.X)
	}
}

func TestSnapshotBuffer_UnknownPlayerNotFound(t *testing.T) {
	b := NewSnapshotBuffer()
	b.Add(1, 1.0, []PlayerState{{PlayerID: 1}}, nil)
	if _, ok := b.InterpolatePlayer(99, 1.0); ok {
		t.Error("InterpolatePlayer for unknown id should return false")
	}
}

func TestSnapshotBuffer_InterpolateProjectileUsesLatestTrajectory(t *testing.T) {
	b := NewSnapshotBuffer()
	proj := ProjectileState{ID: 5, Trajectory: NewLinearTrajectory(0, 0, 10, 0, 0)}
	b.Add(1, 1.0, nil, []ProjectileState{proj})
	x, _, ok := b.InterpolateProjectile(5, 0.5)
	if !ok {
		t.Fatal("InterpolateProjectile failed")
	}
	if x != 5 {
		t.Errorf("x = %v, want 5", x)
	}
}

func TestSnapshotBuffer_InterpolateProjectileUnknownID(t *testing.T) {
	b := NewSnapshotBuffer()
	b.Add(1, 1.0, nil, []ProjectileState{{ID: 1}})
	if _, _, ok := b.InterpolateProjectile(999, 1.0); ok {
		t.Error("InterpolateProjectile for unknown id should return false")
	}
}

// TestSnapshotBuffer_SteadyMotionInterpolatesSmoothly feeds 30Hz snapshots
// of a player moving at a constant arena-typical speed and queries at a
// ~16ms frame cadence with a 30ms render delay: consecutive queries must
// never jump more than 20 units, and the player must make real progress
// over the window.
func TestSnapshotBuffer_SteadyMotionInterpolatesSmoothly(t *testing.T) {
	b := NewSnapshotBuffer()
	const speed = float32(100) // units/s
	const snapInterval = 1.0 / 30.0

	feed := func(i int) {
		ts := float64(i) * snapInterval
		b.Add(uint32(i), ts, []PlayerState{{PlayerID: 1, X: speed * float32(ts), VelX: speed}}, nil)
	}
	snapFed := 0
	for ; snapFed < 4; snapFed++ {
		feed(snapFed)
	}

	var prevX float32
	havePrev := false
	var maxJump, totalDisplacement float32
	for frame := 0; frame < 120; frame++ {
		renderTime := float64(frame)*0.016 - 0.030
		if renderTime < 0 {
			continue
		}
		// Keep the feed ahead of the render time, as steady packet arrival
		// would.
		for float64(snapFed)*snapInterval < renderTime+2*snapInterval {
			feed(snapFed)
			snapFed++
		}
		got, ok := b.InterpolatePlayer(1, renderTime)
		if !ok {
			t.Fatalf("frame %d: interpolation failed", frame)
		}
		if havePrev {
			jump := got.X - prevX
			if jump < 0 {
				jump = -jump
			}
			if jump > maxJump {
				maxJump = jump
			}
			totalDisplacement += got.X - prevX
		}
		prevX = got.X
		havePrev = true
	}

	if maxJump >= 20 {
		t.Errorf("max inter-frame jump = %v, want < 20", maxJump)
	}
	if totalDisplacement <= 50 {
		t.Errorf("total displacement = %v, want > 50", totalDisplacement)
	}
}

func TestComputeNudgeMS(t *testing.T) {
	tests := []struct {
		name         string
		autoNudge    float64
		medianPingMS float64
		timeNudgeMS  int
		want         int
	}{
		{"auto nudge floored", 1.0, 5, 0, minNudgeMS},
		{"auto nudge scales with ping", 1.0, 100, 0, 100},
		{"manual override floored", 0, 0, 0, minNudgeMS},
		{"manual override above floor", 0, 0, 50, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeNudgeMS(tc.autoNudge, tc.medianPingMS, tc.timeNudgeMS)
			if got != tc.want {
				t.Errorf("ComputeNudgeMS(%v, %v, %v) = %d, want %d", tc.autoNudge, tc.medianPingMS, tc.timeNudgeMS, got, tc.want)
			}
		})
	}
}
