package network

import (
	"bytes"
	"testing"
)

func TestScratchPool_AcquireReturnsEmptyBuffer(t *testing.T) {
	b := acquireScratch()
	if b == nil {
		t.Fatal("acquireScratch returned nil")
	}
	if len(*b) != 0 {
		t.Errorf("len = %d, want 0", len(*b))
	}
	if cap(*b) < encodeScratchSize {
		t.Errorf("cap = %d, want at least %d", cap(*b), encodeScratchSize)
	}
	releaseScratch(b)
}

func TestScratchPool_ReleaseResetsLength(t *testing.T) {
	b := acquireScratch()
	*b = append(*b, 1, 2, 3)
	releaseScratch(b)

	again := acquireScratch()
	if len(*again) != 0 {
		t.Errorf("reused buffer len = %d, want 0", len(*again))
	}
	releaseScratch(again)
}

func TestScratchPool_ReleaseNilIsNoop(t *testing.T) {
	releaseScratch(nil)
}

// TestEncode_ResultSurvivesLaterEncodes guards the copy-out contract: the
// body Encode returns must stay intact even after the scratch buffer has
// been recycled into a subsequent Encode call.
func TestEncode_ResultSurvivesLaterEncodes(t *testing.T) {
	c := NewCodec()
	first, err := c.Encode(Chat{PlayerID: 1, Message: "first"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	saved := make([]byte, len(first))
	copy(saved, first)

	for i := 0; i < 8; i++ {
		if _, err := c.Encode(Chat{PlayerID: 2, Message: "overwrite attempt"}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if !bytes.Equal(first, saved) {
		t.Error("earlier Encode result was clobbered by a later Encode")
	}
}

func BenchmarkEncodeSnapshotBody(b *testing.B) {
	b.ReportAllocs()
	c := NewCodec()
	snap := GameStateSnapshot{
		Tick:    99,
		Players: make([]PlayerState, 16),
	}
	for i := range snap.Players {
		snap.Players[i] = PlayerState{PlayerID: uint16(i + 1), X: float32(i), Health: 100}
	}
	for i := 0; i < b.N; i++ {
		if _, err := c.Encode(snap); err != nil {
			b.Fatal(err)
		}
	}
}
