package network

import "testing"

func TestCommandBuffer_AddStampsSequence(t *testing.T) {
	b := NewCommandBuffer()
	seq1 := b.Add(UserCommand{MoveForward: 1})
	seq2 := b.Add(UserCommand{MoveForward: 2})
	if seq1 != 0 || seq2 != 1 {
		t.Errorf("sequences = %d, %d, want 0, 1", seq1, seq2)
	}
}

func TestCommandBuffer_GetRoundTrip(t *testing.T) {
	b := NewCommandBuffer()
	seq := b.Add(UserCommand{MoveForward: 9.5})
	cmd, ok := b.Get(seq)
	if !ok {
		t.Fatal("Get returned false for a just-added command")
	}
	if cmd.MoveForward != 9.5 {
		t.Errorf("MoveForward = %v, want 9.5", cmd.MoveForward)
	}
}

func TestCommandBuffer_WraparoundEviction(t *testing.T) {
	b := NewCommandBuffer()
	for i := 0; i < CmdBackup*2; i++ {
		b.Add(UserCommand{})
	}
	current := b.CurrentSequence()
	for seq := uint32(0); seq < current; seq++ {
		_, ok := b.Get(seq)
		want := current-seq < CmdBackup
		if ok != want {
			t.Errorf("Get(%d) ok=%v, want %v (current=%d)", seq, ok, want, current)
		}
	}
}

func TestCommandBuffer_SinceReturnsOrderedRange(t *testing.T) {
	b := NewCommandBuffer()
	for i := 0; i < 5; i++ {
		b.Add(UserCommand{MoveForward: float32(i)})
	}
	cmds := b.Since(2)
	if len(cmds) != 3 {
		t.Fatalf("len(Since(2)) = %d, want 3", len(cmds))
	}
	for i, cmd := range cmds {
		want := float32(i + 2)
		if cmd.MoveForward != want {
			t.Errorf("cmds[%d].MoveForward = %v, want %v", i, cmd.MoveForward, want)
		}
	}
}

func TestCommandBuffer_LastClampsToAvailable(t *testing.T) {
	b := NewCommandBuffer()
	if got := b.Last(5); got != nil {
		t.Errorf("Last on empty buffer = %v, want nil", got)
	}
	b.Add(UserCommand{MoveForward: 1})
	b.Add(UserCommand{MoveForward: 2})
	got := b.Last(10)
	if len(got) != 2 {
		t.Fatalf("Last(10) with 2 commands = %d, want 2", len(got))
	}
	if got[0].MoveForward != 1 || got[1].MoveForward != 2 {
		t.Errorf("Last order = %+v, want oldest-first [1, 2]", got)
	}
}

func TestCommandBuffer_LastCapsAtBackupSize(t *testing.T) {
	b := NewCommandBuffer()
	for i := 0; i < CmdBackup+10; i++ {
		b.Add(UserCommand{})
	}
	got := b.Last(CmdBackup + 10)
	if len(got) != CmdBackup {
		t.Errorf("len(Last(overflow)) = %d, want %d", len(got), CmdBackup)
	}
}

func TestCommandBuffer_SequenceWrapsAfterUint32Overflow(t *testing.T) {
	b := &CommandBuffer{current: ^uint32(0)}
	seq := b.Add(UserCommand{MoveForward: 42})
	if seq != ^uint32(0) {
		t.Fatalf("seq = %d, want max uint32", seq)
	}
	if b.current != 0 {
		t.Fatalf("current after wraparound = %d, want 0", b.current)
	}
	cmd, ok := b.Get(seq)
	if !ok || cmd.MoveForward != 42 {
		t.Errorf("Get after wraparound = %+v, %v, want {42}, true", cmd, ok)
	}
}
