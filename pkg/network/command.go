package network

// CmdBackup is the size of the CommandBuffer ring.
const CmdBackup = 64

// UserCommand is one client input sample. The client owns Sequence; the
// server treats it as opaque ordering within that client.
type UserCommand struct {
	ServerTime  uint32
	Sequence    uint32
	MoveForward float32
	MoveRight   float32
	Buttons     uint32
	Angle       float32
}

// CommandBuffer is a bounded ring of the CmdBackup most recent
// UserCommands, indexed by sequence % CmdBackup. It has a single writer
// and single reader, matching spec's per-client/per-player ownership.
type CommandBuffer struct {
	commands [CmdBackup]UserCommand
	current  uint32
}

// NewCommandBuffer returns an empty CommandBuffer with sequence 0.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Add stamps cmd with the current sequence, stores it, and advances the
// sequence counter (wrapping). Returns the sequence assigned.
func (b *CommandBuffer) Add(cmd UserCommand) uint32 {
	seq := b.current
	cmd.Sequence = seq
	b.commands[seq%CmdBackup] = cmd
	b.current++
	return seq
}

// Get returns the command at seq and true, or the zero value and false if
// seq has aged out of the ring (current - seq >= CmdBackup, computed with
// wrapping subtraction so it behaves correctly across uint32 overflow).
func (b *CommandBuffer) Get(seq uint32) (UserCommand, bool) {
	age := b.current - seq
	if age >= CmdBackup {
		return UserCommand{}, false
	}
	return b.commands[seq%CmdBackup], true
}

// Since returns every retained command with sequence in [since, current),
// in order. Commands older than the ring's retention are simply absent
// from the result — callers that need every command since a given
// sequence must already know that sequence is still retained.
func (b *CommandBuffer) Since(since uint32) []UserCommand {
	cmds := make([]UserCommand, 0, b.current-since)
	for seq := since; seq != b.current; seq++ {
		if cmd, ok := b.Get(seq); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// CurrentSequence returns the sequence that will be assigned to the next
// Add call.
func (b *CommandBuffer) CurrentSequence() uint32 {
	return b.current
}

// Last returns the most recently added n commands (fewer if the buffer
// has not yet accumulated n), oldest first.
func (b *CommandBuffer) Last(n int) []UserCommand {
	if n <= 0 || b.current == 0 {
		return nil
	}
	count := n
	if uint32(count) > b.current {
		count = int(b.current)
	}
	if count > CmdBackup {
		count = CmdBackup
	}
	out := make([]UserCommand, 0, count)
	start := b.current - uint32(count)
	for seq := start; seq != b.current; seq++ {
		out = append(out, b.commands[seq%CmdBackup])
	}
	return out
}
