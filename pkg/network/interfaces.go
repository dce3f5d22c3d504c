package network

// CollisionMap is an opaque pre-loaded map collision model. This package
// never constructs or inspects one; it only threads the caller's value
// through to PMoveFunc. Asset loading and map representation are external
// collaborators per spec.
type CollisionMap any

// PMoveFunc is the deterministic movement simulation both client
// (prediction) and server (authoritative) run with identical inputs. It
// must be a pure function of its arguments — same state, cmd, dt, and map
// always produce the same result — so that client-side prediction and
// server-side authority agree. This package invokes it but never defines
// it; game movement rules live entirely outside this module.
type PMoveFunc func(state PlayerState, cmd UserCommand, dtMillis uint32, m CollisionMap) PlayerState

// MessageCodec is the wire serialization contract used by both Server and
// Client. Declared as an interface (rather than depending on *Codec
// directly) so tests can substitute a recording/faulty codec.
type MessageCodec interface {
	Encode(msg any) ([]byte, error)
	Decode(data []byte) (any, error)
}
