package network

import "sync"

// encodeScratchSize covers the encoded body of a full 16-player snapshot
// without growing. Larger bodies (a crowded delta plus new projectiles)
// grow the slice once, and the widened backing array stays in the pool
// for the next broadcast.
const encodeScratchSize = 4096

// encodeScratch backs Codec.Encode's working buffer. The server encodes
// one body per client per broadcast tick; without the pool every one of
// those is a fresh 4KB allocation on the hottest path the server has.
var encodeScratch = sync.Pool{
	New: func() any {
		b := make([]byte, 0, encodeScratchSize)
		return &b
	},
}

func acquireScratch() *[]byte {
	return encodeScratch.Get().(*[]byte)
}

// releaseScratch resets length (keeping capacity) and returns the buffer
// to the pool. Callers must not retain any slice aliasing the buffer past
// this call; Codec.Encode copies the finished body out first.
func releaseScratch(b *[]byte) {
	if b == nil {
		return
	}
	*b = (*b)[:0]
	encodeScratch.Put(b)
}
