// Package network implements the client/server replication engine for a
// fast-tick arena shooter: an authoritative tick loop, a sequenced and
// fragmented datagram channel (NetChan), closed-form projectile
// trajectories, field-level snapshot deltas, a client command ring, and a
// snapshot buffer with interpolation/short extrapolation for remote
// entities. Rendering, asset loading, movement physics (pmove), and game
// rules are external collaborators; this package only moves and
// reconciles state.
package network
