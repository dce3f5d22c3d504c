package network

import "errors"

// These are the small fixed set of "never fatal to the peer" conditions
// from spec's error handling design: every one of them is logged and
// handled locally, never propagated to terminate a connection or the
// process. They are unexported so callers use errors.Is rather than
// depending on a public error taxonomy the spec never asked for.
var (
	errProtocolMismatch = errors.New("network: protocol version mismatch")
	errServerFull       = errors.New("network: server full")
	errBaselineMissing  = errors.New("network: delta baseline no longer retained")
	errFragmentBroken   = errors.New("network: fragment reassembly broken")
	errStaleCommand     = errors.New("network: command already executed")
	errNotConnected     = errors.New("network: client not connected")
)
