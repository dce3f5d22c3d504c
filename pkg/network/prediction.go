package network

import "math"

// maxPredictionReplay bounds how many trailing unacknowledged commands are
// replayed from the authoritative base state.
const maxPredictionReplay = 10

// predictionErrorThreshold is the magnitude (in world units) past which a
// predicted position is considered to have meaningfully diverged from the
// authoritative one.
const predictionErrorThreshold = 2.0

// PredictedPlayerState is the outcome of replaying pending commands from
// an authoritative base state.
type PredictedPlayerState struct {
	X, Y   float32
	VelX   float32
	VelY   float32
	AtTime uint32
}

// PredictionError reports how far a predicted state diverged from the
// authoritative state it is eventually compared against. Diagnostic only:
// prediction is best-effort and never blocks or rejects input.
type PredictionError struct {
	ErrorX, ErrorY float32
	Magnitude      float32
}

// ClientPrediction replays the local player's pending commands against
// the authoritative base state using the externally-supplied PMoveFunc,
// so the client can render its own avatar without waiting for the
// round trip. There is no server-side equivalent of this type: the server
// is authoritative and never rewinds (see spec design notes); only the
// client predicts.
type ClientPrediction struct {
	move      PMoveFunc
	lastError *PredictionError

	// history holds recent predictions keyed by the command time they
	// cover, so an authoritative state can later be compared against the
	// prediction made for that same command time.
	history []PredictedPlayerState
}

// NewClientPrediction returns a ClientPrediction that replays commands
// using move.
func NewClientPrediction(move PMoveFunc) *ClientPrediction {
	return &ClientPrediction{move: move}
}

// Predict replays up to maxPredictionReplay of the most recent commands
// with sequence greater than lastAcked, starting from base, using
// collision for every pmove call. Commands are expected in ascending
// sequence order (as returned by CommandBuffer.Since/Last).
func (c *ClientPrediction) Predict(base PlayerState, commands []UserCommand, lastAcked uint32, collision CollisionMap) PredictedPlayerState {
	pending := make([]UserCommand, 0, maxPredictionReplay)
	for _, cmd := range commands {
		if cmd.Sequence > lastAcked {
			pending = append(pending, cmd)
		}
	}
	if len(pending) > maxPredictionReplay {
		pending = pending[len(pending)-maxPredictionReplay:]
	}

	state := base
	lastTime := base.CommandTime
	for _, cmd := range pending {
		dt := dtMillisClamped(lastTime, cmd.ServerTime)
		state = c.move(state, cmd, dt, collision)
		lastTime = cmd.ServerTime
	}

	predicted := PredictedPlayerState{X: state.X, Y: state.Y, VelX: state.VelX, VelY: state.VelY, AtTime: lastTime}
	c.record(predicted)
	return predicted
}

// record appends predicted to the reconciliation history, replacing the
// newest entry when it covers the same command time (re-predicting the
// same frame) and bounding the history at the replay window.
func (c *ClientPrediction) record(predicted PredictedPlayerState) {
	if n := len(c.history); n > 0 && c.history[n-1].AtTime == predicted.AtTime {
		c.history[n-1] = predicted
		return
	}
	c.history = append(c.history, predicted)
	if len(c.history) > maxPredictionReplay {
		c.history = c.history[len(c.history)-maxPredictionReplay:]
	}
}

// Reconcile compares authoritative against the prediction previously made
// for the same command time, if one is still retained, recording a
// PredictionError on meaningful divergence. Predictions for command times
// the server has now confirmed are pruned either way. Authoritative states
// produced by the server's input-less fallback step carry command times no
// client command ever had; those simply find no matching prediction.
func (c *ClientPrediction) Reconcile(authoritative PlayerState) *PredictionError {
	var perr *PredictionError
	kept := c.history[:0]
	for _, p := range c.history {
		switch {
		case p.AtTime == authoritative.CommandTime:
			perr = c.CheckError(p, authoritative)
		case p.AtTime > authoritative.CommandTime:
			kept = append(kept, p)
		}
	}
	c.history = kept
	return perr
}

// dtMillisClamped mirrors the server tick loop's command-dt derivation:
// (cmd.server_time - last_executed_time), clamped to [1ms, 100ms].
func dtMillisClamped(lastTime, cmdTime uint32) uint32 {
	var dt uint32
	if cmdTime > lastTime {
		dt = cmdTime - lastTime
	}
	if dt < 1 {
		dt = 1
	}
	if dt > 100 {
		dt = 100
	}
	return dt
}

// CheckError compares a predicted state against the authoritative
// PlayerState at the same command time and records a PredictionError if
// the divergence exceeds predictionErrorThreshold. Returns the error (or
// nil if within tolerance) and stores it for LastError.
func (c *ClientPrediction) CheckError(predicted PredictedPlayerState, authoritative PlayerState) *PredictionError {
	ex := authoritative.X - predicted.X
	ey := authoritative.Y - predicted.Y
	mag := float32(math.Sqrt(float64(ex*ex + ey*ey)))
	if mag <= predictionErrorThreshold {
		c.lastError = nil
		return nil
	}
	perr := &PredictionError{ErrorX: ex, ErrorY: ey, Magnitude: mag}
	c.lastError = perr
	return perr
}

// LastError returns the most recently recorded PredictionError, or nil if
// the last check was within tolerance.
func (c *ClientPrediction) LastError() *PredictionError {
	return c.lastError
}
