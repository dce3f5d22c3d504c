package network

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// testMove is a deterministic, collision-free PMoveFunc for integration
// tests: it advances X by MoveForward units per second and always reports
// OnGround, so jump/gravity state machines elsewhere are not exercised
// here (trajectory_test.go and the arenamove package cover those).
func testMove(state PlayerState, cmd UserCommand, dtMillis uint32, _ CollisionMap) PlayerState {
	dt := float32(dtMillis) / 1000.0
	state.X += cmd.MoveForward * 100 * dt
	state.Y += cmd.MoveRight * 100 * dt
	state.Angle = cmd.Angle
	if cmd.Buttons&ButtonJump != 0 {
		state.OnGround = false
		state.VelY = -5
	} else {
		state.OnGround = true
		state.VelY = 0
	}
	state.CommandTime = cmd.ServerTime
	return state
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newLoopbackServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.TickRate = 60
	s := NewServer(cfg, testMove, nil, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func newConnectedClient(t *testing.T, s *Server, name string) *Client {
	t.Helper()
	c := NewClient(DefaultClientConfig(), testMove, quietLogger())
	if err := c.Connect(name, s.Conn().LocalAddr().String()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect("test done") })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.Update()
		c.Update()
		if c.IsConnected() {
			return c
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("client never completed the handshake")
	return nil
}

func pumpUntil(t *testing.T, s *Server, c *Client, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.Update()
		c.Update()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// TestConnectAcceptsAndAssignsPlayerID covers the connect/handshake
// end-to-end scenario: a client's ConnectRequest is answered with an
// accepted ConnectResponse carrying a nonzero player id, and the server's
// ClientCount reflects the new session.
func TestConnectAcceptsAndAssignsPlayerID(t *testing.T) {
	s := newLoopbackServer(t)
	c := newConnectedClient(t, s, "Ranger")

	id, ok := c.PlayerID()
	if !ok || id == 0 {
		t.Fatalf("PlayerID = (%d, %v), want a nonzero id", id, ok)
	}
	if s.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", s.ClientCount())
	}
}

// TestConnectRejectsProtocolMismatch covers the protocol-version-mismatch
// rejection path: a client announcing the wrong version never becomes
// connected.
func TestConnectRejectsProtocolMismatch(t *testing.T) {
	s := newLoopbackServer(t)
	cfg := DefaultClientConfig()
	cfg.ProtocolVersion = ProtocolVersion + 1
	c := NewClient(cfg, testMove, quietLogger())
	if err := c.Connect("Mismatch", s.Conn().LocalAddr().String()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect("done")

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.Update()
		c.Update()
		time.Sleep(time.Millisecond)
	}
	if c.IsConnected() {
		t.Error("client with a mismatched protocol version should never connect")
	}
}

// TestConnectRejectsWhenFull covers the server-full rejection path.
func TestConnectRejectsWhenFull(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.MaxPlayers = 1
	s := NewServer(cfg, testMove, nil, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	newConnectedClient(t, s, "First")

	second := NewClient(DefaultClientConfig(), testMove, quietLogger())
	if err := second.Connect("Second", s.Conn().LocalAddr().String()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer second.Disconnect("done")

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.Update()
		second.Update()
		time.Sleep(time.Millisecond)
	}
	if second.IsConnected() {
		t.Error("a client joining a full server should never connect")
	}
}

// TestInputPropagatesToSnapshot covers a movement end-to-end scenario: a
// command sent by the client eventually advances the replicated X position
// the client observes in its own snapshot.
func TestInputPropagatesToSnapshot(t *testing.T) {
	s := newLoopbackServer(t)
	c := newConnectedClient(t, s, "Mover")

	for i := 0; i < 10; i++ {
		c.SendInput(1, 0, 0, 0)
		s.Update()
		c.Update()
		time.Sleep(2 * time.Millisecond)
	}

	pumpUntil(t, s, c, func() bool {
		snap := c.LastSnapshot()
		if snap == nil {
			return false
		}
		for _, p := range snap.Players {
			if p.X > 0 {
				return true
			}
		}
		return false
	}, 2*time.Second)
}

// TestDisconnectRemovesClientAndNotifiesServer covers clean disconnect:
// after Disconnect, the server's session for that client is gone.
func TestDisconnectRemovesClientAndNotifiesServer(t *testing.T) {
	s := newLoopbackServer(t)
	c := newConnectedClient(t, s, "Leaver")

	c.Disconnect("bye")
	pumpUntil(t, s, c, func() bool { return s.ClientCount() == 0 }, 2*time.Second)
}

// TestChatRelaysToOtherClients covers the Chat broadcast path end to end.
func TestChatRelaysToOtherClients(t *testing.T) {
	s := newLoopbackServer(t)
	a := newConnectedClient(t, s, "A")
	b := newConnectedClient(t, s, "B")

	if err := a.SendChat("hello"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}

	pumpUntil(t, s, b, func() bool {
		for _, evt := range b.DrainEvents() {
			if chat, ok := evt.(Chat); ok && chat.Message == "hello" {
				return true
			}
		}
		return false
	}, 2*time.Second)
}

// TestBroadcastEventRelaysGameplayMessages exercises the previously-broken
// PlayerDamaged/Died/Gibbed/Respawn serialization path end to end, via
// Server.BroadcastEvent.
func TestBroadcastEventRelaysGameplayMessages(t *testing.T) {
	s := newLoopbackServer(t)
	c := newConnectedClient(t, s, "Victim")

	s.BroadcastEvent(PlayerDamaged{PlayerID: 1, AttackerID: 2, Amount: 25, X: 1, Y: 2})

	pumpUntil(t, s, c, func() bool {
		for _, evt := range c.DrainEvents() {
			if dmg, ok := evt.(PlayerDamaged); ok && dmg.Amount == 25 {
				return true
			}
		}
		return false
	}, 2*time.Second)
}

// countingCodec wraps a MessageCodec and tallies the snapshot/delta
// messages it decodes.
type countingCodec struct {
	MessageCodec
	deltas    int
	snapshots int
}

func (c *countingCodec) Decode(data []byte) (any, error) {
	msg, err := c.MessageCodec.Decode(data)
	switch msg.(type) {
	case GameStateDelta:
		c.deltas++
	case GameStateSnapshot:
		c.snapshots++
	}
	return msg, err
}

// TestDeltaCompressedStreamAdvancesWorld verifies the delta path end to
// end over the wire: once the server's per-client history fills, updates
// arrive as GameStateDelta messages, and the client's reconstruction keeps
// the replicated world moving.
func TestDeltaCompressedStreamAdvancesWorld(t *testing.T) {
	s := newLoopbackServer(t)
	c := newConnectedClient(t, s, "DeltaWatcher")
	cc := &countingCodec{MessageCodec: c.codec}
	c.codec = cc

	var firstX float32
	gotFirst := false
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.SendInput(1, 0, 0, 0)
		s.Update()
		c.Update()
		if snap := c.LastSnapshot(); snap != nil && len(snap.Players) > 0 {
			if !gotFirst {
				firstX = snap.Players[0].X
				gotFirst = true
			}
			if cc.deltas >= 5 && snap.Players[0].X > firstX+10 {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("wanted at least 5 decoded deltas with the world still advancing; got %d deltas, %d full snapshots", cc.deltas, cc.snapshots)
}

// TestJumpPropagatesToOtherClient covers the jump-propagation end-to-end
// scenario: one client holding the jump button is eventually observed by
// another client as airborne (or with vertical velocity).
func TestJumpPropagatesToOtherClient(t *testing.T) {
	s := newLoopbackServer(t)
	jumper := newConnectedClient(t, s, "Jumper")
	watcher := newConnectedClient(t, s, "Watcher")

	jumperID, _ := jumper.PlayerID()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		jumper.SendInput(0, 0, 0, ButtonJump)
		s.Update()
		jumper.Update()
		watcher.Update()
		if snap := watcher.LastSnapshot(); snap != nil {
			for _, p := range snap.Players {
				if p.PlayerID == jumperID && (!p.OnGround || p.VelY < -1 || p.VelY > 1) {
					return
				}
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("watcher never observed the jumper airborne")
}

// TestCommandTimeAdvancesWhenIdle covers the command_time heartbeat
// scenario: with no input from a client, the server's fallback step keeps
// its command_time advancing, and other clients observe that advance.
func TestCommandTimeAdvancesWhenIdle(t *testing.T) {
	s := newLoopbackServer(t)
	idle := newConnectedClient(t, s, "Idle")
	watcher := newConnectedClient(t, s, "Watcher")

	idleID, _ := idle.PlayerID()
	idle.SendInput(1, 0, 0, 0)

	commandTimeOf := func() (uint32, bool) {
		snap := watcher.LastSnapshot()
		if snap == nil {
			return 0, false
		}
		for _, p := range snap.Players {
			if p.PlayerID == idleID {
				return p.CommandTime, true
			}
		}
		return 0, false
	}

	var first uint32
	pumpUntil(t, s, watcher, func() bool {
		ct, ok := commandTimeOf()
		if ok {
			first = ct
		}
		return ok
	}, 2*time.Second)

	pumpUntil(t, s, watcher, func() bool {
		ct, ok := commandTimeOf()
		return ok && ct > first+500
	}, 3*time.Second)
}

// TestReconnectGetsFreshPlayerIDs covers the connect/disconnect/reconnect
// scenario: every successive connection is assigned a fresh id, and an
// already-connected client sees the newcomer in its snapshots.
func TestReconnectGetsFreshPlayerIDs(t *testing.T) {
	s := newLoopbackServer(t)
	stayer := newConnectedClient(t, s, "Stayer")
	stayerID, _ := stayer.PlayerID()

	leaver := newConnectedClient(t, s, "Leaver")
	leaverID, _ := leaver.PlayerID()
	if leaverID == stayerID {
		t.Fatalf("two live clients share id %d", leaverID)
	}
	leaver.Disconnect("going away")
	pumpUntil(t, s, stayer, func() bool { return s.ClientCount() == 1 }, 2*time.Second)

	returner := newConnectedClient(t, s, "Returner")
	returnerID, _ := returner.PlayerID()
	if returnerID == stayerID || returnerID == leaverID {
		t.Errorf("reconnect reused id %d (stayer=%d, leaver=%d)", returnerID, stayerID, leaverID)
	}

	pumpUntil(t, s, stayer, func() bool {
		snap := stayer.LastSnapshot()
		if snap == nil {
			return false
		}
		for _, p := range snap.Players {
			if p.PlayerID == returnerID {
				return true
			}
		}
		return false
	}, 2*time.Second)
}

// TestPredictionStaysBounded covers the prediction-bounded scenario: with
// the same deterministic move function on both endpoints, replaying
// pending commands from the authoritative base never drifts far from what
// the server computes.
func TestPredictionStaysBounded(t *testing.T) {
	s := newLoopbackServer(t)
	c := newConnectedClient(t, s, "Predictor")

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		c.SendInput(1, 0, 0, 0)
		s.Update()
		c.Update()
		if _, ok := c.PredictLocalPlayer(nil); ok {
			if perr := c.PredictionError(); perr != nil && perr.Magnitude > 50 {
				t.Fatalf("prediction error magnitude = %v, want < 50", perr.Magnitude)
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestServerTimeoutDisconnectsIdleClient covers the client-timeout path
// with a near-zero timeout so the test does not wait the full default 30s.
func TestServerTimeoutDisconnectsIdleClient(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.ClientTimeout = 50 * time.Millisecond
	s := NewServer(cfg, testMove, nil, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	c := newConnectedClient(t, s, "Idle")
	_ = c

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.Update()
		if s.ClientCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("idle client was never timed out")
}
