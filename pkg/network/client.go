package network

import (
	"net"
	"sort"
	"time"

	"github.com/opd-ai/skirmish/pkg/logging"
	"github.com/sirupsen/logrus"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	ProtocolVersion  uint32
	TickRate         int
	MaxPacketsPerSec int
	// AutoNudge mirrors cl_autoNudge: when > 0, interpolation delay is
	// derived from AutoNudge * median ping, floored at 30ms.
	AutoNudge float64
	// TimeNudge mirrors cl_timeNudge: the manual interpolation delay in
	// ms used when AutoNudge <= 0.
	TimeNudge int
}

// DefaultClientConfig returns the spec's documented client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ProtocolVersion:  ProtocolVersion,
		TickRate:         60,
		MaxPacketsPerSec: 60,
		AutoNudge:        0,
		TimeNudge:        30,
	}
}

const maxPingSamples = 16

// Client is the session endpoint (C7, client side): connect handshake,
// non-blocking receive loop, rate-limited send path, server-time sync,
// local prediction, and render-time interpolation. Like Server, it is a
// single-threaded cooperative loop — Update is meant to be called once
// per frame by the embedding application.
type Client struct {
	config  ClientConfig
	move    PMoveFunc
	metrics Metrics
	log     *logrus.Entry
	clock   Clock
	codec   MessageCodec

	conn       *net.UDPConn
	serverAddr *net.UDPAddr
	connected  bool

	playerID    uint16
	hasPlayerID bool
	channel     *NetChan

	commandBuffer      *CommandBuffer
	lastPacketSentTime float64
	lastHeartbeatSent  float64

	serverTimeDelta  int32
	lastSnapshotTime float64
	lastServerTimeMS uint32
	pingSamples      [maxPingSamples]uint32
	pingIndex        int

	lastSnapshot      *GameStateSnapshot
	receivedSnapshots map[uint32]GameStateSnapshot
	snapshotBuffer    *SnapshotBuffer
	prediction        *ClientPrediction

	serverInfo *ServerInfo
	events     []any

	connectedAt   float64
	bytesSent     int
	bytesReceived int

	recvBuf []byte
}

// Stats is a small diagnostic snapshot of a Client's session, mirroring
// the original's ClientStats: useful for a status line or admin probe,
// never consumed by the replication logic itself.
type Stats struct {
	Connected          bool
	PlayerID           uint16
	AveragePingMS      float64
	PredictionErrorMag float32
	BytesSent          int
	BytesReceived      int
	ConnectedSecs      float64
}

// NewClient builds an unconnected Client. move is the same PMoveFunc the
// server runs, used for local prediction only; the client never treats
// its own prediction as authoritative.
func NewClient(config ClientConfig, move PMoveFunc, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		config:            config,
		move:              move,
		metrics:           NoopMetrics,
		log:               logger.WithField("component", "network.client"),
		clock:             NewClock(),
		codec:             NewCodec(),
		commandBuffer:     NewCommandBuffer(),
		receivedSnapshots: make(map[uint32]GameStateSnapshot),
		snapshotBuffer:    NewSnapshotBuffer(),
		prediction:        NewClientPrediction(move),
		recvBuf:           make([]byte, MaxPacketLen),
	}
}

// SetMetrics installs a Metrics sink; nil restores NoopMetrics.
func (c *Client) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics
	}
	c.metrics = m
}

// Connect binds an ephemeral socket and sends an unframed ConnectRequest.
// It does not block for the response; call Update until IsConnected (or
// the rejection is logged).
func (c *Client) Connect(name, serverAddress string) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return err
	}
	addr, err := net.ResolveUDPAddr("udp4", serverAddress)
	if err != nil {
		conn.Close()
		return err
	}
	c.conn = conn
	c.serverAddr = addr

	req := ConnectRequest{Name: name, ProtocolVersion: c.config.ProtocolVersion}
	body, err := c.codec.Encode(req)
	if err != nil {
		return err
	}
	pkt := make([]byte, headerLen+len(body))
	copy(pkt[headerLen:], body)
	n, err := c.conn.WriteToUDP(pkt, addr)
	if err != nil {
		return err
	}
	c.bytesSent += n
	c.metrics.BytesSent(n)
	c.log.WithField("server", serverAddress).Info("connecting")
	return nil
}

// Disconnect best-effort notifies the server and tears down local state.
func (c *Client) Disconnect(reason string) {
	if c.connected && c.channel != nil {
		c.sendMessage(Disconnect{PlayerID: c.playerID, Reason: reason})
	}
	c.connected = false
	c.hasPlayerID = false
	c.channel = nil
	c.serverAddr = nil
	if c.conn != nil {
		c.conn.Close()
	}
	c.log.Info("disconnected")
}

// IsConnected reports whether the handshake has completed and accepted.
func (c *Client) IsConnected() bool { return c.connected }

// PlayerID returns the locally assigned id, or (0, false) before accept.
func (c *Client) PlayerID() (uint16, bool) { return c.playerID, c.hasPlayerID }

// LastSnapshot returns the most recently reconstructed world state, or
// nil before the first GameStateSnapshot/GameStateDelta arrives.
func (c *Client) LastSnapshot() *GameStateSnapshot { return c.lastSnapshot }

// ServerInfo returns the map/gametype info sent immediately after accept,
// or nil if it has not arrived yet.
func (c *Client) ServerInfo() *ServerInfo { return c.serverInfo }

// DrainEvents returns and clears every gameplay event (Chat,
// PlayerDamaged, PlayerDied, PlayerGibbed, PlayerRespawn, PlayerShoot,
// MapChange) received since the last call. This package relays these
// events but never interprets them.
func (c *Client) DrainEvents() []any {
	out := c.events
	c.events = nil
	return out
}

// Update drains inbound datagrams, reconstructs world state, and sends a
// heartbeat if idle. Call once per frame.
func (c *Client) Update() {
	c.drainInbound()
	c.sendHeartbeatIfIdle()
}

func (c *Client) drainInbound() {
	if c.conn == nil {
		return
	}
	for {
		// A deadline already in the past fails the read before the socket is
		// looked at, so an empty socket is allowed a 1ms wait instead.
		c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, addr, err := c.conn.ReadFromUDP(c.recvBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			return
		}
		c.bytesReceived += n
		c.metrics.BytesReceived(n)
		data := make([]byte, n)
		copy(data, c.recvBuf[:n])
		c.processPacket(data, addr)
	}
}

func (c *Client) processPacket(data []byte, addr *net.UDPAddr) {
	if c.serverAddr != nil && addr.String() != c.serverAddr.String() {
		return
	}

	if c.channel == nil {
		c.processHandshake(data, addr)
		return
	}

	payload, outcome := c.channel.ProcessPacket(data)
	switch outcome {
	case OutcomeFragmentBroken:
		c.log.WithError(errFragmentBroken).Debug("reassembly reset")
		c.metrics.PacketDropped("fragment-broken")
		return
	case OutcomeDropped:
		c.metrics.PacketDropped("stale-or-malformed")
		return
	case OutcomePending:
		return
	}

	msg, err := c.codec.Decode(payload)
	if err != nil {
		c.metrics.PacketDropped("decode")
		return
	}
	c.handleMessage(msg)
}

// processHandshake treats the first payload from the server specially:
// it is the accept/reject response, parsed by stripping the fixed 6-byte
// header rather than through a NetChan (which does not exist yet).
func (c *Client) processHandshake(data []byte, addr *net.UDPAddr) {
	if len(data) < headerLen {
		return
	}
	msg, err := c.codec.Decode(data[headerLen:])
	if err != nil {
		return
	}
	resp, ok := msg.(ConnectResponse)
	if !ok {
		return
	}
	if !resp.Accepted {
		c.log.WithField("reason", resp.Reason).Warn("connection rejected")
		return
	}
	qport := uint16(addr.Port & 0xFFFF)
	c.channel = NewNetChan(addr, qport)
	c.playerID = resp.PlayerID
	c.hasPlayerID = true
	c.connected = true
	c.connectedAt = c.clock.NowSeconds()
	c.log = logging.SessionLogger(c.log.Logger, addr.String(), resp.PlayerID)
	c.log.Info("connected")
}

func (c *Client) handleMessage(msg any) {
	switch m := msg.(type) {
	case GameStateSnapshot:
		c.handleSnapshot(m)
	case GameStateDelta:
		c.handleDelta(m)
	case ServerInfo:
		c.serverInfo = &m
	case Disconnect:
		if m.PlayerID == c.playerID {
			c.connected = false
		}
		c.events = append(c.events, m)
	default:
		c.events = append(c.events, msg)
	}
}

func (c *Client) handleSnapshot(m GameStateSnapshot) {
	c.updateServerTime(m.Tick)
	msgNum := c.channel.IncomingSequence()
	c.receivedSnapshots[msgNum] = m
	c.pruneReceived()
	c.pushInterpolation(m.Tick, m.Players, m.Projectiles)
	snap := m
	c.lastSnapshot = &snap
}

func (c *Client) handleDelta(m GameStateDelta) {
	c.updateServerTime(m.Tick)
	base, ok := c.receivedSnapshots[m.BaseMessageNum]
	if !ok {
		c.log.WithError(errBaselineMissing).WithField("base", m.BaseMessageNum).Debug("dropping delta")
		c.metrics.PacketDropped("baseline-missing")
		return
	}
	reconstructed := ReconstructSnapshot(base, m.Tick, m.PlayerDeltas, m.ProjectileDeltas, m.NewProjectiles, m.RemovedProjectiles)
	msgNum := c.channel.IncomingSequence()
	c.receivedSnapshots[msgNum] = reconstructed
	c.pruneReceived()
	c.pushInterpolation(reconstructed.Tick, reconstructed.Players, reconstructed.Projectiles)
	c.lastSnapshot = &reconstructed
}

func (c *Client) pushInterpolation(tick uint32, players []PlayerState, projectiles []ProjectileState) {
	alive := make([]PlayerState, 0, len(players))
	for _, p := range players {
		if !p.Dead {
			alive = append(alive, p)
		}
	}
	tickRate := c.config.TickRate
	if tickRate < 1 {
		tickRate = 1
	}
	ts := float64(tick) / float64(tickRate)
	c.snapshotBuffer.Add(tick, ts, alive, projectiles)
}

// pruneReceived bounds the received-snapshot map at snapshotBackup
// entries, mirroring the server's per-client retention so memory stays
// O(PACKET_BACKUP) on the client too.
func (c *Client) pruneReceived() {
	if c.channel == nil {
		return
	}
	cur := c.channel.IncomingSequence()
	for k := range c.receivedSnapshots {
		if cur-k >= snapshotBackup {
			delete(c.receivedSnapshots, k)
		}
	}
}

func (c *Client) sendHeartbeatIfIdle() {
	now := c.clock.NowSeconds()
	if now-c.lastHeartbeatSent <= 5.0 || now-c.lastPacketSentTime <= 5.0 {
		return
	}
	if c.connected {
		c.sendMessage(Heartbeat{})
	}
	c.lastHeartbeatSent = now
}

func (c *Client) sendMessage(msg any) error {
	if !c.connected || c.channel == nil {
		return errNotConnected
	}
	body, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	for _, pkt := range c.channel.Transmit(body) {
		n, err := c.conn.WriteToUDP(pkt, c.serverAddr)
		if err != nil {
			return err
		}
		c.bytesSent += n
		c.metrics.BytesSent(n)
	}
	return nil
}

// CreateCommand stamps a command with the current server time (per
// §4.7.3) and appends it to the local command buffer.
func (c *Client) CreateCommand(moveForward, moveRight, angle float32, buttons uint32) {
	if !c.hasPlayerID {
		return
	}
	cmd := UserCommand{
		ServerTime:  c.GetServerTime(),
		MoveForward: moveForward,
		MoveRight:   moveRight,
		Angle:       angle,
		Buttons:     buttons,
	}
	c.commandBuffer.Add(cmd)
}

// FlushCommands sends the most recent commands as a PlayerInputBatch,
// rate-limited to config.MaxPacketsPerSec.
func (c *Client) FlushCommands() error {
	now := c.clock.NowSeconds()
	minInterval := 1.0 / float64(c.config.MaxPacketsPerSec)
	if now-c.lastPacketSentTime < minInterval {
		return nil
	}
	if !c.hasPlayerID {
		return errNotConnected
	}
	recent := c.commandBuffer.Last(4)
	if len(recent) == 0 {
		return nil
	}
	cmds := make([]PlayerInputCmd, len(recent))
	for i, cmd := range recent {
		cmds[i] = PlayerInputCmd{MoveForward: cmd.MoveForward, MoveRight: cmd.MoveRight, Angle: cmd.Angle, Buttons: cmd.Buttons, ServerTime: cmd.ServerTime}
	}
	c.lastPacketSentTime = now
	return c.sendMessage(PlayerInputBatch{PlayerID: c.playerID, Commands: cmds})
}

// SendInput is CreateCommand followed immediately by FlushCommands, the
// convenience path most callers use once per input frame.
func (c *Client) SendInput(moveForward, moveRight, angle float32, buttons uint32) error {
	c.CreateCommand(moveForward, moveRight, angle, buttons)
	return c.FlushCommands()
}

// SendShoot announces a weapon discharge.
func (c *Client) SendShoot(weapon uint8, originX, originY, direction float32) error {
	if !c.hasPlayerID {
		return errNotConnected
	}
	return c.sendMessage(PlayerShoot{PlayerID: c.playerID, Weapon: weapon, OriginX: originX, OriginY: originY, Direction: direction})
}

// SendChat relays a chat message.
func (c *Client) SendChat(message string) error {
	if !c.hasPlayerID {
		return errNotConnected
	}
	return c.sendMessage(Chat{PlayerID: c.playerID, Message: message})
}

// GetServerTime returns the client's estimate of the current server time
// in ms, monotone against every previous call even if a later sync would
// otherwise move it backward.
func (c *Client) GetServerTime() uint32 {
	now := c.clock.NowSeconds()
	realtimeMS := int64(now * 1000.0)
	serverTimeMS := realtimeMS + int64(c.serverTimeDelta)
	if serverTimeMS < 0 {
		serverTimeMS = 0
	}
	if uint32(serverTimeMS) < c.lastServerTimeMS {
		serverTimeMS = int64(c.lastServerTimeMS)
	}
	c.lastServerTimeMS = uint32(serverTimeMS)
	return c.lastServerTimeMS
}

// updateServerTime implements §4.7.3: snap on >500ms divergence, average
// on >100ms, otherwise leave server_time_delta alone. Also records a ping
// sample from the inter-snapshot arrival interval.
func (c *Client) updateServerTime(tick uint32) {
	now := c.clock.NowSeconds()
	realtimeMS := int64(now * 1000.0)
	tickRate := c.config.TickRate
	if tickRate < 1 {
		tickRate = 1
	}
	snapshotMS := int64(tick) * 1000 / int64(tickRate)
	newDelta := snapshotMS - realtimeMS

	if c.lastSnapshotTime <= 0 {
		c.serverTimeDelta = int32(newDelta)
		c.lastSnapshotTime = now
		return
	}

	pingMS := uint32((now - c.lastSnapshotTime) * 1000.0)
	c.pingSamples[c.pingIndex] = pingMS
	c.pingIndex = (c.pingIndex + 1) % maxPingSamples

	deltaDelta := newDelta - int64(c.serverTimeDelta)
	if deltaDelta < 0 {
		deltaDelta = -deltaDelta
	}
	if deltaDelta > 500 {
		c.serverTimeDelta = int32(newDelta)
	} else if deltaDelta > 100 {
		c.serverTimeDelta = int32((int64(c.serverTimeDelta) + newDelta) / 2)
	}
	c.lastSnapshotTime = now
}

// medianPing returns the median of the valid (0 < p < 999ms) ping
// samples, or 50ms if none are valid yet.
func (c *Client) medianPing() float64 {
	valid := make([]uint32, 0, maxPingSamples)
	for _, p := range c.pingSamples {
		if p > 0 && p < 999 {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return 50
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })
	mid := len(valid) / 2
	if len(valid)%2 == 0 {
		return float64(valid[mid-1]+valid[mid]) / 2
	}
	return float64(valid[mid])
}

// AveragePing returns the mean of the valid ping-ring samples in
// milliseconds, or 0 if none have been recorded yet. This is the read
// side spec.md names but never specifies (§4.7.2's "ping ring (16
// samples)"); cl_autoNudge calibration uses the median instead (see
// medianPing), but diagnostics/UI callers want the familiar average.
func (c *Client) AveragePing() float64 {
	var sum float64
	var n int
	for _, p := range c.pingSamples {
		if p > 0 && p < 999 {
			sum += float64(p)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Stats returns a diagnostic snapshot of the current session.
func (c *Client) Stats() Stats {
	var mag float32
	if e := c.prediction.LastError(); e != nil {
		mag = e.Magnitude
	}
	var connectedSecs float64
	if c.connected {
		connectedSecs = c.clock.NowSeconds() - c.connectedAt
	}
	return Stats{
		Connected:          c.connected,
		PlayerID:           c.playerID,
		AveragePingMS:      c.AveragePing(),
		PredictionErrorMag: mag,
		BytesSent:          c.bytesSent,
		BytesReceived:      c.bytesReceived,
		ConnectedSecs:      connectedSecs,
	}
}

// GetInterpolationTime returns the render-time (in seconds) to pass into
// InterpolatePlayer/InterpolateProjectile: server time minus the
// calibrated nudge delay.
func (c *Client) GetInterpolationTime() float64 {
	st := int64(c.GetServerTime())
	nudge := int64(ComputeNudgeMS(c.config.AutoNudge, c.medianPing(), c.config.TimeNudge))
	interpMS := st - nudge
	if interpMS < 0 {
		interpMS = 0
	}
	return float64(interpMS) / 1000.0
}

// InterpolatePlayer returns player id's render-time state.
func (c *Client) InterpolatePlayer(id uint16) (PlayerState, bool) {
	return c.snapshotBuffer.InterpolatePlayer(id, c.GetInterpolationTime())
}

// InterpolateProjectile returns projectile id's render-time position.
func (c *Client) InterpolateProjectile(id uint32) (float32, float32, bool) {
	return c.snapshotBuffer.InterpolateProjectile(id, c.GetInterpolationTime())
}

// findAckedSequence returns the highest locally-issued command sequence
// the authoritative state already reflects, inferred from base's
// CommandTime (the server_time of the last command it applied).
func (c *Client) findAckedSequence(base PlayerState) uint32 {
	var acked uint32
	for _, cmd := range c.commandBuffer.Last(maxPredictionReplay + 4) {
		if cmd.ServerTime <= base.CommandTime && cmd.Sequence > acked {
			acked = cmd.Sequence
		}
	}
	return acked
}

// PredictLocalPlayer replays the local player's unacknowledged commands
// from the latest authoritative base state, per §4.7.2. Returns false if
// there is no snapshot yet or the local player is not present in it.
func (c *Client) PredictLocalPlayer(collision CollisionMap) (PredictedPlayerState, bool) {
	if c.lastSnapshot == nil || !c.hasPlayerID {
		return PredictedPlayerState{}, false
	}
	var base PlayerState
	found := false
	for _, p := range c.lastSnapshot.Players {
		if p.PlayerID == c.playerID {
			base, found = p, true
			break
		}
	}
	if !found {
		return PredictedPlayerState{}, false
	}
	c.prediction.Reconcile(base)
	acked := c.findAckedSequence(base)
	commands := c.commandBuffer.Last(maxPredictionReplay)
	predicted := c.prediction.Predict(base, commands, acked, collision)
	return predicted, true
}

// PredictionError returns the most recently recorded prediction
// divergence, or nil if the last check was within tolerance.
func (c *Client) PredictionError() *PredictionError {
	return c.prediction.LastError()
}
