package network

import (
	"fmt"
	"math"
	"net"
	"sort"
	"time"

	"github.com/opd-ai/skirmish/pkg/logging"
	"github.com/sirupsen/logrus"
)

// snapshotBackup is PACKET_BACKUP: how many prior per-client snapshots the
// server retains as delta baselines.
const snapshotBackup = 32

// projectileSpeed is the launch speed given to every spawned projectile.
// The core does not model weapon-specific ballistics; that distinction is
// external, so one constant covers every weapon kind that reaches
// spawnProjectile.
const projectileSpeed float32 = 1000

// SpawnFunc supplies a newly-accepted player's initial position. Spawn
// point selection is a game-rules concern external to this package; nil
// spawns everyone at the origin.
type SpawnFunc func(playerID uint16) (x, y float32)

// ServerConfig configures a Server.
type ServerConfig struct {
	Address          string
	MaxPlayers       int
	TickRate         int
	ProtocolVersion  uint32
	MapName          string
	ClientTimeout    time.Duration
	DeltaCompression bool
}

// DefaultServerConfig returns the spec's documented defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:          "0.0.0.0:27960",
		MaxPlayers:       16,
		TickRate:         60,
		ProtocolVersion:  ProtocolVersion,
		MapName:          "0-arena",
		ClientTimeout:    30 * time.Second,
		DeltaCompression: true,
	}
}

// storedSnapshot is one retained per-client snapshot: the world state that
// went out, the outgoing sequence it was stamped with, and when it was
// sent. History slots are keyed modulo snapshotBackup, so messageNum
// records which snapshot a recycled slot currently holds; deltas built
// from the slot are tagged with it as their base_message_num.
type storedSnapshot struct {
	messageNum uint32
	sentTime   float64
	world      GameStateSnapshot
}

type clientSession struct {
	id        uint16
	name      string
	addr      *net.UDPAddr
	channel   *NetChan
	log       *logrus.Entry
	challenge int32

	lastHeartbeat float64
	connectedAt   float64
	state         PlayerState

	lastExecutedTime uint32
	pending          []UserCommand

	snapshotHistory [snapshotBackup]storedSnapshot
	snapshotValid   [snapshotBackup]bool
	deltaMessage    uint32

	bytesSent     int
	bytesReceived int
}

// ClientInfo is the read-only diagnostic view of one connected client,
// supplementing the wire-level PlayerState with session bookkeeping the
// original sources track per connection (last-heartbeat age, byte
// counters, dropped-packet count) but spec.md's data model does not name.
type ClientInfo struct {
	PlayerID       uint16
	Name           string
	Address        string
	ConnectedSecs  float64
	IdleSecs       float64
	BytesSent      int
	BytesReceived  int
	PacketsDropped int
}

// Server is the authoritative session endpoint (C7, server side): it owns
// the UDP socket, every accepted NetChan, the tick loop, and per-client
// delta baseline bookkeeping. It runs a single-threaded cooperative loop —
// Update is meant to be called once per frame from the embedding
// application's own loop, never from multiple goroutines concurrently.
type Server struct {
	config    ServerConfig
	move      PMoveFunc
	collision CollisionMap
	spawn     SpawnFunc
	metrics   Metrics
	log       *logrus.Entry
	clock     Clock
	codec     MessageCodec

	conn    *net.UDPConn
	running bool

	tick         uint32
	nextClientID uint16
	clients      map[uint16]*clientSession
	addrIndex    map[string]uint16

	projectiles      map[uint32]ProjectileState
	nextProjectileID uint32

	accumulator      float64
	lastUpdate       float64
	broadcastCounter uint32

	recvBuf []byte
}

// NewServer builds a Server bound to nothing yet; call Start to bind the
// socket. move and collision are threaded into every pmove call this
// server makes; the server never interprets collision itself.
func NewServer(config ServerConfig, move PMoveFunc, collision CollisionMap, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		config:       config,
		move:         move,
		collision:    collision,
		metrics:      NoopMetrics,
		log:          logger.WithField("component", "network.server"),
		clock:        NewClock(),
		codec:        NewCodec(),
		nextClientID: 1,
		clients:      make(map[uint16]*clientSession),
		addrIndex:    make(map[string]uint16),
		projectiles:  make(map[uint32]ProjectileState),
		recvBuf:      make([]byte, MaxPacketLen),
	}
}

// SetMetrics installs a Metrics sink; nil restores NoopMetrics.
func (s *Server) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics
	}
	s.metrics = m
}

// SetSpawnFunc installs the spawn-point hook used on accept.
func (s *Server) SetSpawnFunc(fn SpawnFunc) { s.spawn = fn }

// Start binds the UDP socket. Bind failure is the one error this package
// treats as fatal to the caller. Platform socket tuning (SO_REUSEADDR,
// widened SO_RCVBUF/SO_SNDBUF) is not this package's concern — callers that
// want it fetch the bound connection with Conn and hand it to
// internal/sockopt after Start succeeds.
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp4", s.config.Address)
	if err != nil {
		return fmt.Errorf("network: resolve %q: %w", s.config.Address, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("network: bind %q: %w", s.config.Address, err)
	}
	s.conn = conn
	s.running = true
	now := s.clock.NowSeconds()
	s.lastUpdate = now
	s.log.WithField("address", s.config.Address).Info("server started")
	return nil
}

// Conn returns the bound UDP socket, or nil before Start succeeds. Exposed
// so cmd/server can apply internal/sockopt tuning without pkg/network
// depending on it directly.
func (s *Server) Conn() *net.UDPConn { return s.conn }

// Stop best-effort disconnects every client and closes the socket.
func (s *Server) Stop() error {
	for id := range s.clients {
		s.disconnectClient(id, "server shutting down")
	}
	s.running = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsRunning reports whether Start has succeeded and Stop has not yet run.
func (s *Server) IsRunning() bool { return s.running }

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int { return len(s.clients) }

// CurrentTick returns the tick most recently advanced by Update.
func (s *Server) CurrentTick() uint32 { return s.tick }

// Update drains every pending inbound datagram, checks client timeouts,
// and advances the tick accumulator, broadcasting on every second tick.
// It is the single entry point the embedding loop calls once per frame.
func (s *Server) Update() {
	start := s.clock.NowSeconds()
	s.drainInbound()
	s.checkTimeouts(start)

	tickInterval := 1.0 / float64(s.config.TickRate)
	s.accumulator += start - s.lastUpdate
	s.lastUpdate = start

	for s.accumulator >= tickInterval {
		s.accumulator -= tickInterval
		s.tick++
		s.runTick(tickInterval)
		s.broadcastCounter++
		if s.broadcastCounter%2 == 0 {
			s.broadcast()
		}
	}
	s.metrics.TickDuration(time.Duration((s.clock.NowSeconds() - start) * float64(time.Second)))
}

func (s *Server) drainInbound() {
	if s.conn == nil {
		return
	}
	for {
		// A deadline already in the past fails the read before the socket is
		// looked at, so an empty socket is allowed a 1ms wait instead.
		s.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(s.recvBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			return
		}
		s.metrics.BytesReceived(n)
		data := make([]byte, n)
		copy(data, s.recvBuf[:n])
		s.processPacket(data, addr, n)
	}
}

func (s *Server) processPacket(data []byte, addr *net.UDPAddr, n int) {
	id, known := s.addrIndex[addr.String()]
	if !known {
		s.handleConnectRequest(data, addr)
		return
	}
	session := s.clients[id]
	session.bytesReceived += n
	payload, outcome := session.channel.ProcessPacket(data)
	switch outcome {
	case OutcomeComplete:
		session.lastHeartbeat = s.clock.NowSeconds()
		session.deltaMessage = session.channel.IncomingSequence()
		msg, err := s.codec.Decode(payload)
		if err != nil {
			s.metrics.PacketDropped("decode")
			return
		}
		s.dispatch(session, msg)
	case OutcomeFragmentBroken:
		session.log.WithError(errFragmentBroken).Debug("reassembly reset")
		s.metrics.PacketDropped("fragment-broken")
	case OutcomeDropped:
		s.metrics.PacketDropped("stale-or-malformed")
	case OutcomePending:
	}
}

func (s *Server) handleConnectRequest(data []byte, addr *net.UDPAddr) {
	if len(data) < headerLen {
		s.metrics.PacketDropped("short-handshake")
		return
	}
	msg, err := s.codec.Decode(data[headerLen:])
	if err != nil {
		s.metrics.PacketDropped("handshake-decode")
		return
	}
	req, ok := msg.(ConnectRequest)
	if !ok {
		return
	}

	if req.ProtocolVersion != s.config.ProtocolVersion {
		s.replyUnframed(addr, ConnectResponse{Accepted: false, Reason: "protocol version mismatch"})
		s.log.WithError(errProtocolMismatch).WithField("addr", addr.String()).Warn("rejected connect")
		return
	}
	if len(s.clients) >= s.config.MaxPlayers {
		s.replyUnframed(addr, ConnectResponse{Accepted: false, Reason: "server full"})
		s.log.WithError(errServerFull).WithField("addr", addr.String()).Warn("rejected connect")
		return
	}

	id := s.nextClientID
	s.nextClientID++
	qport := uint16(addr.Port & 0xFFFF)

	var x, y float32
	if s.spawn != nil {
		x, y = s.spawn(id)
	}

	now := s.clock.NowSeconds()
	session := &clientSession{
		id:            id,
		name:          req.Name,
		addr:          addr,
		channel:       NewNetChan(addr, qport),
		log:           logging.SessionLogger(s.log.Logger, addr.String(), id),
		challenge:     int32(now),
		lastHeartbeat: now,
		connectedAt:   now,
		state: PlayerState{
			PlayerID: id,
			X:        x,
			Y:        y,
			Health:   100,
			Weapon:   WeaponMachinegun,
			OnGround: true,
		},
	}
	s.clients[id] = session
	s.addrIndex[addr.String()] = id
	s.metrics.ClientConnected()

	s.sendTo(session, ConnectResponse{PlayerID: id, Accepted: true, Reason: "welcome"})
	s.sendTo(session, ServerInfo{
		MapName:        s.config.MapName,
		MaxPlayers:     uint8(s.config.MaxPlayers),
		CurrentPlayers: uint8(len(s.clients)),
	})

	session.log.WithField("name", req.Name).Info("client connected")
}

func (s *Server) replyUnframed(addr *net.UDPAddr, msg any) {
	if s.conn == nil {
		return
	}
	body, err := s.codec.Encode(msg)
	if err != nil {
		return
	}
	pkt := make([]byte, headerLen+len(body))
	copy(pkt[headerLen:], body)
	n, err := s.conn.WriteToUDP(pkt, addr)
	if err == nil {
		s.metrics.BytesSent(n)
	}
}

func (s *Server) sendTo(session *clientSession, msg any) {
	if s.conn == nil {
		return
	}
	body, err := s.codec.Encode(msg)
	if err != nil {
		session.log.WithError(err).Error("encode failed")
		return
	}
	for _, pkt := range session.channel.Transmit(body) {
		n, err := s.conn.WriteToUDP(pkt, session.addr)
		if err != nil {
			session.log.WithError(err).Warn("send failed")
			continue
		}
		session.bytesSent += n
		s.metrics.BytesSent(n)
	}
}

func (s *Server) broadcastAll(msg any) {
	for _, session := range s.clients {
		s.sendTo(session, msg)
	}
}

func (s *Server) dispatch(session *clientSession, msg any) {
	switch m := msg.(type) {
	case PlayerInput:
		s.queueCommand(session, UserCommand{
			ServerTime:  m.ServerTime,
			MoveForward: m.MoveForward,
			MoveRight:   m.MoveRight,
			Angle:       m.Angle,
			Buttons:     m.Buttons,
		})
	case PlayerInputBatch:
		for _, c := range m.Commands {
			s.queueCommand(session, UserCommand{
				ServerTime:  c.ServerTime,
				MoveForward: c.MoveForward,
				MoveRight:   c.MoveRight,
				Angle:       c.Angle,
				Buttons:     c.Buttons,
			})
		}
	case PlayerShoot:
		s.handleShoot(session, m)
	case Chat:
		s.broadcastAll(m)
	case Disconnect:
		s.disconnectClient(session.id, m.Reason)
	case Heartbeat:
		// last_heartbeat already refreshed in processPacket.
	default:
		s.log.WithField("type", fmt.Sprintf("%T", msg)).Debug("unhandled message kind")
	}
}

func (s *Server) queueCommand(session *clientSession, cmd UserCommand) {
	if cmd.ServerTime <= session.lastExecutedTime {
		session.log.WithError(errStaleCommand).Trace("dropped command")
		s.metrics.PacketDropped("stale-command")
		return
	}
	session.pending = append(session.pending, cmd)
	sort.Slice(session.pending, func(i, j int) bool {
		return session.pending[i].ServerTime < session.pending[j].ServerTime
	})
	// The pending queue is bounded like the client's own ring: once it
	// exceeds CmdBackup the oldest commands age out unapplied.
	if len(session.pending) > CmdBackup {
		session.pending = session.pending[len(session.pending)-CmdBackup:]
		s.metrics.CommandBufferOverflow()
	}
}

func (s *Server) handleShoot(session *clientSession, m PlayerShoot) {
	s.broadcastAll(m)
	if m.Weapon < WeaponGrenade || m.Weapon > WeaponRailgun {
		return
	}
	id := s.nextProjectileID
	s.nextProjectileID++
	velX := float32(math.Cos(float64(m.Direction))) * projectileSpeed
	velY := float32(math.Sin(float64(m.Direction))) * projectileSpeed
	now := s.clock.NowMillis()
	s.projectiles[id] = ProjectileState{
		ID:         id,
		Trajectory: NewProjectileTrajectory(m.OriginX, m.OriginY, velX, velY, m.Weapon, now),
		WeaponType: m.Weapon,
		OwnerID:    m.PlayerID,
		SpawnTime:  now,
	}
}

// RemoveProjectile despawns a projectile, e.g. on impact. Collision
// detection is external to this package; callers invoke this once they
// have decided a projectile's life is over.
func (s *Server) RemoveProjectile(id uint32) {
	delete(s.projectiles, id)
}

func (s *Server) disconnectClient(id uint16, reason string) {
	session, ok := s.clients[id]
	if !ok {
		return
	}
	delete(s.clients, id)
	delete(s.addrIndex, session.addr.String())
	s.metrics.ClientDisconnected(reason)
	s.broadcastAll(Disconnect{PlayerID: id, Reason: reason})
	session.log.WithField("reason", reason).Info("client disconnected")
}

// ClientInfo returns diagnostic bookkeeping for a connected client, or
// false if id is not currently connected. This is read-only; it exists
// for admin/diagnostic tooling external to the replicated game state.
func (s *Server) ClientInfo(id uint16) (ClientInfo, bool) {
	session, ok := s.clients[id]
	if !ok {
		return ClientInfo{}, false
	}
	now := s.clock.NowSeconds()
	return ClientInfo{
		PlayerID:       session.id,
		Name:           session.name,
		Address:        session.addr.String(),
		ConnectedSecs:  now - session.connectedAt,
		IdleSecs:       now - session.lastHeartbeat,
		BytesSent:      session.bytesSent,
		BytesReceived:  session.bytesReceived,
		PacketsDropped: session.channel.Dropped,
	}, true
}

func (s *Server) checkTimeouts(now float64) {
	var timedOut []uint16
	for id, session := range s.clients {
		if now-session.lastHeartbeat > s.config.ClientTimeout.Seconds() {
			timedOut = append(timedOut, id)
		}
	}
	for _, id := range timedOut {
		s.disconnectClient(id, "timed out")
	}
}

// runTick applies one simulation step: every client with pending commands
// replays them in order through the injected PMoveFunc; a client with
// none gets a single fallback step at the tick interval. Collisions,
// damage, and bot AI are external to this core and are not performed here.
func (s *Server) runTick(tickInterval float64) {
	fallbackDt := uint32(tickInterval * 1000)
	for _, session := range s.clients {
		if len(session.pending) == 0 {
			cmd := UserCommand{
				ServerTime: session.lastExecutedTime + fallbackDt,
				Angle:      session.state.Angle,
			}
			session.state = s.move(session.state, cmd, fallbackDt, s.collision)
			session.lastExecutedTime = cmd.ServerTime
			session.state.CommandTime = session.lastExecutedTime
			continue
		}
		for _, cmd := range session.pending {
			dt := dtMillisClamped(session.lastExecutedTime, cmd.ServerTime)
			session.state = s.move(session.state, cmd, dt, s.collision)
			session.lastExecutedTime = cmd.ServerTime
			session.state.CommandTime = session.lastExecutedTime
		}
		session.pending = session.pending[:0]
	}
}

func (s *Server) currentSnapshot() GameStateSnapshot {
	players := make([]PlayerState, 0, len(s.clients))
	for _, session := range s.clients {
		players = append(players, session.state)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerID < players[j].PlayerID })
	projectiles := make([]ProjectileState, 0, len(s.projectiles))
	for _, p := range s.projectiles {
		projectiles = append(projectiles, p)
	}
	sort.Slice(projectiles, func(i, j int) bool { return projectiles[i].ID < projectiles[j].ID })
	return GameStateSnapshot{Tick: s.tick, Players: players, Projectiles: projectiles}
}

// baselineFor returns the retained snapshot to delta against for session:
// the history entry at delta_message % 32, whenever delta compression is
// on and that slot has been populated. The outgoing GameStateDelta is
// tagged with the slot's own message number, so if the client no longer
// retains that snapshot it simply drops the delta (the baseline-missing
// path) and catches up on a later one.
func (s *Server) baselineFor(session *clientSession) (storedSnapshot, bool) {
	if !s.config.DeltaCompression {
		return storedSnapshot{}, false
	}
	idx := session.deltaMessage % snapshotBackup
	if !session.snapshotValid[idx] {
		return storedSnapshot{}, false
	}
	return session.snapshotHistory[idx], true
}

// broadcast sends every client either a full snapshot or a delta against
// its most recently acknowledged baseline, per spec's per-client baseline
// discipline.
func (s *Server) broadcast() {
	current := s.currentSnapshot()
	now := s.clock.NowSeconds()
	for _, session := range s.clients {
		msgNum := session.channel.OutgoingSequence()

		baseline, useDelta := s.baselineFor(session)

		var out any
		if useDelta {
			players, projDeltas, newProj, removedProj := BuildDelta(baseline.world, current)
			out = GameStateDelta{
				Tick:               current.Tick,
				BaseMessageNum:     baseline.messageNum,
				PlayerDeltas:       players,
				ProjectileDeltas:   projDeltas,
				NewProjectiles:     newProj,
				RemovedProjectiles: removedProj,
			}
		} else {
			out = GameStateSnapshot{Tick: current.Tick, Players: current.Players, Projectiles: current.Projectiles}
		}

		slot := msgNum % snapshotBackup
		session.snapshotHistory[slot] = storedSnapshot{messageNum: msgNum, sentTime: now, world: current}
		session.snapshotValid[slot] = true
		s.sendTo(session, out)
	}
}

// ChangeMap broadcasts a MapChange to every connected client.
func (s *Server) ChangeMap(mapName string) {
	s.config.MapName = mapName
	s.broadcastAll(MapChange{MapName: mapName})
}

// BroadcastEvent relays a gameplay event (PlayerDamaged, PlayerDied,
// PlayerGibbed, PlayerRespawn, ...) to every client unmodified. These
// messages' semantics belong entirely to the game-rules layer; this
// package only relays them.
func (s *Server) BroadcastEvent(msg any) {
	s.broadcastAll(msg)
}
