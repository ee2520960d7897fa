package signaling

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peerlounge/peerlounge/internal/auth"
	"github.com/peerlounge/peerlounge/internal/config"
	"github.com/peerlounge/peerlounge/internal/lobby"
	"github.com/peerlounge/peerlounge/internal/match"
	"github.com/peerlounge/peerlounge/internal/metrics"
	"github.com/peerlounge/peerlounge/internal/origin"
	"github.com/peerlounge/peerlounge/internal/ratelimit"
)

const wsWriteWait = 1 * time.Second

// Server is the WebSocket matchmaking endpoint.
//
// Each accepted connection runs its own read loop; outbound frames go through
// the per-client write pump. Matchmaking state transitions (pool claims, room
// creation, teardown) are serialized through matchMu so a searcher can never
// be claimed into two rooms.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	verifier auth.Verifier

	store    lobby.Store
	sessions lobby.Sessions

	registry  *match.Registry
	pool      *match.Pool
	rooms     *match.RoomStore
	scheduler *match.Scheduler

	upgrader websocket.Upgrader

	// accepted counts open sockets, joined or not, so the connection cap
	// cannot be sidestepped by clients that never send a join.
	accepted atomic.Int64

	matchMu sync.Mutex
}

func NewServer(cfg config.Config, logger *slog.Logger, m *metrics.Metrics, store lobby.Store, sessions lobby.Sessions) (*Server, error) {
	verifier, err := auth.NewVerifier(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       logger,
		metrics:   m,
		verifier:  verifier,
		store:     store,
		sessions:  sessions,
		registry:  match.NewRegistry(),
		pool:      match.NewPool(),
		rooms:     match.NewRoomStore(cfg.MaxRoomSize),
		scheduler: match.NewScheduler(cfg.MatchRetryInterval, cfg.MatchSearchTimeout),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
	return s, nil
}

// checkOrigin admits requests with no Origin header (non-browser clients) and
// otherwise applies the configured allowlist.
func (s *Server) checkOrigin(r *http.Request) bool {
	originHeader := strings.TrimSpace(r.Header.Get("Origin"))
	if originHeader == "" {
		return true
	}
	normalized, originHost, ok := origin.NormalizeHeader(originHeader)
	if !ok {
		return false
	}
	return origin.IsAllowed(normalized, originHost, r.Host, s.cfg.AllowedOrigins)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred, credErr := auth.CredentialFromRequest(s.cfg.AuthMode, r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.metrics.Inc(metrics.ConnectionsRejected)
		return
	}
	defer conn.Close()

	if credErr != nil {
		s.metrics.Inc(metrics.AuthFailure)
		writeClose(conn, websocket.ClosePolicyViolation, "missing credentials")
		return
	}
	if err := s.verifier.Verify(cred); err != nil {
		s.metrics.Inc(metrics.AuthFailure)
		writeClose(conn, websocket.ClosePolicyViolation, "invalid credentials")
		return
	}

	n := s.accepted.Add(1)
	defer s.accepted.Add(-1)

	if s.cfg.MaxConnections > 0 && n > int64(s.cfg.MaxConnections) {
		s.metrics.Inc(metrics.ConnectionsRejected)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.TextMessage, errorMessage("server_full", "server is at capacity"))
		writeClose(conn, websocket.CloseTryAgainLater, "server at capacity")
		return
	}

	s.metrics.Inc(metrics.ConnectionsAccepted)

	c := newClient(conn, s.cfg.SendQueueSize, s.cfg.WSPingInterval, s.log, s.metrics)
	go c.writePump()
	defer c.close()

	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	conn := c.conn
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	limiter := ratelimit.NewMessageLimiter(ratelimit.RealClock{}, s.cfg.MaxMessagesPerSecond)

	joined := false
	defer func() {
		if joined {
			s.teardown(c.id)
		}
	}()

	for {
		msgType, msgReader, err := conn.NextReader()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))

		if !limiter.AllowMessage() {
			s.metrics.Inc(metrics.RateLimited)
			writeClose(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		msg, err := parseSignalMessage(raw)
		if err != nil {
			s.metrics.Inc(metrics.MalformedMessages)
			s.log.Warn("ignoring malformed message", "connection_id", c.id, "err", err)
			continue
		}

		switch msg.Type {
		case messageTypeJoin:
			if joined {
				_ = c.Send(errorMessage("already_joined", "connection has already joined"))
				continue
			}
			joined = s.handleJoin(c, msg)
		case messageTypeOffer, messageTypeAnswer, messageTypeCandidate:
			s.handleRelay(c.id, msg)
		case messageTypeLeave:
			if joined {
				s.teardown(c.id)
				joined = false
			}
		}
	}
}

// handleJoin registers the connection and starts (or immediately completes)
// its search. Lobby lookups happen first so capacity failures are reported
// before any state is created.
func (s *Server) handleJoin(c *client, msg signalMessage) bool {
	lobbyRoomID := strings.TrimSpace(msg.RoomID)
	if lobbyRoomID != "" {
		// Reserve is the capacity check and the occupancy increment in one
		// step, so two joins racing for the last seat cannot both win.
		switch err := s.store.Reserve(lobbyRoomID); {
		case errors.Is(err, lobby.ErrRoomNotFound):
			s.metrics.Inc(metrics.LobbyRoomNotFound)
			_ = c.Send(errorMessage("room_not_found", "room does not exist"))
			return false
		case errors.Is(err, lobby.ErrRoomFull):
			s.metrics.Inc(metrics.LobbyRoomFull)
			_ = c.Send(errorMessage("room_full", "room is full"))
			return false
		case err != nil:
			s.metrics.Inc(metrics.LobbyStoreErrors)
			s.log.Error("lobby seat reservation failed", "room_id", lobbyRoomID, "err", err)
			_ = c.Send(errorMessage("room_unavailable", "room lookup failed"))
			return false
		}
	}

	if err := s.sessions.CreateSession(msg.UserID, msg.Username); err != nil {
		s.metrics.Inc(metrics.LobbyStoreErrors)
		s.log.Error("session create failed", "user_id", msg.UserID, "err", err)
	}

	conn := &match.Connection{
		Peer:        c,
		UserID:      msg.UserID,
		Username:    msg.Username,
		LobbyRoomID: lobbyRoomID,
		JoinedAt:    time.Now(),
	}
	s.registry.Register(conn)
	s.log.Info("peer joined",
		"connection_id", c.id,
		"user_id", msg.UserID,
		"lobby_room_id", lobbyRoomID,
	)

	s.matchMu.Lock()
	s.pool.Enqueue(conn)
	matched := s.tryMatchLocked(c.id)
	s.matchMu.Unlock()
	if matched {
		return true
	}

	_ = c.Send(waitingMessage("searching for a partner", nil))

	s.scheduler.Start(c.id,
		func() {
			s.matchMu.Lock()
			s.tryMatchLocked(c.id)
			s.matchMu.Unlock()
		},
		func() {
			s.metrics.Inc(metrics.SearchTimeouts)
			available := false
			_ = c.Send(waitingMessage("no partner available yet, still searching", &available))
		},
	)
	return true
}

// tryMatchLocked attempts to form a room around connID. Caller holds matchMu.
func (s *Server) tryMatchLocked(connID string) bool {
	members := s.pool.TryMatch(connID, s.cfg.MaxRoomSize)
	if members == nil {
		return false
	}

	room, err := s.rooms.Create(members)
	if err != nil {
		// Should not happen: pool claims are exclusive. Put the searchers back.
		s.log.Error("room creation failed", "err", err)
		for _, m := range members {
			s.pool.Enqueue(m)
		}
		return false
	}

	s.metrics.Inc(metrics.RoomsCreated)
	s.metrics.Add(metrics.PeersMatched, uint64(len(members)))

	for _, m := range members {
		s.scheduler.Stop(m.ID())

		peers := make([]peerInfo, 0, len(members)-1)
		for _, other := range members {
			if other.ID() == m.ID() {
				continue
			}
			peers = append(peers, peerInfo{UserID: other.UserID, Username: other.Username})
		}
		_ = m.Send(matchedMessage(room.ID, peers))
	}

	s.log.Info("room created", "room_id", room.ID, "members", len(members))
	return true
}

// handleRelay forwards an opaque signaling payload to room members. The
// sender must be in a room and any explicit target must share it; violations
// drop the frame without a client-visible error.
func (s *Server) handleRelay(senderConnID string, msg signalMessage) {
	roomID, ok := s.rooms.RoomOf(senderConnID)
	if !ok {
		s.metrics.Inc(metrics.RelayDropped)
		s.log.Warn("dropping relay from peer without a room", "connection_id", senderConnID, "message_type", msg.Type)
		return
	}

	out := encodeMessage(signalMessage{
		Type: msg.Type,
		From: senderConnID,
		Data: msg.Data,
	})

	if msg.To != "" {
		target, err := s.rooms.Member(roomID, msg.To)
		if err != nil {
			s.metrics.Inc(metrics.RelayDropped)
			s.log.Warn("dropping relay to peer outside room",
				"connection_id", senderConnID,
				"target_connection_id", msg.To,
				"room_id", roomID,
			)
			return
		}
		_ = target.Send(out)
		s.metrics.Inc(metrics.SignalsRelayed)
		return
	}

	if err := s.rooms.Broadcast(roomID, out, senderConnID); err != nil {
		s.metrics.Inc(metrics.RelayDropped)
		s.log.Warn("relay broadcast failed", "room_id", roomID, "err", err)
		return
	}
	s.metrics.Inc(metrics.SignalsRelayed)
}

// teardown runs the lifecycle exit sequence for a joined connection: stop the
// search, release the lobby seat, leave the room (notifying remaining
// members), then drop the registration. An in-band leave runs the same
// sequence; the connection stays open and may join again.
func (s *Server) teardown(connID string) {
	conn, ok := s.registry.Get(connID)
	if !ok {
		return
	}

	s.scheduler.Stop(connID)
	s.matchMu.Lock()
	s.pool.Remove(connID)
	s.matchMu.Unlock()

	if conn.LobbyRoomID != "" {
		if err := s.store.UpdateOccupancy(conn.LobbyRoomID, -1); err != nil {
			s.metrics.Inc(metrics.LobbyStoreErrors)
			s.log.Error("lobby occupancy update failed", "room_id", conn.LobbyRoomID, "err", err)
		}
	}

	if roomID, inRoom := s.rooms.RoomOf(connID); inRoom {
		remaining, deleted, err := s.rooms.RemoveMember(roomID, connID)
		if err != nil {
			s.log.Error("room removal failed", "room_id", roomID, "connection_id", connID, "err", err)
		} else if deleted {
			s.metrics.Inc(metrics.RoomsDeleted)
			s.log.Info("room deleted", "room_id", roomID)
		} else {
			out := userLeftMessage(conn.UserID, conn.Username)
			for _, m := range remaining {
				_ = m.Send(out)
			}
		}
	}

	if err := s.sessions.RemoveSession(conn.UserID); err != nil {
		s.metrics.Inc(metrics.LobbyStoreErrors)
		s.log.Error("session remove failed", "user_id", conn.UserID, "err", err)
	}

	s.registry.Unregister(connID)
	s.log.Info("peer left", "connection_id", connID, "user_id", conn.UserID)
}

// Stats is the live state summary served by the stats endpoint.
type Stats struct {
	Connections int `json:"connections"`
	Waiting     int `json:"waiting"`
	Rooms       int `json:"rooms"`
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.registry.Len(),
		Waiting:     s.pool.Len(),
		Rooms:       s.rooms.Count(),
	}
}

// Close stops all retry loops. In-flight connections are torn down by the
// HTTP server's shutdown.
func (s *Server) Close() {
	s.scheduler.StopAll()
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}
