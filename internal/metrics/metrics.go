package metrics

import "sync"

// Event names incremented by the matchmaking and signaling layers.
const (
	ConnectionsAccepted = "connections_accepted"
	ConnectionsRejected = "connections_rejected"
	AuthFailure         = "auth_failure"
	RateLimited         = "rate_limited"
	MalformedMessages   = "malformed_messages"

	RoomsCreated   = "rooms_created"
	RoomsDeleted   = "rooms_deleted"
	PeersMatched   = "peers_matched"
	SearchTimeouts = "search_timeouts"

	SignalsRelayed    = "signals_relayed"
	RelayDropped      = "relay_dropped"
	SendQueueOverflow = "send_queue_overflow"

	LobbyRoomFull     = "lobby_room_full"
	LobbyRoomNotFound = "lobby_room_not_found"
	LobbyStoreErrors  = "lobby_store_errors"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// Counters are exposed via the Prometheus text handler in this package; they
// also keep matching/enforcement logic testable without scraping.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
