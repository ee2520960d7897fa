// Package match implements peer matchmaking: a registry of live connections,
// a waiting pool grouped by affinity, room bookkeeping for matched peers, and
// a per-searcher retry scheduler.
package match

import "time"

// Peer is the transport half of a connection. Send enqueues a pre-encoded
// frame for delivery and must not block; the signaling layer owns encoding
// and the write pump.
type Peer interface {
	ID() string
	Send(data []byte) error
}

// Connection is one live signaling connection plus the identity it announced.
type Connection struct {
	Peer

	UserID   string
	Username string

	// LobbyRoomID is the lobby room the user asked to join, if any. It doubles
	// as the matching affinity so lobby members only match each other.
	LobbyRoomID string

	JoinedAt time.Time
}

// Affinity returns the pool bucket this connection matches within. Empty means
// open matchmaking.
func (c *Connection) Affinity() string {
	return c.LobbyRoomID
}
