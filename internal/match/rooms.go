package match

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRoomSize       = errors.New("match: room needs between 2 and max members")
	ErrAlreadyInRoom  = errors.New("match: connection already in a room")
	ErrRoomNotFound   = errors.New("match: room not found")
	ErrMemberNotFound = errors.New("match: member not in room")
)

// Room is a set of matched peers relaying signaling to each other.
type Room struct {
	ID        string
	CreatedAt time.Time

	members map[string]*Connection
}

// RoomStore owns all active rooms and the connection -> room index.
type RoomStore struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	memberRoom map[string]string // connID -> roomID

	maxRoomSize int

	now func() time.Time
}

func NewRoomStore(maxRoomSize int) *RoomStore {
	return &RoomStore{
		rooms:       make(map[string]*Room),
		memberRoom:  make(map[string]string),
		maxRoomSize: maxRoomSize,
		now:         time.Now,
	}
}

// Create makes a room from matched connections. Each member must not already
// be in a room.
func (s *RoomStore) Create(members []*Connection) (*Room, error) {
	if len(members) < 2 || len(members) > s.maxRoomSize {
		return nil, ErrRoomSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range members {
		if _, ok := s.memberRoom[conn.ID()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInRoom, conn.ID())
		}
	}

	room := &Room{
		ID:        newRoomID(s.now()),
		CreatedAt: s.now(),
		members:   make(map[string]*Connection, len(members)),
	}
	for _, conn := range members {
		room.members[conn.ID()] = conn
		s.memberRoom[conn.ID()] = room.ID
	}
	s.rooms[room.ID] = room
	return room, nil
}

// RoomOf returns the room ID the connection currently belongs to.
func (s *RoomStore) RoomOf(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roomID, ok := s.memberRoom[connID]
	return roomID, ok
}

// Members returns a snapshot of the room's members.
func (s *RoomStore) Members(roomID string) ([]*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]*Connection, 0, len(room.members))
	for _, conn := range room.members {
		out = append(out, conn)
	}
	return out, nil
}

// Member returns the named member of the room.
func (s *RoomStore) Member(roomID, connID string) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	conn, ok := room.members[connID]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return conn, nil
}

// RemoveMember takes the connection out of its room. It returns the remaining
// members and whether the room was deleted (a room is removed the moment it
// becomes empty).
func (s *RoomStore) RemoveMember(roomID, connID string) (remaining []*Connection, deleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	if _, ok := room.members[connID]; !ok {
		return nil, false, ErrMemberNotFound
	}

	delete(room.members, connID)
	delete(s.memberRoom, connID)

	if len(room.members) == 0 {
		delete(s.rooms, roomID)
		return nil, true, nil
	}

	remaining = make([]*Connection, 0, len(room.members))
	for _, conn := range room.members {
		remaining = append(remaining, conn)
	}
	return remaining, false, nil
}

// Broadcast sends a pre-encoded frame to every room member except
// excludeConnID. Send failures are skipped; a slow or dead member must not
// stall the others.
func (s *RoomStore) Broadcast(roomID string, data []byte, excludeConnID string) error {
	members, err := s.Members(roomID)
	if err != nil {
		return err
	}
	for _, conn := range members {
		if conn.ID() == excludeConnID {
			continue
		}
		_ = conn.Send(data)
	}
	return nil
}

func (s *RoomStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// newRoomID builds a sortable room ID: millisecond timestamp plus a short
// random suffix to break same-millisecond collisions.
func newRoomID(now time.Time) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("room-%d-%s", now.UnixMilli(), suffix)
}
