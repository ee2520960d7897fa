package lobby

import "sync"

// MemStore is the in-memory Store and Sessions implementation used by the
// server binary and tests.
type MemStore struct {
	mu       sync.Mutex
	rooms    map[string]Room
	sessions map[string]string // userID -> username
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms:    make(map[string]Room),
		sessions: make(map[string]string),
	}
}

// PutRoom creates or replaces a lobby room.
func (s *MemStore) PutRoom(room Room) {
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
}

func (s *MemStore) DeleteRoom(id string) {
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
}

func (s *MemStore) GetRoom(id string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

// Reserve takes one seat in the room, failing when it does not exist or is
// already full. The check and increment happen under one lock.
func (s *MemStore) Reserve(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Full() {
		return ErrRoomFull
	}
	room.CurrentOccupancy++
	s.rooms[id] = room
	return nil
}

func (s *MemStore) UpdateOccupancy(id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	room.CurrentOccupancy += delta
	if room.CurrentOccupancy < 0 {
		room.CurrentOccupancy = 0
	}
	s.rooms[id] = room
	return nil
}

func (s *MemStore) CreateSession(userID, username string) error {
	s.mu.Lock()
	s.sessions[userID] = username
	s.mu.Unlock()
	return nil
}

func (s *MemStore) RemoveSession(userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// SessionCount reports how many users currently hold sessions.
func (s *MemStore) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
