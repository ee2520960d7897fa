// Package lobby tracks named rooms that exist independently of matchmaking.
//
// A client may ask to join one of these rooms directly instead of searching
// for strangers; the lobby answers capacity questions and keeps occupancy
// counts while the signaling layer owns the actual peer wiring.
package lobby

import "errors"

var (
	ErrRoomNotFound = errors.New("lobby: room not found")
	ErrRoomFull     = errors.New("lobby: room full")
)

type Room struct {
	ID               string
	Type             string
	Password         string
	CurrentOccupancy int
	MaxOccupancy     int
}

func (r Room) Full() bool {
	return r.MaxOccupancy > 0 && r.CurrentOccupancy >= r.MaxOccupancy
}

// Store is the lobby room directory.
//
// Reserve checks capacity and increments occupancy as one atomic step, so
// two concurrent joins cannot both take the last seat; it returns
// ErrRoomNotFound or ErrRoomFull. UpdateOccupancy applies a delta;
// implementations floor the result at 0.
type Store interface {
	GetRoom(id string) (Room, error)
	Reserve(id string) error
	UpdateOccupancy(id string, delta int) error
}

// Sessions records which users are currently connected. Best-effort
// bookkeeping: errors are logged by callers, never fatal.
type Sessions interface {
	CreateSession(userID, username string) error
	RemoveSession(userID string) error
}
