// Package signaling implements the WebSocket matchmaking and relay surface
// used by browser clients.
//
// A client joins with an identity (and optionally a lobby room), is matched
// with waiting peers into a room, and then exchanges opaque WebRTC signaling
// payloads with its room members through the relay.
package signaling
