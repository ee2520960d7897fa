package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type messageType string

const (
	messageTypeJoin      messageType = "join"
	messageTypeWaiting   messageType = "waiting"
	messageTypeMatched   messageType = "matched"
	messageTypeOffer     messageType = "offer"
	messageTypeAnswer    messageType = "answer"
	messageTypeCandidate messageType = "ice-candidate"
	messageTypeLeave     messageType = "leave"
	messageTypeUserLeft  messageType = "user-left"
	messageTypeError     messageType = "error"
)

// peerInfo is the identity view of a room member as sent to other members.
type peerInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type signalMessage struct {
	Type messageType `json:"type"`

	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	RoomID   string `json:"roomId,omitempty"`

	// To/From address relay envelopes by connection id. Data is never
	// inspected by the server.
	To   string          `json:"to,omitempty"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`

	Peers     []peerInfo `json:"peers,omitempty"`
	Available *bool      `json:"available,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func parseSignalMessage(data []byte) (signalMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg signalMessage
	if err := dec.Decode(&msg); err != nil {
		return signalMessage{}, err
	}
	if err := msg.validate(); err != nil {
		return signalMessage{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return signalMessage{}, fmt.Errorf("unexpected trailing data")
	}
	return msg, nil
}

// validate accepts only client-originated messages; server-emitted types
// arriving inbound are rejected like any other malformed frame.
func (m signalMessage) validate() error {
	switch m.Type {
	case messageTypeJoin:
		if m.UserID == "" {
			return fmt.Errorf("join message missing userId")
		}
		if m.Username == "" {
			return fmt.Errorf("join message missing username")
		}
		if m.To != "" || m.From != "" || m.Data != nil || m.Peers != nil || m.Available != nil || m.Code != "" || m.Message != "" {
			return fmt.Errorf("join message has unexpected fields")
		}
	case messageTypeOffer, messageTypeAnswer, messageTypeCandidate:
		if m.Data == nil {
			return fmt.Errorf("%s message missing data", m.Type)
		}
		if m.UserID != "" || m.Username != "" || m.RoomID != "" || m.From != "" || m.Peers != nil || m.Available != nil || m.Code != "" || m.Message != "" {
			return fmt.Errorf("%s message has unexpected fields", m.Type)
		}
	case messageTypeLeave:
		if m.UserID != "" || m.Username != "" || m.RoomID != "" || m.To != "" || m.From != "" || m.Data != nil || m.Peers != nil || m.Available != nil || m.Code != "" || m.Message != "" {
			return fmt.Errorf("leave message has unexpected fields")
		}
	case messageTypeWaiting, messageTypeMatched, messageTypeUserLeft, messageTypeError:
		return fmt.Errorf("message type %q is server-originated", m.Type)
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}

func encodeMessage(msg signalMessage) []byte {
	// The message structs contain only marshal-safe fields.
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return data
}

func errorMessage(code, message string) []byte {
	return encodeMessage(signalMessage{Type: messageTypeError, Code: code, Message: message})
}

func waitingMessage(message string, available *bool) []byte {
	return encodeMessage(signalMessage{Type: messageTypeWaiting, Message: message, Available: available})
}

func matchedMessage(roomID string, peers []peerInfo) []byte {
	return encodeMessage(signalMessage{Type: messageTypeMatched, RoomID: roomID, Peers: peers})
}

func userLeftMessage(userID, username string) []byte {
	return encodeMessage(signalMessage{Type: messageTypeUserLeft, UserID: userID, Username: username})
}
