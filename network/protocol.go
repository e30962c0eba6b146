package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> server events.
const (
	EventCreateRoom     = "createRoom"
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSelectSong     = "selectSong"
	EventPlayerReady    = "playerReady"
	EventPlayerMovement = "playerMovement"
	EventScoreUpdate    = "scoreUpdate"
	EventAvatarUpdate   = "avatarUpdate"
)

// Server -> client events.
const (
	EventRoomJoined          = "roomJoined"
	EventNewPlayer           = "newPlayer"
	EventPlayerMoved         = "playerMoved"
	EventPlayerScoreUpdated  = "playerScoreUpdated"
	EventPlayerAvatarUpdated = "playerAvatarUpdated"
	EventPlayerDisconnected  = "playerDisconnected"
	EventSongSelected        = "songSelected"
	EventPlayerReadyStatus   = "playerReady"
	EventCountdown           = "countdown"
	EventStartSong           = "startSong"
	EventError               = "error"
)

var ErrMalformedMessage = errors.New("malformed message")

// Message is one decoded envelope: {"event": "...", "data": ...}.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode parses a frame into a Message. Any failure wraps ErrMalformedMessage.
func Decode(frame []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedMessage)
	}
	return &msg, nil
}

// Frame wraps an already encoded payload in an envelope.
func Frame(event string, data []byte) []byte {
	name, _ := json.Marshal(event)

	var buf bytes.Buffer
	buf.Grow(len(name) + len(data) + 20)
	buf.WriteString(`{"event":`)
	buf.Write(name)
	if len(data) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Encode marshals payload and wraps it in an envelope.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return Frame(event, data), nil
}
