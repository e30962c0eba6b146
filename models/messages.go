package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Client -> server payloads.

type CreateRoomRequest struct {
	Mode   string `json:"mode"`
	Avatar Avatar `json:"avatar,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerMode string `json:"playerMode,omitempty"`
	Avatar     Avatar `json:"avatar,omitempty"`
}

var errJoinPayload = errors.New("joinRoom payload must be an object or a room code string")

// UnmarshalJSON accepts both {"roomCode": ...} and a bare "CODE" string.
func (r *JoinRoomRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errJoinPayload
	}
	if data[0] == '"' {
		*r = JoinRoomRequest{}
		return json.Unmarshal(data, &r.RoomCode)
	}
	if data[0] != '{' {
		return errJoinPayload
	}
	type plain JoinRoomRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = JoinRoomRequest(p)
	return nil
}

type ScoreUpdateRequest struct {
	Score int `json:"score"`
	Combo int `json:"combo"`
}

// Server -> client payloads.

type RoomJoinedMessage struct {
	Code    string                 `json:"code"`
	Mode    string                 `json:"mode"`
	Players map[string]PlayerState `json:"players"`
	IsHost  bool                   `json:"isHost"`
	Song    Song                   `json:"song"`
}

type PlayerMovedMessage struct {
	ID       string `json:"id"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Hands    *Hands `json:"hands,omitempty"`
}

type PlayerScoreMessage struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	Combo int    `json:"combo"`
}

type PlayerAvatarMessage struct {
	ID     string `json:"id"`
	Avatar Avatar `json:"avatar"`
}

type PlayerReadyMessage struct {
	PlayerID     string `json:"playerId"`
	ReadyCount   int    `json:"readyCount"`
	TotalPlayers int    `json:"totalPlayers"`
}

type CountdownMessage struct {
	Count int `json:"count"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
