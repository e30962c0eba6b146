// models/models.go
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Vec3 is a position or euler rotation as reported by a client.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandPose is one tracked controller.
type HandPose struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

type Hands struct {
	Left  *HandPose `json:"left,omitempty"`
	Right *HandPose `json:"right,omitempty"`
}

// Transform is the last pose a client reported. It is stored and relayed as-is.
type Transform struct {
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Hands    *Hands `json:"hands,omitempty"`
}

// Song is an opaque activity descriptor chosen by a room's host.
type Song json.RawMessage

// IsZero reports whether no song is set. A JSON null counts as unset.
func (s Song) IsZero() bool {
	trimmed := bytes.TrimSpace(s)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (s Song) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	return s, nil
}

func (s *Song) UnmarshalJSON(data []byte) error {
	*s = append((*s)[0:0], data...)
	return nil
}

// SongInfo is the subset of a song descriptor the server looks at for logs
// and round history. Missing fields are left empty.
type SongInfo struct {
	ID         string `json:"id"`
	Version    string `json:"version"`
	Difficulty string `json:"difficulty"`
	Mode       string `json:"mode"`
}

// Info decodes what it can from the descriptor.
func (s Song) Info() SongInfo {
	var info SongInfo
	if s.IsZero() {
		return info
	}
	var raw map[string]any
	if err := json.Unmarshal(s, &raw); err != nil {
		return info
	}
	info.ID = stringField(raw["id"])
	info.Version = stringField(raw["version"])
	info.Difficulty = stringField(raw["difficulty"])
	info.Mode = stringField(raw["mode"])
	return info
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Avatar is the cosmetic record (skin tone, hair style and color, accessory,
// body color). The server never interprets it.
type Avatar json.RawMessage

func (a Avatar) IsZero() bool {
	return Song(a).IsZero()
}

func (a Avatar) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return a, nil
}

func (a *Avatar) UnmarshalJSON(data []byte) error {
	*a = append((*a)[0:0], data...)
	return nil
}

// PlayerState is the wire form of a player (newPlayer, roomJoined.players).
type PlayerState struct {
	ID       string `json:"id"`
	Room     string `json:"room"`
	Mode     string `json:"mode,omitempty"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Hands    *Hands `json:"hands,omitempty"`
	Score    int    `json:"score"`
	Combo    int    `json:"combo"`
	Ready    bool   `json:"ready"`
	Avatar   Avatar `json:"avatar,omitempty"`
}

// RoomSummary is the read-only view served over HTTP and RPC.
type RoomSummary struct {
	Code    string   `json:"code"`
	Mode    string   `json:"mode"`
	Phase   string   `json:"phase"`
	HostID  string   `json:"hostId"`
	Players []string `json:"players"`
	Ready   []string `json:"ready"`
	Song    Song     `json:"song"`
}

// RoundRecord is written once per started round.
type RoundRecord struct {
	RoomCode  string    `json:"room_code"`
	Mode      string    `json:"mode"`
	Song      Song      `json:"song"`
	PlayerIDs []string  `json:"player_ids"`
	StartedAt time.Time `json:"started_at"`
}
