package models

import (
	"encoding/json"
	"testing"
)

func TestJoinRoomRequest_AcceptsLegacyString(t *testing.T) {
	var req JoinRoomRequest
	if err := json.Unmarshal([]byte(`"abcd"`), &req); err != nil {
		t.Fatalf("Expected bare string payload to decode, got %v", err)
	}
	if req.RoomCode != "abcd" || req.PlayerMode != "" {
		t.Errorf("Unexpected request %+v", req)
	}
}

func TestJoinRoomRequest_AcceptsObject(t *testing.T) {
	var req JoinRoomRequest
	payload := `{"roomCode":"WXYZ","playerMode":"touch","avatar":{"skinTone":"dark"}}`
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("Expected object payload to decode, got %v", err)
	}
	if req.RoomCode != "WXYZ" || req.PlayerMode != "touch" {
		t.Errorf("Unexpected request %+v", req)
	}
	if string(req.Avatar) != `{"skinTone":"dark"}` {
		t.Errorf("Expected avatar to pass through unchanged, got %s", req.Avatar)
	}
}

func TestJoinRoomRequest_RejectsOtherShapes(t *testing.T) {
	var req JoinRoomRequest
	if err := json.Unmarshal([]byte(`42`), &req); err == nil {
		t.Error("Expected a numeric payload to be rejected")
	}
}

func TestSong_NullIsUnset(t *testing.T) {
	var msg struct {
		Song Song `json:"song"`
	}
	if err := json.Unmarshal([]byte(`{"song":null}`), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !msg.Song.IsZero() {
		t.Error("Expected null song to be unset")
	}

	out, err := json.Marshal(RoomJoinedMessage{Code: "ABCD"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := decoded["song"]; !ok || v != nil {
		t.Errorf("Expected song to be encoded as null, got %v", v)
	}
}

func TestSong_Info(t *testing.T) {
	song := Song(`{"id":"abc","version":3,"difficulty":"Expert","mode":"punch"}`)
	info := song.Info()
	if info.ID != "abc" || info.Version != "3" || info.Difficulty != "Expert" || info.Mode != "punch" {
		t.Errorf("Unexpected info %+v", info)
	}
	if (Song(`not json`)).Info() != (SongInfo{}) {
		t.Error("Expected undecodable song to yield empty info")
	}
}

func TestGormRound_RoundTrip(t *testing.T) {
	rec := RoundRecord{RoomCode: "ABCD", Mode: "classic", Song: Song(`{"id":"s1"}`), PlayerIDs: []string{"a", "b"}}
	row, err := NewGormRound(rec)
	if err != nil {
		t.Fatalf("NewGormRound: %v", err)
	}
	if row.SongID != "s1" {
		t.Errorf("Expected song id s1, got %q", row.SongID)
	}
	back, err := row.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if back.RoomCode != "ABCD" || len(back.PlayerIDs) != 2 || string(back.Song) != `{"id":"s1"}` {
		t.Errorf("Unexpected record %+v", back)
	}
}
