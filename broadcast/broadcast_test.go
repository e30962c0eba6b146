package broadcast

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/wfunc/beatroom/network"
	"github.com/wfunc/beatroom/room"
	"github.com/wfunc/beatroom/session"
)

type sent struct {
	event string
	data  string
}

// MockConnection records every frame it is asked to send.
type MockConnection struct {
	frames []sent
	fail   bool
}

func (m *MockConnection) Send(event string, data []byte) error {
	if m.fail {
		return network.ErrSendBufferFull
	}
	m.frames = append(m.frames, sent{event, string(data)})
	return nil
}
func (m *MockConnection) Close() error                           { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                   { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)    {}
func (m *MockConnection) ReadMessage() (*network.Message, error) { return nil, nil }

type fixture struct {
	router *RoomBroadcaster
	room   *room.Room
	conns  map[string]*MockConnection
}

func newFixture(t *testing.T, members ...string) *fixture {
	t.Helper()
	registry := room.NewRegistry(room.WithCodeGenerator(func() string { return "ABCD" }))
	sessions := session.NewManager()
	router := NewRoomBroadcaster(registry, sessions)

	r, err := registry.Create("classic", members[0], router)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	conns := make(map[string]*MockConnection)
	for _, id := range members {
		conns[id] = &MockConnection{}
		sessions.Add(session.NewSession(id, conns[id]))
		r.AddMember(id)
	}
	return &fixture{router: router, room: r, conns: conns}
}

func TestBroadcastToRoom_IncludesEveryone(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	if err := f.router.BroadcastToRoom("ABCD", network.EventCountdown, map[string]int{"count": 3}); err != nil {
		t.Fatalf("BroadcastToRoom failed: %v", err)
	}
	for id, c := range f.conns {
		if len(c.frames) != 1 || c.frames[0].event != network.EventCountdown || c.frames[0].data != `{"count":3}` {
			t.Errorf("%s: unexpected frames %v", id, c.frames)
		}
	}
}

func TestBroadcastToRoomExcept_SkipsSender(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	f.router.BroadcastToRoomExcept("ABCD", "b", network.EventPlayerMoved, map[string]string{"id": "b"})
	if len(f.conns["b"].frames) != 0 {
		t.Errorf("Sender should not receive its own update, got %v", f.conns["b"].frames)
	}
	if len(f.conns["a"].frames) != 1 || len(f.conns["c"].frames) != 1 {
		t.Error("Other members should receive the update")
	}
}

func TestBroadcastToRoom_UnknownRoom(t *testing.T) {
	f := newFixture(t, "a")
	if err := f.router.BroadcastToRoom("ZZZZ", network.EventCountdown, nil); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestBroadcastToRoom_FailedSendDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.conns["a"].fail = true

	if err := f.router.BroadcastToRoom("ABCD", network.EventStartSong, json.RawMessage(`{"id":"x"}`)); err != nil {
		t.Fatalf("BroadcastToRoom failed: %v", err)
	}
	if len(f.conns["b"].frames) != 1 {
		t.Error("A failing member should not prevent delivery to the rest")
	}
}

func TestSendToPlayer(t *testing.T) {
	f := newFixture(t, "a", "b")

	if err := f.router.SendToPlayer("a", network.EventError, map[string]string{"message": "nope"}); err != nil {
		t.Fatalf("SendToPlayer failed: %v", err)
	}
	if len(f.conns["a"].frames) != 1 || len(f.conns["b"].frames) != 0 {
		t.Error("SendToPlayer should reach only the target")
	}
	if err := f.router.SendToPlayer("ghost", network.EventError, nil); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("Expected ErrPlayerNotFound, got %v", err)
	}
}

func TestBroadcast_PreservesEmissionOrder(t *testing.T) {
	f := newFixture(t, "a")

	for i := 3; i >= 0; i-- {
		f.router.BroadcastToRoom("ABCD", network.EventCountdown, map[string]int{"count": i})
	}
	f.router.BroadcastToRoom("ABCD", network.EventStartSong, json.RawMessage(`{"id":"x"}`))

	frames := f.conns["a"].frames
	if len(frames) != 5 || frames[4].event != network.EventStartSong {
		t.Fatalf("Unexpected frames %v", frames)
	}
	for i, want := range []string{`{"count":3}`, `{"count":2}`, `{"count":1}`, `{"count":0}`} {
		if frames[i].data != want {
			t.Errorf("frame %d: expected %s, got %s", i, want, frames[i].data)
		}
	}
}
