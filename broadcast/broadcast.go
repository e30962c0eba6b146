// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"
	"errors"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/room"
	"github.com/wfunc/beatroom/session"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not connected")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(code string, event string, payload interface{}) error
	BroadcastToRoomExcept(code, exceptID string, event string, payload interface{}) error
	SendToPlayer(playerID string, event string, payload interface{}) error
}

// RoomBroadcaster resolves audiences against the live room registry and the
// connected sessions. Each payload is marshalled once per call; members are
// written in join order.
type RoomBroadcaster struct {
	rooms    *room.Registry
	sessions *session.Manager
}

func NewRoomBroadcaster(rooms *room.Registry, sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		rooms:    rooms,
		sessions: sessions,
	}
}

// BroadcastToRoom sends to every member, sender included.
func (b *RoomBroadcaster) BroadcastToRoom(code string, event string, payload interface{}) error {
	return b.BroadcastToRoomExcept(code, "", event, payload)
}

// BroadcastToRoomExcept sends to every member but exceptID.
func (b *RoomBroadcaster) BroadcastToRoomExcept(code, exceptID string, event string, payload interface{}) error {
	r, exists := b.rooms.Lookup(code)
	if !exists {
		return ErrRoomNotFound
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for _, id := range r.Members() {
		if id == exceptID {
			continue
		}
		b.deliver(id, event, data)
	}
	return nil
}

// SendToPlayer sends to a single connection.
func (b *RoomBroadcaster) SendToPlayer(playerID string, event string, payload interface{}) error {
	if _, exists := b.sessions.Get(playerID); !exists {
		return ErrPlayerNotFound
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.deliver(playerID, event, data)
	return nil
}

func (b *RoomBroadcaster) deliver(playerID, event string, data []byte) {
	s, exists := b.sessions.Get(playerID)
	if !exists {
		return
	}
	if err := s.Send(event, data); err != nil {
		// 发送失败不影响其他玩家; the read loop notices a dead socket on its own
		logger.Log.Warnf("send %s to %s failed: %v", event, playerID, err)
	}
}
