// player/player.go
package player

import (
	"sync"

	"github.com/wfunc/beatroom/models"
)

// Player is the per-connection participant record.
type Player struct {
	ID        string
	RoomCode  string
	Mode      string
	Transform models.Transform
	Score     int
	Combo     int
	Ready     bool
	Avatar    models.Avatar
}

// InRoom reports whether the player is attached to a room.
func (p *Player) InRoom() bool {
	return p.RoomCode != ""
}

// State returns the wire form of the player.
func (p *Player) State() models.PlayerState {
	return models.PlayerState{
		ID:       p.ID,
		Room:     p.RoomCode,
		Mode:     p.Mode,
		Position: p.Transform.Position,
		Rotation: p.Transform.Rotation,
		Hands:    p.Transform.Hands,
		Score:    p.Score,
		Combo:    p.Combo,
		Ready:    p.Ready,
		Avatar:   p.Avatar,
	}
}

// resetRound puts pose, score and ready back to their defaults.
func (p *Player) resetRound() {
	p.Transform = models.Transform{}
	p.Score = 0
	p.Combo = 0
	p.Ready = false
}

// Directory 管理所有在线玩家
type Directory struct {
	players map[string]*Player
	mutex   sync.RWMutex
}

func NewDirectory() *Directory {
	return &Directory{
		players: make(map[string]*Player),
	}
}

// Create registers a player at the origin with zero score, not ready and in
// no room. An existing record with the same id is replaced.
func (d *Directory) Create(id string) *Player {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	p := &Player{ID: id}
	d.players[id] = p
	return p
}

func (d *Directory) Get(id string) (*Player, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	p, exists := d.players[id]
	return p, exists
}

// UpdateTransform overwrites the last reported pose. Nothing is validated.
func (d *Directory) UpdateTransform(id string, t models.Transform) bool {
	return d.update(id, func(p *Player) { p.Transform = t })
}

func (d *Directory) UpdateScore(id string, score, combo int) bool {
	return d.update(id, func(p *Player) {
		p.Score = score
		p.Combo = combo
	})
}

func (d *Directory) UpdateAvatar(id string, avatar models.Avatar) bool {
	return d.update(id, func(p *Player) { p.Avatar = avatar })
}

func (d *Directory) SetReady(id string, ready bool) bool {
	return d.update(id, func(p *Player) { p.Ready = ready })
}

// Attach binds the player to a room and resets the per-round fields.
func (d *Directory) Attach(id, roomCode, mode string) bool {
	return d.update(id, func(p *Player) {
		p.RoomCode = roomCode
		p.Mode = mode
		p.resetRound()
	})
}

// Detach clears the player's room binding and ready flag.
func (d *Directory) Detach(id string) bool {
	return d.update(id, func(p *Player) {
		p.RoomCode = ""
		p.Ready = false
	})
}

// Destroy removes the record. Callers detach the player from its room first.
func (d *Directory) Destroy(id string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.players, id)
}

func (d *Directory) Count() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.players)
}

// States returns wire snapshots for ids, skipping unknown ones.
func (d *Directory) States(ids []string) map[string]models.PlayerState {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	states := make(map[string]models.PlayerState, len(ids))
	for _, id := range ids {
		if p, ok := d.players[id]; ok {
			states[id] = p.State()
		}
	}
	return states
}

func (d *Directory) update(id string, fn func(p *Player)) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	p, exists := d.players[id]
	if !exists {
		return false
	}
	fn(p)
	return true
}
