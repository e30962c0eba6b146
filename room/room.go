// room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/state"
)

// ErrCodeSpaceExhausted is returned when no free code was found.
var ErrCodeSpaceExhausted = errors.New("no free room code")

// Room is one group of players sharing a code, a mode, a host and a
// song/ready/countdown cycle.
type Room struct {
	Code         string
	Mode         string
	HostID       string // fixed at creation, never migrates
	CreatedAt    time.Time
	StateMachine state.StateMachine
	members      []string // join order
	ready        []string // subset of members, ready order
	song         models.Song
	broadcaster  Broadcaster // Use the interface, not the concrete type
	playerMutex  sync.RWMutex
}

// NewRoom 创建一个新房间
func NewRoom(code, mode, hostID string, broadcaster Broadcaster) *Room {
	room := &Room{
		Code:        code,
		Mode:        mode,
		HostID:      hostID,
		CreatedAt:   time.Now(),
		broadcaster: broadcaster,
	}

	sm := state.NewBaseStateMachine(state.NewLobbyState(room))
	sm.AddTransition(state.PhaseLobby, state.PhaseCountdown, room.HasSong)
	sm.AddTransition(state.PhaseSongSelected, state.PhaseCountdown, room.HasSong)
	// at most one countdown per room at a time
	sm.AddTransition(state.PhaseCountdown, state.PhaseCountdown, func() bool { return false })
	room.StateMachine = sm

	return room
}

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetCode() string {
	return r.Code
}

// ChangeState 改变房间的状态机状态
func (r *Room) ChangeState(newState state.State) error {
	return r.StateMachine.ChangeState(newState)
}

// Broadcast sends an event to every member.
func (r *Room) Broadcast(event string, payload interface{}) error {
	return r.broadcaster.BroadcastToRoom(r.Code, event, payload)
}

// --- 房间核心逻辑 ---

// Phase is the id of the current lifecycle state.
func (r *Room) Phase() string {
	return r.StateMachine.GetCurrentState().GetID()
}

func (r *Room) InCountdown() bool {
	return r.Phase() == state.PhaseCountdown
}

// AddMember appends id to the member list; false if already present.
func (r *Room) AddMember(id string) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if indexOf(r.members, id) >= 0 {
		return false
	}
	r.members = append(r.members, id)
	return true
}

// RemoveMember drops id from the member and ready lists.
func (r *Room) RemoveMember(id string) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	var removed bool
	r.members, removed = without(r.members, id)
	r.ready, _ = without(r.ready, id)
	return removed
}

// Members returns a copy of the member ids in join order.
func (r *Room) Members() []string {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return append([]string(nil), r.members...)
}

func (r *Room) MemberCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.members)
}

func (r *Room) IsEmpty() bool {
	return r.MemberCount() == 0
}

// SelectSong sets the song and empties the ready set.
func (r *Room) SelectSong(song models.Song) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	r.song = append(models.Song(nil), song...)
	r.ready = nil
}

func (r *Room) Song() models.Song {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return r.song
}

func (r *Room) HasSong() bool {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return !r.song.IsZero()
}

// MarkReady adds a member to the ready set. Marking twice is a no-op;
// non-members are refused.
func (r *Room) MarkReady(id string) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if indexOf(r.members, id) < 0 {
		return false
	}
	if indexOf(r.ready, id) < 0 {
		r.ready = append(r.ready, id)
	}
	return true
}

func (r *Room) ClearReady() {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()
	r.ready = nil
}

func (r *Room) ReadyIDs() []string {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return append([]string(nil), r.ready...)
}

func (r *Room) ReadyCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.ready)
}

// AllReady reports whether every member is ready and there are at least min
// members.
func (r *Room) AllReady(min int) bool {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.members) >= min && len(r.ready) == len(r.members)
}

// Summary is a read-only snapshot of the room.
func (r *Room) Summary() models.RoomSummary {
	phase := r.Phase()

	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return models.RoomSummary{
		Code:    r.Code,
		Mode:    r.Mode,
		Phase:   phase,
		HostID:  r.HostID,
		Players: append([]string{}, r.members...),
		Ready:   append([]string{}, r.ready...),
		Song:    r.song,
	}
}

// Close stops the state machine, which cancels a running countdown.
func (r *Room) Close() {
	r.StateMachine.Stop()
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func without(ids []string, id string) ([]string, bool) {
	i := indexOf(ids, id)
	if i < 0 {
		return ids, false
	}
	return append(ids[:i:i], ids[i+1:]...), true
}

// --- 房间管理器 ---

// Registry owns every live room, keyed by code.
type Registry struct {
	rooms    map[string]*Room
	generate CodeGenerator
	attempts int
	mutex    sync.RWMutex
}

type RegistryOption func(*Registry)

// WithCodeGenerator replaces RandomCode.
func WithCodeGenerator(g CodeGenerator) RegistryOption {
	return func(r *Registry) { r.generate = g }
}

// WithCodeAttempts bounds how many candidates Create tries before giving up.
func WithCodeAttempts(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.attempts = n
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:    make(map[string]*Room),
		generate: RandomCode,
		attempts: 16,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers an empty room under a code no live room is using.
func (m *Registry) Create(mode, hostID string, broadcaster Broadcaster) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i := 0; i < m.attempts; i++ {
		code := m.generate()
		if _, taken := m.rooms[code]; taken {
			logger.Log.Debugf("room code %s already live, retrying", code)
			continue
		}
		room := NewRoom(code, mode, hostID, broadcaster)
		m.rooms[code] = room
		return room, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Lookup finds a room by exact code. Callers normalize the code first.
func (m *Registry) Lookup(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[code]
	return room, exists
}

// RemoveMember takes playerID out of the room and deletes the room if that
// left it empty. It reports the room (nil if unknown) and whether it was
// deleted.
func (m *Registry) RemoveMember(code, playerID string) (*Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[code]
	if !exists {
		return nil, false
	}
	room.RemoveMember(playerID)
	if !room.IsEmpty() {
		return room, false
	}
	delete(m.rooms, code)
	room.Close()
	return room, true
}

func (m *Registry) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Codes lists live room codes in no particular order.
func (m *Registry) Codes() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	return codes
}
