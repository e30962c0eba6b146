package state

import (
	"errors"
	"sync"

	"github.com/wfunc/beatroom/logger"
)

// Room lifecycle phases.
const (
	PhaseLobby        = "lobby"
	PhaseSongSelected = "song_selected"
	PhaseCountdown    = "countdown"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(fromID, toID string, condition func() bool) error
	Stop()
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

var (
	// ErrTransitionNotAllowed is returned when a transition's condition fails.
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	// ErrMachineStopped is returned by ChangeState after Stop.
	ErrMachineStopped = errors.New("state machine stopped")
)

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	stopped      bool
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.stopped {
		return ErrMachineStopped
	}

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	// 检查是否有转换条件
	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition != nil && !condition() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	logger.Log.Debugf("state %s -> %s", currentID, newID)
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(fromID, toID string, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// Stop exits the current state and refuses further transitions.
func (sm *BaseStateMachine) Stop() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.stopped {
		return
	}
	sm.currentState.OnExit()
	sm.stopped = true
}

// 房间状态基础结构
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}

// LobbyState: no song picked yet.
type LobbyState struct {
	RoomStateBase
}

func NewLobbyState(room RoomContext) *LobbyState {
	return &LobbyState{RoomStateBase{ID: PhaseLobby, Room: room}}
}

// SongSelectedState: a song is set and the room is collecting ready signals.
// Rooms come back here after every round starts.
type SongSelectedState struct {
	RoomStateBase
}

func NewSongSelectedState(room RoomContext) *SongSelectedState {
	return &SongSelectedState{RoomStateBase{ID: PhaseSongSelected, Room: room}}
}
