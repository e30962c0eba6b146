package state

import (
	"sync"
	"testing"
	"time"

	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/network"
	"github.com/wfunc/beatroom/timer"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

// MockRoom records broadcasts and drives a real state machine.
type MockRoom struct {
	machine    *BaseStateMachine
	broadcasts []string
	counts     []int
}

func (r *MockRoom) GetCode() string { return "TEST" }

func (r *MockRoom) ChangeState(newState State) error {
	return r.machine.ChangeState(newState)
}

func (r *MockRoom) Broadcast(event string, payload interface{}) error {
	r.broadcasts = append(r.broadcasts, event)
	if msg, ok := payload.(models.CountdownMessage); ok {
		r.counts = append(r.counts, msg.Count)
	}
	return nil
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset() // Reset after initialization

	err := sm.ChangeState(nextState)
	if err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}

	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}

	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)

	if err := sm.AddTransition("A", "B", func() bool { return true }); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}
	if err := sm.AddTransition("B", "C", func() bool { return false }); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// --- Test valid transition ---
	stateA.reset()
	if err := sm.ChangeState(stateB); err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to be B, but got %s", sm.GetCurrentState().GetID())
	}

	// --- Test blocked transition ---
	stateB.reset()
	if err := sm.ChangeState(stateC); err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState().GetID())
	}
	if stateB.OnExitCalled {
		t.Error("OnExit should not be called on the current state if transition is blocked")
	}
	if stateC.OnEnterCalled {
		t.Error("OnEnter should not be called on the new state if transition is blocked")
	}
}

func TestStateMachine_Stop(t *testing.T) {
	stateA := &MockState{ID: "A"}
	sm := NewBaseStateMachine(stateA)

	sm.Stop()
	if !stateA.OnExitCalled {
		t.Error("Stop should exit the current state")
	}

	stateA.reset()
	sm.Stop()
	if stateA.OnExitCalled {
		t.Error("A second Stop should not exit again")
	}

	if err := sm.ChangeState(&MockState{ID: "B"}); err != ErrMachineStopped {
		t.Errorf("Expected ErrMachineStopped, got %v", err)
	}
}

func newCountdownRoom(t *testing.T, from int) (*MockRoom, *timer.ManualScheduler, *sync.Mutex, *int) {
	t.Helper()
	room := &MockRoom{}
	room.machine = NewBaseStateMachine(NewSongSelectedState(room))
	sched := timer.NewManualScheduler()
	guard := &sync.Mutex{}
	zeroCalls := 0

	cd := NewCountdownState(room, CountdownConfig{
		From:      from,
		Interval:  time.Second,
		Scheduler: sched,
		Guard:     guard,
	}, func() {
		zeroCalls++
		room.broadcasts = append(room.broadcasts, network.EventStartSong)
		if err := room.ChangeState(NewSongSelectedState(room)); err != nil {
			t.Errorf("return to song_selected failed: %v", err)
		}
	})
	if err := room.ChangeState(cd); err != nil {
		t.Fatalf("enter countdown: %v", err)
	}
	return room, sched, guard, &zeroCalls
}

func TestCountdownState_TicksThenStarts(t *testing.T) {
	room, sched, _, zeroCalls := newCountdownRoom(t, 3)

	sched.Advance(999 * time.Millisecond)
	if len(room.counts) != 0 {
		t.Fatalf("Expected no tick before the first interval, got %v", room.counts)
	}

	sched.Advance(10 * time.Second)

	expected := []int{3, 2, 1, 0}
	if len(room.counts) != len(expected) {
		t.Fatalf("Expected counts %v, got %v", expected, room.counts)
	}
	for i, c := range expected {
		if room.counts[i] != c {
			t.Errorf("Expected counts %v, got %v", expected, room.counts)
			break
		}
	}
	if *zeroCalls != 1 {
		t.Errorf("Expected onZero exactly once, got %d", *zeroCalls)
	}
	if last := room.broadcasts[len(room.broadcasts)-1]; last != network.EventStartSong {
		t.Errorf("Expected startSong last, got %s", last)
	}
	if sched.Pending() != 0 {
		t.Errorf("Expected countdown timer to be removed, %d pending", sched.Pending())
	}
	if room.machine.GetCurrentState().GetID() != PhaseSongSelected {
		t.Errorf("Expected room back in song_selected, got %s", room.machine.GetCurrentState().GetID())
	}
}

func TestCountdownState_StopCancels(t *testing.T) {
	room, sched, guard, zeroCalls := newCountdownRoom(t, 3)

	sched.Advance(time.Second)

	guard.Lock()
	room.machine.Stop()
	guard.Unlock()

	sched.Advance(10 * time.Second)

	if len(room.counts) != 1 {
		t.Errorf("Expected a single tick before cancellation, got %v", room.counts)
	}
	if *zeroCalls != 0 {
		t.Error("onZero must not run after cancellation")
	}
	if sched.Pending() != 0 {
		t.Errorf("Expected timer removed on stop, %d pending", sched.Pending())
	}
}

func TestCountdownState_TickWaitingOnGuardIsDropped(t *testing.T) {
	room := &MockRoom{}
	room.machine = NewBaseStateMachine(NewSongSelectedState(room))
	sched := timer.NewManualScheduler()
	guard := &sync.Mutex{}
	cd := NewCountdownState(room, CountdownConfig{From: 3, Interval: time.Second, Scheduler: sched, Guard: guard}, nil)
	room.ChangeState(cd)

	// A tick that fires while the room is being torn down blocks on the guard,
	// then finds the state cancelled.
	guard.Lock()
	done := make(chan struct{})
	go func() {
		cd.tick()
		close(done)
	}()
	room.machine.Stop()
	guard.Unlock()
	<-done

	if len(room.counts) != 0 {
		t.Errorf("Expected no broadcast from a cancelled countdown, got %v", room.counts)
	}
}
