package state

import (
	"sync"
	"time"

	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/models"
	"github.com/wfunc/beatroom/network"
	"github.com/wfunc/beatroom/timer"
)

type CountdownConfig struct {
	From      int
	Interval  time.Duration
	Scheduler timer.Scheduler
	// Guard is held by every handler that touches room state; ticks take it too.
	Guard sync.Locker
}

// CountdownState broadcasts From, From-1, ..., 0 one interval apart and then
// calls onZero. The timer id is the room's cancel handle: leaving the state
// for any reason, including the room being closed, removes the timer and
// turns any tick already waiting on Guard into a no-op.
type CountdownState struct {
	RoomStateBase
	cfg       CountdownConfig
	onZero    func()
	next      int
	timerID   int64
	cancelled bool
}

// NewCountdownState builds the state; onZero runs under Guard right after the
// final count is broadcast.
func NewCountdownState(room RoomContext, cfg CountdownConfig, onZero func()) *CountdownState {
	return &CountdownState{
		RoomStateBase: RoomStateBase{ID: PhaseCountdown, Room: room},
		cfg:           cfg,
		onZero:        onZero,
	}
}

func (s *CountdownState) OnEnter() {
	s.next = s.cfg.From
	s.cancelled = false
	s.timerID = s.cfg.Scheduler.AddTimer(s.cfg.Interval, s.cfg.Interval, s.tick)
	logger.Log.Infof("room %s countdown started from %d", s.Room.GetCode(), s.cfg.From)
}

func (s *CountdownState) OnExit() {
	if s.cancelled {
		return
	}
	s.cancelled = true
	s.cfg.Scheduler.RemoveTimer(s.timerID)
	logger.Log.Infof("room %s countdown cancelled at %d", s.Room.GetCode(), s.next)
}

func (s *CountdownState) tick() {
	s.cfg.Guard.Lock()
	defer s.cfg.Guard.Unlock()

	if s.cancelled {
		return
	}

	if err := s.Room.Broadcast(network.EventCountdown, models.CountdownMessage{Count: s.next}); err != nil {
		logger.Log.Warnf("room %s countdown broadcast failed: %v", s.Room.GetCode(), err)
	}

	if s.next > 0 {
		s.next--
		return
	}

	s.cancelled = true
	s.cfg.Scheduler.RemoveTimer(s.timerID)
	if s.onZero != nil {
		s.onZero()
	}
}
