package timer

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler driven by Advance instead of the wall clock.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextId int64
	tasks  map[int64]*manualTask
}

type manualTask struct {
	id       int64
	at       time.Duration
	interval time.Duration
	callback func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{nextId: 1, tasks: make(map[int64]*manualTask)}
}

func (s *ManualScheduler) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextId
	s.nextId++
	s.tasks[id] = &manualTask{id: id, at: s.now + delay, interval: interval, callback: callback}
	return id
}

func (s *ManualScheduler) RemoveTimer(timerId int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, timerId)
}

// Pending reports how many timers are still scheduled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves the clock forward by d, firing due callbacks in time order on
// the calling goroutine.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDue(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.at
		if next.interval > 0 {
			next.at += next.interval
		} else {
			delete(s.tasks, next.id)
		}
		callback := next.callback
		s.mu.Unlock()

		callback()
	}
}

func (s *ManualScheduler) nextDue(target time.Duration) *manualTask {
	due := make([]*manualTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].id < due[j].id
		}
		return due[i].at < due[j].at
	})
	return due[0]
}
