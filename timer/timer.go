// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler runs callbacks after a delay, optionally repeating every interval.
// The id returned by AddTimer is the only handle needed to cancel.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64)
}

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	if q[i].Execute.Equal(q[j].Execute) {
		return q[i].Id < q[j].Id
	}
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager polls a min-heap of tasks at a fixed resolution. Due callbacks
// run one after another on the manager goroutine, outside the queue lock, so
// a callback may add or remove timers, including its own.
type TimerManager struct {
	queue      TimerQueue
	mutex      sync.Mutex
	nextId     int64
	resolution time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	stopped    chan struct{}
}

func NewTimerManager(resolution time.Duration) *TimerManager {
	if resolution <= 0 {
		resolution = 10 * time.Millisecond
	}
	manager := &TimerManager{
		queue:      make(TimerQueue, 0),
		nextId:     1,
		resolution: resolution,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Len reports how many timers are pending.
func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts the manager. Pending timers never fire.
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.stopped
}

// due pops every task whose time has come, re-queueing repeating ones.
func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var fired []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}

		heap.Pop(&m.queue)
		fired = append(fired, task)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
	return fired
}

func (m *TimerManager) process() {
	defer close(m.stopped)

	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				task.Callback()
			}
		}
	}
}
