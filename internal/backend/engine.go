package backend

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidFireTime = errors.New("backend: invalid fire time")

// FireEvent is one due expiry. Kind distinguishes a one-shot timer from a
// recurring schedule execution.
type FireEvent struct {
	ID       string
	Kind     string
	EntityID string
	FireAt   time.Time
}

const (
	KindTimer    = "timer"
	KindSchedule = "schedule"
)

type queueItem struct {
	event FireEvent
}

type priorityQueue []queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].event.FireAt.Before(pq[j].event.FireAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

// Engine delivers FireEvents at their due time through a buffered channel.
// Cancellation is handled by id: a cancelled entry still pops but is
// filtered by the tombstone set, which is cheaper than rebuilding the heap.
type Engine struct {
	mu        sync.Mutex
	queue     priorityQueue
	cancelled map[string]bool
	out       chan FireEvent
	wakeup    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	stopped   bool
	dropped   uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:     make(priorityQueue, 0),
		cancelled: make(map[string]bool),
		out:       make(chan FireEvent, bufferSize),
		wakeup:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (e *Engine) C() <-chan FireEvent {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

func (e *Engine) Schedule(ev FireEvent) error {
	if ev.FireAt.IsZero() {
		return ErrInvalidFireTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.New("backend: engine stopped")
	}

	delete(e.cancelled, ev.ID)
	heap.Push(&e.queue, queueItem{event: ev})
	e.signalWakeup()
	return nil
}

// Cancel suppresses a pending event. Unknown ids are fine; the tombstone
// just never matches.
func (e *Engine) Cancel(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled[id] = true
	e.signalWakeup()
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := time.Until(next.FireAt)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			due := e.popDue(time.Now().UTC())
			for _, ev := range due {
				select {
				case e.out <- ev:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (FireEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) > 0 && e.cancelled[e.queue[0].event.ID] {
		item := heap.Pop(&e.queue).(queueItem)
		delete(e.cancelled, item.event.ID)
	}
	if len(e.queue) == 0 {
		return FireEvent{}, false
	}
	return e.queue[0].event, true
}

func (e *Engine) popDue(now time.Time) []FireEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]FireEvent, 0)
	for len(e.queue) > 0 {
		next := e.queue[0].event
		if next.FireAt.After(now) {
			break
		}
		item := heap.Pop(&e.queue).(queueItem)
		if e.cancelled[item.event.ID] {
			delete(e.cancelled, item.event.ID)
			continue
		}
		out = append(out, item.event)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
