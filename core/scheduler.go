package core

import (
	"container/heap"
	"fmt"
	"time"
)

// Event is a scheduled future action: at TriggerTime, the lifecycle engine
// invokes the handler registered for Action against Symbol.
type Event struct {
	ID          string
	TriggerTime time.Time
	Priority    int
	Symbol      string
	Action      string
	Payload     map[string]any
}

// NewEvent builds an Event whose ID is the stable hash of its content --
// trigger time, priority, symbol, action, and payload -- so two events
// scheduled with identical fields always collapse to the same id, while any
// differing field produces a distinct one.
func NewEvent(triggerTime time.Time, priority int, symbol, action string, payload map[string]any) Event {
	e := Event{
		TriggerTime: triggerTime,
		Priority:    priority,
		Symbol:      symbol,
		Action:      action,
		Payload:     payload,
	}
	e.ID = hashHex(fmt.Sprintf("event:%s:%d:%s:%s:%s",
		triggerTime.Format(time.RFC3339Nano), priority, symbol, action, canonicalizeState(payload)))
	return e
}

// eventHeap is a container/heap implementation ordering Events by
// (TriggerTime, Priority, ID) ascending, so draining is deterministic even
// when two events share a trigger time.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if !h[i].TriggerTime.Equal(h[j].TriggerTime) {
		return h[i].TriggerTime.Before(h[j].TriggerTime)
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].ID < h[j].ID
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// EventScheduler is a priority queue of pending Events, draining in
// (trigger_time, priority, event_id) order.
type EventScheduler struct {
	heap eventHeap
}

// NewEventScheduler constructs an empty scheduler.
func NewEventScheduler() *EventScheduler {
	s := &EventScheduler{heap: eventHeap{}}
	heap.Init(&s.heap)
	return s
}

// Schedule enqueues a single event.
func (s *EventScheduler) Schedule(e Event) {
	heap.Push(&s.heap, e)
}

// ScheduleMany enqueues every event in events.
func (s *EventScheduler) ScheduleMany(events []Event) {
	for _, e := range events {
		s.Schedule(e)
	}
}

// PeekNext returns the earliest pending event without removing it.
func (s *EventScheduler) PeekNext() (Event, bool) {
	if len(s.heap) == 0 {
		return Event{}, false
	}
	return s.heap[0], true
}

// PendingCount returns the number of events still queued.
func (s *EventScheduler) PendingCount() int {
	return len(s.heap)
}

// Drain removes and returns every event with TriggerTime on or before t,
// in (trigger_time, priority, event_id) order.
func (s *EventScheduler) Drain(t time.Time) []Event {
	var due []Event
	for len(s.heap) > 0 && !s.heap[0].TriggerTime.After(t) {
		due = append(due, heap.Pop(&s.heap).(Event))
	}
	return due
}
