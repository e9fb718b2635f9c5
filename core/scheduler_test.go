package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventIDIsStableAndContentAddressed(t *testing.T) {
	tt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := NewEvent(tt, 0, "ACME-OPT", "settle", map[string]any{"k": "v"})
	b := NewEvent(tt, 0, "ACME-OPT", "settle", map[string]any{"k": "v"})
	assert.Equal(t, a.ID, b.ID, "identical content produces the same event id")

	c := NewEvent(tt, 0, "ACME-OPT", "settle", map[string]any{"k": "other"})
	assert.NotEqual(t, a.ID, c.ID, "a differing payload produces a distinct event id")

	e := NewEvent(tt, 1, "ACME-OPT", "settle", map[string]any{"k": "v"})
	assert.NotEqual(t, a.ID, e.ID, "a differing priority produces a distinct event id")
}

func TestEventSchedulerDrainOrder(t *testing.T) {
	s := NewEventScheduler()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 0, 1)

	s.ScheduleMany([]Event{
		NewEvent(t1, 0, "B", "settle", nil),
		NewEvent(t0, 1, "A", "settle", nil),
		NewEvent(t0, 0, "C", "settle", nil),
	})

	assert.Equal(t, 3, s.PendingCount())
	due := s.Drain(t0)
	if assert.Len(t, due, 2, "only the two events due at or before t0 drain") {
		assert.Equal(t, "C", due[0].Symbol, "priority 0 drains before priority 1 at the same trigger time")
		assert.Equal(t, "A", due[1].Symbol)
	}
	assert.Equal(t, 1, s.PendingCount())

	remaining := s.Drain(t1)
	if assert.Len(t, remaining, 1) {
		assert.Equal(t, "B", remaining[0].Symbol)
	}
}
