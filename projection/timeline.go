// Package projection builds local read models from observed events.
// Handles bounded per-group timelines for display and inspection.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"sync"

	"group-lab/domain"
	"group-lab/domain/event"
)

const defaultCapacity = 256

// Timeline keeps the most recent moderation events per group. It is a
// permanent sink fed by the event fanout; readers query it from any
// goroutine. Oldest entries fall off once a group line reaches capacity.
type Timeline struct {
	capacity int

	mu     sync.RWMutex
	groups map[domain.GroupID][]event.GroupEvent
}

func NewTimeline(capacity int) *Timeline {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Timeline{
		capacity: capacity,
		groups:   make(map[domain.GroupID][]event.GroupEvent),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.GroupEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := append(t.groups[e.GroupID()], e)
	if len(line) > t.capacity {
		// Copy into a fresh slice so the dropped head can be collected.
		fresh := make([]event.GroupEvent, t.capacity)
		copy(fresh, line[len(line)-t.capacity:])
		line = fresh
	}
	t.groups[e.GroupID()] = line
	return nil
}

// Recent returns up to n events of one group, newest first. A zero or
// negative n returns the whole retained line.
func (t *Timeline) Recent(group domain.GroupID, n int) []event.GroupEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	line := t.groups[group]
	if n <= 0 || n > len(line) {
		n = len(line)
	}
	out := make([]event.GroupEvent, n)
	for i := 0; i < n; i++ {
		out[i] = line[len(line)-1-i]
	}
	return out
}

// DropGroup releases the retained line of a group that left the bot's
// view.
func (t *Timeline) DropGroup(group domain.GroupID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.groups, group)
}
