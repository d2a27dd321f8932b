package runtime

import (
	"sync"

	"group-lab/contract"
	"group-lab/domain"
)

type Set map[string]struct{}

// Registry tracks which external subscribers want the events of which
// groups. Permanent sinks (audit, search, projections) do not go through
// here; they are wired straight into the fanout.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]contract.EventSink // map subscriber -> Sink
	groupWatchers map[domain.GroupID]Set        // map group to subscribers
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:      make(map[string]contract.EventSink),
		groupWatchers: make(map[domain.GroupID]Set),
	}
}

// GetSinksForGroup retrieves all active sinks watching a specific group.
// It performs a two-step lookup:
// 1. Identifies subscriber IDs associated with the group via groupWatchers.
// 2. Resolves those IDs into actual EventSinks using the sessions map.
//
// This decoupled approach ensures that even if a subscriber watches
// multiple groups, its connection (Sink) is managed in a single place.
// Returns nil if the group is unknown or nobody watches it.
func (r *Registry) GetSinksForGroup(groupID domain.GroupID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers, ok := r.groupWatchers[groupID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for subscriberID := range watchers {
		if sink, exists := r.sessions[subscriberID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a subscriber's sink and assigns it to a specific group.
// It ensures thread-safe updates to both the global session directory and the
// group-specific watcher set. If the group does not yet exist in the registry,
// it is initialized on the fly.
func (r *Registry) Subscribe(subscriberID string, groupID domain.GroupID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[subscriberID] = sink

	if _, ok := r.groupWatchers[groupID]; !ok {
		r.groupWatchers[groupID] = make(Set)
	}
	r.groupWatchers[groupID][subscriberID] = struct{}{}
}

// Unsubscribe removes a subscriber from the registry and the given group.
// It cleans up the session and ensures no empty sets are left in the group
// map to prevent memory leaks over time.
func (r *Registry) Unsubscribe(subscriberID string, groupID domain.GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, subscriberID)

	if watchers, ok := r.groupWatchers[groupID]; ok {
		delete(watchers, subscriberID)

		// If nobody watches the group anymore, remove the entry entirely
		if len(watchers) == 0 {
			delete(r.groupWatchers, groupID)
		}
	}
}
