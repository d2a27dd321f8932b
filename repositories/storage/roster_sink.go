package storage

import (
	"context"
	"log/slog"

	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/repositories"
)

// RosterSource reads the current confirmed roster of a group. Satisfied
// by the service facade.
type RosterSource interface {
	Roster(group domain.GroupID) (domain.GroupSnapshot, error)
}

// RosterSink mirrors every group whose membership just changed to the
// on-disk roster store. It runs after the apply loop published the
// event, so the snapshot it reads already contains the change.
type RosterSink struct {
	store   repositories.RosterStore
	rosters RosterSource
	log     *slog.Logger
}

func NewRosterSink(store repositories.RosterStore, rosters RosterSource, log *slog.Logger) RosterSink {
	return RosterSink{store: store, rosters: rosters, log: log}
}

func (s RosterSink) Consume(_ context.Context, e event.GroupEvent) error {
	snap, err := s.rosters.Roster(e.GroupID())
	if err != nil {
		// The group can be gone by the time the event fans out, a drop
		// racing the tail of its own stream. The stored roster then
		// keeps its last synced state.
		s.log.Debug("No live roster to mirror", "group", e.GroupID(), "error", err)
		return nil
	}
	return s.store.Save(snap)
}
