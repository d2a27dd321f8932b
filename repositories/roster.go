package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"group-lab/domain"
)

// RosterStore keeps the last confirmed roster of every group on disk.
// The bot overwrites a group's record after each applied change, so
// after a crash or while the account is offline the viewer still shows
// who was in which group, with which role, as of the last sync.
type RosterStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRosterStore(db *badger.DB, log *slog.Logger) RosterStore {
	return RosterStore{db: db, log: log}
}

// StoredRoster is the on-disk form of one group snapshot. Roles are
// written as their names so the records stay greppable, like the audit
// journal.
type StoredRoster struct {
	Group   domain.GroupID `json:"group"`
	Name    string         `json:"name"`
	Members []StoredMember `json:"members"`
	SavedAt time.Time      `json:"saved_at"`
}

type StoredMember struct {
	Member   int64     `json:"member"`
	Role     string    `json:"role"`
	Card     string    `json:"card,omitempty"`
	Title    string    `json:"title,omitempty"`
	MuteLeft uint32    `json:"mute_left,omitempty"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
}

func rosterKey(group domain.GroupID) []byte {
	return []byte(fmt.Sprintf("roster:%d", group))
}

// Save overwrites the stored roster for the snapshot's group. Rosters
// are small; rewriting the whole record per change beats tracking
// deltas.
func (r RosterStore) Save(snap domain.GroupSnapshot) error {
	stored := StoredRoster{
		Group:   snap.Group,
		Name:    snap.Name,
		Members: make([]StoredMember, 0, len(snap.Members)),
		SavedAt: time.Now().UTC(),
	}
	for _, m := range snap.Members {
		stored.Members = append(stored.Members, StoredMember{
			Member:   int64(m.Key.Member),
			Role:     m.Role.String(),
			Card:     m.Card,
			Title:    m.Title,
			MuteLeft: m.MuteRaw,
			JoinedAt: m.JoinedAt,
		})
	}
	bytes, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rosterKey(snap.Group), bytes)
	})
}

// All lists every stored roster.
func (r RosterStore) All() ([]StoredRoster, error) {
	var rosters []StoredRoster
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("roster:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var stored StoredRoster
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				rosters = append(rosters, stored)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rosters, err
}
