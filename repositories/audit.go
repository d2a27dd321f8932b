//go:generate go run go.uber.org/mock/mockgen -source=audit.go -destination=../mocks/mock_audit_journal.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"group-lab/domain"
)

type IAuditJournal interface {
	Append(entry AuditEntry) error
	RecentActions(group domain.GroupID, cursor *string) ([]AuditEntry, *string, error)
}

// AuditJournal persists one record per applied membership event, so a
// moderation decision can be traced weeks later even if nobody was
// watching when it happened.
type AuditJournal struct {
	db           *badger.DB
	log          *slog.Logger
	limitEntries *int
}

func NewAuditJournal(db *badger.DB, log *slog.Logger, limitEntries *int) AuditJournal {
	return AuditJournal{db: db, log: log, limitEntries: limitEntries}
}

// AuditEntry is the on-disk form of one applied change. Values are
// JSON, matching the wire codec, so the journal stays greppable with
// standard tools.
type AuditEntry struct {
	ID       uuid.UUID       `json:"id"`
	Group    domain.GroupID  `json:"group"`
	Member   domain.MemberID `json:"member"`
	Operator domain.MemberID `json:"operator,omitempty"`
	Origin   string          `json:"origin"`
	Kind     string          `json:"kind"`
	Detail   string          `json:"detail,omitempty"`
	At       time.Time       `json:"at"`
}

// Append persists an entry in BadgerDB.
// The key is formatted as "audit:{group_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two entries
//     arrive at the same nanosecond.
func (a AuditJournal) Append(entry AuditEntry) error {
	key := fmt.Sprintf("audit:%d:%019d:%s",
		entry.Group,
		entry.At.UnixNano(),
		entry.ID,
	)
	bytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		err = txn.Set([]byte(key), bytes)
		return err
	})
}

// RecentActions retrieves entries for one group using a prefix scan,
// newest first thanks to the padded timestamp and the reverse iterator.
// It stops collecting once the configured limitEntries is reached; the
// returned cursor resumes the scan where it stopped.
func (a AuditJournal) RecentActions(group domain.GroupID, cursor *string) ([]AuditEntry, *string, error) {
	var rawEntries [][]byte
	var entries []AuditEntry
	var lastKey string
	err := a.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("audit:%d:", group)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible position audit:{group}:9999999999999999999
			// Then, we walk backwards in time
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if a.limitEntries != nil && len(rawEntries) == *a.limitEntries {
				a.log.Debug(fmt.Sprintf("Maximum of %d audit entries reached", *a.limitEntries))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawEntries = append(rawEntries, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, b := range rawEntries {
		var entry AuditEntry
		if err = json.Unmarshal(b, &entry); err != nil {
			return nil, nil, err
		}
		entries = append(entries, entry)
	}
	return entries, &lastKey, err
}
