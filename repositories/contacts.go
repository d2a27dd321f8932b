package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"group-lab/domain"
)

// ContactBook persists the account's contact list in BadgerDB. Its hot
// path is Nickname, the display fallback for members without a group
// card; lookups must stay cheap and non-blocking, so a miss or a read
// failure is just an empty string, never an error the caller has to
// route around.
type ContactBook struct {
	db  *badger.DB
	log *slog.Logger
}

func NewContactBook(db *badger.DB, log *slog.Logger) ContactBook {
	return ContactBook{db: db, log: log}
}

// Contact is the on-disk form of one contact-book entry. Remark is the
// name the account holder typed over the contact's own nickname; when
// set it wins, which matches how every chat UI resolves names.
type Contact struct {
	Member   domain.MemberID `json:"member"`
	Nickname string          `json:"nickname"`
	Remark   string          `json:"remark,omitempty"`
	SyncedAt time.Time       `json:"synced_at"`
}

func contactKey(member domain.MemberID) []byte {
	// Zero padding keeps a prefix scan ordered by member id.
	return []byte(fmt.Sprintf("contact:%019d", member))
}

// Save upserts one contact. SyncedAt is stamped when the caller left it
// zero.
func (c ContactBook) Save(contact Contact) error {
	if contact.SyncedAt.IsZero() {
		contact.SyncedAt = time.Now().UTC()
	}
	bytes, err := json.Marshal(contact)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(contactKey(contact.Member), bytes)
	})
}

// Nickname resolves the display fallback for a member: the remark when
// one is set, else the contact's nickname, else "".
func (c ContactBook) Nickname(member domain.MemberID) string {
	var contact Contact
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contactKey(member))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &contact)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			c.log.Debug("Contact lookup failed", "member", member, "error", err)
		}
		return ""
	}
	if contact.Remark != "" {
		return contact.Remark
	}
	return contact.Nickname
}

// Remove deletes one contact. Removing an unknown member is a no-op.
func (c ContactBook) Remove(member domain.MemberID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(contactKey(member))
	})
}

// All lists the whole book ordered by member id.
func (c ContactBook) All() ([]Contact, error) {
	var contacts []Contact
	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("contact:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var contact Contact
				if err := json.Unmarshal(val, &contact); err != nil {
					return err
				}
				contacts = append(contacts, contact)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return contacts, err
}
