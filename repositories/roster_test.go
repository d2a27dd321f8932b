package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"group-lab/domain"
)

func opsRoster() domain.GroupSnapshot {
	return domain.GroupSnapshot{
		Bot:   1,
		Group: 42,
		Name:  "ops",
		Members: []domain.MemberSnapshot{
			{Key: domain.MemberKey{Bot: 1, Group: 42, Member: 99}, Role: domain.RoleOwner, Card: "the-bot"},
			{Key: domain.MemberKey{Bot: 1, Group: 42, Member: 5}, Card: "alice", MuteRaw: 600, JoinedAt: time.Now()},
		},
	}
}

func Test_Roster_Save_Overwrites_Previous_Record(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	store := NewRosterStore(db, slog.Default())
	req.NoError(store.Save(opsRoster()))

	// A later snapshot replaces the record instead of piling up next to it.
	next := opsRoster()
	next.Name = "ops (renamed)"
	next.Members = append(next.Members, domain.MemberSnapshot{
		Key:  domain.MemberKey{Bot: 1, Group: 42, Member: 6},
		Role: domain.RoleAdmin,
		Card: "bob",
	})
	req.NoError(store.Save(next))

	rosters, err := store.All()
	req.NoError(err)
	req.Len(rosters, 1)

	got := rosters[0]
	req.Equal(domain.GroupID(42), got.Group)
	req.Equal("ops (renamed)", got.Name)
	req.False(got.SavedAt.IsZero())
	req.Len(got.Members, 3)

	// Roles land as their wire-independent names so the records stay greppable.
	req.Equal("owner", got.Members[0].Role)
	req.Equal(int64(5), got.Members[1].Member)
	req.Equal("member", got.Members[1].Role)
	req.Equal(uint32(600), got.Members[1].MuteLeft)
	req.Equal("admin", got.Members[2].Role)
}

func Test_Roster_Store_Keeps_One_Record_Per_Group(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	store := NewRosterStore(db, slog.Default())
	req.NoError(store.Save(opsRoster()))

	other := opsRoster()
	other.Group = 7
	other.Name = "lobby"
	req.NoError(store.Save(other))

	rosters, err := store.All()
	req.NoError(err)
	req.Len(rosters, 2)
}
