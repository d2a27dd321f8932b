package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"

	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/repositories"
	"group-lab/repositories/storage"
)

// Remplit une base BadgerDB avec des entrées d'audit plausibles pour
// tester le viewer et la page /inspect sans serveur IM.
func main() {
	dbPath := flag.String("db", "./badger_data", "BadgerDB directory to seed")
	groups := flag.Int("groups", 3, "number of groups")
	perGroup := flag.Int("entries", 40, "entries per group")
	flag.Parse()

	fmt.Println("🚀 Group-Lab : génération d'entrées d'audit de démonstration...")

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		fmt.Printf("❌ Badger : %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	logger := logs.GetLoggerFromString("ERROR")
	journal := repositories.NewAuditJournal(db, logger, nil)
	auditSink := storage.NewAuditSink(journal, logger)

	// On passe par le vrai sink pour obtenir exactement le même format
	// que les événements produits par le bot.
	ctx := context.Background()
	base := time.Now().Add(-24 * time.Hour)
	total := 0
	for g := 0; g < *groups; g++ {
		group := domain.GroupID(1000 + g)
		for i := 0; i < *perGroup; i++ {
			at := base.Add(time.Duration(i) * 7 * time.Minute)
			if err := auditSink.Consume(ctx, randomEvent(group, at)); err != nil {
				fmt.Printf("❌ Append : %v\n", err)
				os.Exit(1)
			}
			total++
		}
	}

	// Quelques contacts et un roster par groupe pour alimenter l'affichage
	// hors ligne du viewer.
	book := repositories.NewContactBook(db, logger)
	names := []string{"alice", "bob", "carol", "dave", "eve"}
	for i, n := range names {
		if err := book.Save(repositories.Contact{Member: domain.MemberID(i + 1), Nickname: n}); err != nil {
			fmt.Printf("❌ Contact : %v\n", err)
			os.Exit(1)
		}
	}
	rosterStore := repositories.NewRosterStore(db, logger)
	for g := 0; g < *groups; g++ {
		if err := rosterStore.Save(demoRoster(domain.GroupID(1000+g), names)); err != nil {
			fmt.Printf("❌ Roster : %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("✅ %d entrées d'audit, %d contacts et %d rosters écrits dans %s\n",
		total, len(names), *groups, *dbPath)
}

func demoRoster(group domain.GroupID, names []string) domain.GroupSnapshot {
	snap := domain.GroupSnapshot{Bot: 1, Group: group, Name: fmt.Sprintf("groupe-%d", group)}
	for i := range names {
		role := domain.RoleMember
		if i == 0 {
			role = domain.RoleOwner
		}
		snap.Members = append(snap.Members, domain.MemberSnapshot{
			Key:      domain.MemberKey{Bot: 1, Group: group, Member: domain.MemberID(i + 1)},
			Role:     role,
			JoinedAt: time.Now().Add(-time.Duration(i*24) * time.Hour),
		})
	}
	return snap
}

func randomEvent(group domain.GroupID, at time.Time) event.GroupEvent {
	member := domain.MemberID(rand.Int63n(50) + 1)
	operator := domain.MemberID(rand.Int63n(50) + 1)
	meta := event.NewMeta(group, member, operator, domain.OriginAdmin, at)

	switch rand.Intn(6) {
	case 0:
		return event.CardChanged{Meta: meta, Old: "old-card", New: fmt.Sprintf("card-%d", member)}
	case 1:
		return event.TitleChanged{Meta: meta, Old: "", New: "firefighter"}
	case 2:
		secs := int64(rand.Intn(3600) + 60)
		return event.MemberMuted{Meta: meta, Seconds: secs, Until: at.Add(time.Duration(secs) * time.Second)}
	case 3:
		return event.MemberUnmuted{Meta: meta}
	case 4:
		return event.PermissionChanged{Meta: meta, Old: domain.RoleMember, New: domain.RoleAdmin}
	default:
		return event.MemberRemoved{Meta: meta, Kicked: rand.Intn(2) == 0}
	}
}
