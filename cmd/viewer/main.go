package main

import (
	"context"
	"encoding/json"
	"fmt"
	"group-lab/internal"
	"group-lab/repositories"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the bot) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 3. Offline snapshot
	// Everything below reads what the bot last mirrored to disk; no session needed.
	dumpCachedRosters(os.Stdout, repositories.NewRosterStore(db, logger))
	if contacts, err := repositories.NewContactBook(db, logger).All(); err == nil && len(contacts) > 0 {
		fmt.Printf("📇 %d contacts synced\n", len(contacts))
	}

	// 4. Start Debug Server Only
	// We provide a static stats provider since the bot isn't running here
	viewerStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	fmt.Printf("🌐 Viewer started at http://localhost:%d/inspect\n", config.DebugPort)

	internal.StartDebugServer(db, config.DebugPort, "/inspect", AuditMapper, viewerStats)

	// The server runs in its own goroutine, keep the process alive until a signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

// dumpCachedRosters lists the last roster the bot stored per group, so
// an operator can check membership while the session is offline.
func dumpCachedRosters(out io.Writer, store repositories.RosterStore) {
	rosters, err := store.All()
	if err != nil || len(rosters) == 0 {
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Group", "Name", "Members", "Saved At"})
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, r := range rosters {
		table.Append([]string{
			strconv.FormatInt(int64(r.Group), 10),
			r.Name,
			strconv.Itoa(len(r.Members)),
			r.SavedAt.Format(time.RFC822),
		})
	}
	table.Render()
}

// Copy of the bot's audit mapper to keep the viewer independent
func AuditMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var entry repositories.AuditEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return row
	}

	row.Type = entry.Origin
	row.Detail = entry.Kind
	if entry.Detail != "" {
		row.Detail = entry.Kind + " " + entry.Detail
	}
	row.Scores = fmt.Sprintf("member:%d operator:%d", entry.Member, entry.Operator)

	return row
}
