package main

import (
	"context"
	"encoding/json"
	"fmt"
	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/infrastructure/arpc/client"
	"group-lab/internal"
	"group-lab/moderation"
	"group-lab/observability"
	"group-lab/projection"
	"group-lab/repositories"
	"group-lab/repositories/storage"
	"group-lab/runtime"
	"group-lab/runtime/workers"
	"group-lab/search"
	"group-lab/services"
	"group-lab/sink"
	"io"
	"log/slog"
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
	"github.com/samber/lo"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Botwatch terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the bot lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the session and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)

	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}

	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation screen
	// Card and title text is screened locally before any mutation goes on
	// the wire. Embedded lists ship with the binary; operators can merge
	// one extra file on top.
	words, err := moderation.DefaultWords()
	if err != nil {
		return exitConfig, fmt.Errorf("embedded word lists: %w", err)
	}
	banned := words.Words
	if config.WordsFilepath != "" {
		extra, err := moderation.LoadWordsFile(config.WordsFilepath)
		if err != nil {
			return exitConfig, fmt.Errorf("extra word list: %w", err)
		}
		banned = append(banned, extra...)
	}
	screen, err := moderation.NewScreen(lo.Uniq(banned))
	if err != nil {
		return exitConfig, fmt.Errorf("moderation screen: %w", err)
	}
	logger.Info(fmt.Sprintf("Moderation screen ready with %d words (%v)", len(banned), words.Languages))

	// 4. Supervision & Monitoring
	telemetryChan := make(chan event.Event, config.BufferSize)
	sup := workers.NewSupervisor(logger, telemetryChan, config.RestartInterval)
	registry := runtime.NewRegistry()
	mon := observability.NewMonitoringManager(logger)

	if config.DebugPort != 0 {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug audit inspector available", "url", url)
		internal.StartDebugServer(db, config.DebugPort, endpoint, auditMapper, func() map[string]any {
			stats := mon.GetLatest()
			return map[string]any{
				"mutations_sent":   stats.MutationsSent,
				"acks_applied":     stats.AcksApplied,
				"pushes_applied":   stats.PushesApplied,
				"push_rate":        fmt.Sprintf("%.2f/s", stats.PushRate),
				"events_published": stats.EventsPublished,
				"events_dropped":   stats.EventsDropped,
				"active_groups":    stats.ActiveGroups,
				"alloc_mem_mb":     stats.AllocMemMb,
			}
		})
	}

	// 5. IM session (transport & push feed)
	session, err := client.NewSession(logger, domain.BotID(config.BotID),
		config.ServerAddr, config.SessionToken, config.DialTimeout, config.PushBufferSize)
	if err != nil {
		return exitRuntime, fmt.Errorf("IM server connection failed: %w", err)
	}
	defer func() {
		logger.Info("Closing IM session...")
		session.Close()
	}()

	// 6. Protocol, Bot & Sinks
	protocol := runtime.NewProtocol(logger, session, &screen, mon, config.CallTimeout)
	bot := runtime.NewBot(logger, domain.BotID(config.BotID), sup, registry, protocol,
		session, mon, telemetryChan, config.BufferSize, config.SinkTimeout)

	journal := repositories.NewAuditJournal(db, logger, config.LimitAuditEntries)
	auditSink := storage.NewAuditSink(journal, logger)

	// Contacts double as the display-name fallback for members with an
	// empty card, both in the runtime and in the search index.
	contacts := repositories.NewContactBook(db, logger)
	bot.SetNicknameSource(contacts)

	index, err := search.NewMemberIndex(logger, contacts)
	if err != nil {
		return exitRuntime, fmt.Errorf("member index: %w", err)
	}
	defer func() {
		logger.Info("Closing member index...")
		_ = index.Close()
	}()

	timeline := projection.NewTimeline(config.TimelineCapacity)
	console := sink.NewConsoleSink(os.Stdout, true)

	// The service facade is what an embedding program talks to; the
	// binary itself uses it for the startup roster dump and as the live
	// roster source behind the on-disk mirror.
	service := services.NewGroupService(bot, timeline, journal, index)

	rosterStore := repositories.NewRosterStore(db, logger)
	rosterSink := storage.NewRosterSink(rosterStore, service, logger)

	bot.Add(auditSink, index, timeline, console, rosterSink)

	// 7. Background workers
	// They are registered before Start so the bot's supervisor launches
	// them together with the reconciler, the fanout and the group loops.
	counter := event.NewCounter()
	handlers := []event.Handler{
		event.NewGroupEventHandler(logger, config.LatencyThreshold),
		event.NewWorkerRestartedAfterPanicHandler(logger, counter),
		event.NewChannelCapacityHandler(logger, config.LowCapacityThreshold),
		event.NewProcessTrackerHandler(logger),
	}
	sup.Add(
		workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
			{Name: "telemetry", Channel: telemetryChan},
			{Name: "pushes", Channel: session.Changes()},
		}, telemetryChan, config.MetricInterval),
		workers.NewProcessStatsWorker(logger, telemetryChan, config.MetricInterval),
		workers.NewTelemetryWorker(logger, config.MetricInterval, telemetryChan, handlers),
		workers.NewStorageMaintenance(logger, db, config.GCInterval),
	)

	// 8. Roster bootstrap
	// The server is the source of truth for which groups this account is
	// in. Every snapshot is installed before Start so no push can race an
	// uninstalled group.
	bootCtx, cancelBoot := context.WithTimeout(ctx, config.CallTimeout)
	defer cancelBoot()

	snaps, err := session.FetchGroups(bootCtx)
	if err != nil {
		return exitRuntime, fmt.Errorf("roster bootstrap failed: %w", err)
	}
	for _, snap := range snaps {
		bot.InstallGroup(snap)
		if err := index.IndexRoster(snap); err != nil {
			logger.Warn(fmt.Sprintf("Roster indexing failed for group %d: %v", snap.Group, err))
		}
		if err := rosterStore.Save(snap); err != nil {
			logger.Warn(fmt.Sprintf("Roster mirroring failed for group %d: %v", snap.Group, err))
		}
	}
	logger.Info(fmt.Sprintf("Member of %d groups", len(snaps)))
	dumpRoster(os.Stdout, service, snaps)

	// 9. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mon.Listen(ctx)

	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting bot runtime...")
		if err := bot.Start(ctx); err != nil {
			errChan <- fmt.Errorf("bot runtime error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the runtime crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 11. Final Cleanup (Graceful Shutdown)
	// We let the group loops finish their in-flight acknowledgements and the fanout drain.
	logger.Info("Shutting down gracefully...")
	bot.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// dumpRoster prints one line per member so the operator sees at a glance
// who the account can act on right after start.
func dumpRoster(out io.Writer, service services.IGroupService, snaps []domain.GroupSnapshot) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Group", "Name", "Member", "Role", "Card", "Mute Left"})
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, boot := range snaps {
		// Read back through the facade so the dump shows what the bot
		// actually holds, not the raw wire payload.
		snap, err := service.Roster(boot.Group)
		if err != nil {
			snap = boot
		}
		for _, m := range snap.Members {
			left := "-"
			if sec := domain.DecodeMuteSeconds(m.MuteRaw); sec > 0 {
				left = (time.Duration(sec) * time.Second).String()
			}
			table.Append([]string{
				strconv.FormatInt(int64(snap.Group), 10),
				snap.Name,
				strconv.FormatInt(int64(m.Key.Member), 10),
				m.Role.String(),
				m.Card,
				left,
			})
		}
	}
	table.Render()
}

// auditMapper renders persisted audit entries in the debug inspector.
func auditMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var entry repositories.AuditEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		row.Detail = "Error: unmarshal failed"
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
