package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/mocks"
	"group-lab/moderation"
	"group-lab/observability"
	"group-lab/projection"
	"group-lab/repositories"
	"group-lab/repositories/storage"
	"group-lab/runtime"
	"group-lab/runtime/workers"
	"group-lab/search"
)

// Full pipeline with a mocked wire: mutation acknowledgement and server
// pushes flow through the group loops, the fanout, and every real sink.
func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	telemetryChan := make(chan event.Event, 64)
	supervisor := workers.NewSupervisor(log, telemetryChan, 200*time.Millisecond)
	registry := runtime.NewRegistry()
	mon := observability.NewMonitoringManager(log)

	words, err := moderation.DefaultWords()
	req.NoError(err)
	screen, err := moderation.NewScreen(words.Words)
	req.NoError(err)

	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)
	feedChan := make(chan domain.Change)
	feed := mocks.NewMockPushFeed(ctrl)
	feed.EXPECT().Changes().Return(feedChan).AnyTimes()

	protocol := runtime.NewProtocol(log, transport, &screen, mon, 2*time.Second)
	bot := runtime.NewBot(log, 99, supervisor, registry, protocol, feed, mon,
		telemetryChan, 64, 3*time.Second)

	journal := repositories.NewAuditJournal(db, log, lo.ToPtr(100))
	auditSink := storage.NewAuditSink(journal, log)
	index, err := search.NewMemberIndex(log, nil)
	req.NoError(err)
	timeline := projection.NewTimeline(64)

	// 1. Probe sink registered last: when it sees an event, the real
	// sinks before it have already consumed it. A second close would
	// panic, so this also guards the one-event-per-change promise.
	cardSeen := make(chan struct{})
	muteSeen := make(chan struct{})
	removalSeen := make(chan struct{})
	probe := mocks.NewMockEventSink(ctrl)
	probe.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.GroupEvent) error {
			switch e.(type) {
			case event.CardChanged:
				close(cardSeen)
			case event.MemberMuted:
				close(muteSeen)
			case event.MemberRemoved:
				close(removalSeen)
			}
			return nil
		}).AnyTimes()

	bot.Add(auditSink, index, timeline, probe)

	group := domain.GroupID(42)
	snap := domain.GroupSnapshot{
		Bot:   99,
		Group: group,
		Name:  "ops",
		Members: []domain.MemberSnapshot{
			{Key: domain.MemberKey{Bot: 99, Group: group, Member: 99}, Role: domain.RoleOwner, Card: "the-bot"},
			{Key: domain.MemberKey{Bot: 99, Group: group, Member: 5}, Role: domain.RoleMember, Card: "alice"},
		},
	}
	bot.InstallGroup(snap)
	req.NoError(index.IndexRoster(snap))

	go func() {
		_ = bot.Start(ctx)
	}()

	// Clean everything at the end of the test
	t.Cleanup(func() {
		bot.Stop()
		_ = index.Close()
		_ = db.Close()
	})

	// 2. When the bot renames a member and the server acknowledges it
	transport.EXPECT().
		SendGroupMutation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r contract.MutationRequest) (contract.MutationResponse, error) {
			req.Equal(domain.ActionSetCard, r.Action)
			req.Equal("alice-ops", r.Text)
			return contract.MutationResponse{Code: contract.ResponseOK}, nil
		}).Times(1)

	req.NoError(bot.Member(group, 5).SetCard(ctx, "alice-ops"))

	select {
	case <-cardSeen:
		// Then the change reached every sink
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: card event has never reached the sinks")
	}

	req.Equal("alice-ops", bot.Member(group, 5).Card())

	entries, _, err := journal.RecentActions(group, nil)
	req.NoError(err)
	req.Len(entries, 1)
	req.Equal("card_changed", entries[0].Kind)

	hits, err := index.Search(ctx, "alice-ops", group, 10)
	req.NoError(err)
	req.NotEmpty(hits)
	req.Equal(domain.MemberID(5), hits[0].Member)

	// 3. When the server pushes a mute observed elsewhere
	feedChan <- domain.MuteChange{
		ChangeMeta: domain.ChangeMeta{Group: group, Member: 5, Operator: 6,
			Origin: domain.OriginAdmin, At: time.Now()},
		RawSeconds: 600,
	}

	select {
	case <-muteSeen:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: mute push has never become an event")
	}

	req.True(bot.Member(group, 5).IsMuted())
	req.Greater(bot.Member(group, 5).MuteRemaining(), int64(0))

	// 4. When the server pushes the member's eviction
	feedChan <- domain.Removal{
		ChangeMeta: domain.ChangeMeta{Group: group, Member: 5, Operator: 99,
			Origin: domain.OriginBot, At: time.Now()},
		Kicked: true,
	}

	select {
	case <-removalSeen:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: removal push has never become an event")
	}

	// The handle is detached and every projection recorded the history
	req.True(bot.Member(group, 5).Detached())

	events := timeline.Recent(group, 10)
	req.Len(events, 3)

	entries, _, err = journal.RecentActions(group, nil)
	req.NoError(err)
	req.Len(entries, 3)
	req.Equal("member_removed", entries[0].Kind)
}
