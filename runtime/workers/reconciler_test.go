package workers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"group-lab/domain"
	"group-lab/mocks"
)

func TestReconciler_RoutesFeedInOrder(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feedChan := make(chan domain.Change, 4)
	feed := mocks.NewMockPushFeed(ctrl)
	feed.EXPECT().Changes().Return(feedChan).AnyTimes()
	router := mocks.NewMockChangeRouter(ctrl)

	first := domain.CardChange{ChangeMeta: domain.ChangeMeta{Group: 42, Member: 5}, Card: "first"}
	second := domain.MuteChange{ChangeMeta: domain.ChangeMeta{Group: 42, Member: 5}, RawSeconds: 600}
	third := domain.Removal{ChangeMeta: domain.ChangeMeta{Group: 42, Member: 5}, Kicked: true}

	// Feed order is the conflict rule; the router must see it unchanged.
	done := make(chan struct{})
	gomock.InOrder(
		router.EXPECT().Route(gomock.Any(), gomock.Eq(first)).Return(nil).Times(1),
		router.EXPECT().Route(gomock.Any(), gomock.Eq(second)).Return(nil).Times(1),
		router.EXPECT().Route(gomock.Any(), gomock.Eq(third)).
			DoAndReturn(func(ctx context.Context, c domain.Change) error {
				close(done)
				return nil
			}).Times(1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = NewReconciler(log, feed, router).Run(ctx) }()

	feedChan <- first
	feedChan <- second
	feedChan <- third

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Feed records were not routed in time")
	}
}

func TestReconciler_RouteErrorDropsRecordOnly(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feedChan := make(chan domain.Change, 4)
	feed := mocks.NewMockPushFeed(ctrl)
	feed.EXPECT().Changes().Return(feedChan).AnyTimes()
	router := mocks.NewMockChangeRouter(ctrl)

	// A record for a group the bot already left cannot be routed. The
	// worker logs and moves on; the feed must keep draining.
	done := make(chan struct{})
	gomock.InOrder(
		router.EXPECT().Route(gomock.Any(), gomock.Any()).
			Return(fmt.Errorf("unknown group 777")).Times(1),
		router.EXPECT().Route(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, c domain.Change) error {
				close(done)
				return nil
			}).Times(1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = NewReconciler(log, feed, router).Run(ctx) }()

	feedChan <- domain.CardChange{ChangeMeta: domain.ChangeMeta{Group: 777, Member: 5}, Card: "x"}
	feedChan <- domain.CardChange{ChangeMeta: domain.ChangeMeta{Group: 42, Member: 5}, Card: "y"}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Reconciler stopped draining after a routing error")
	}
}

func TestReconciler_FeedCloseFinishesWorker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	feedChan := make(chan domain.Change)
	feed := mocks.NewMockPushFeed(ctrl)
	feed.EXPECT().Changes().Return(feedChan).AnyTimes()
	router := mocks.NewMockChangeRouter(ctrl)

	res := make(chan error, 1)
	go func() { res <- NewReconciler(log, feed, router).Run(context.Background()) }()

	// When the session ends, the feed closes and the worker finishes
	// cleanly so the supervisor does not restart it.
	close(feedChan)

	select {
	case err := <-res:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("Reconciler did not finish after the feed closed")
	}
}
