package projection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"group-lab/domain"
	"group-lab/domain/event"
)

func TestTimeline_Consume_ModerationEvents(t *testing.T) {
	timeline := NewTimeline(0)
	ctx := context.Background()
	at := time.Now()

	evt1 := event.MemberMuted{
		Meta:    event.NewMeta(42, 1, 99, domain.OriginBot, at),
		Seconds: 600,
		Until:   at.Add(600 * time.Second),
	}
	evt2 := event.CardChanged{
		Meta: event.NewMeta(42, 2, 2, domain.OriginSelf, at.Add(time.Second)),
		Old:  "alice",
		New:  "clara",
	}

	require.NoError(t, timeline.Consume(ctx, evt1))
	require.NoError(t, timeline.Consume(ctx, evt2))

	recent := timeline.Recent(42, 0)
	require.Len(t, recent, 2)
	require.Equal(t, domain.MemberID(2), recent[0].MemberID())
	require.Equal(t, domain.MemberID(1), recent[1].MemberID())
}

func TestTimeline_Capacity_DropsOldest(t *testing.T) {
	timeline := NewTimeline(3)
	ctx := context.Background()
	at := time.Now()

	for i := 1; i <= 5; i++ {
		evt := event.TitleChanged{
			Meta: event.NewMeta(42, domain.MemberID(i), 99, domain.OriginBot, at.Add(time.Duration(i)*time.Second)),
			New:  fmt.Sprintf("title %d", i),
		}
		require.NoError(t, timeline.Consume(ctx, evt))
	}

	recent := timeline.Recent(42, 0)
	require.Len(t, recent, 3)
	require.Equal(t, domain.MemberID(5), recent[0].MemberID())
	require.Equal(t, domain.MemberID(3), recent[2].MemberID())
}

func TestTimeline_Recent_IsScopedByGroup(t *testing.T) {
	timeline := NewTimeline(0)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, timeline.Consume(ctx, event.MemberUnmuted{Meta: event.NewMeta(1, 10, 0, domain.OriginAdmin, at)}))
	require.NoError(t, timeline.Consume(ctx, event.MemberUnmuted{Meta: event.NewMeta(2, 20, 0, domain.OriginAdmin, at)}))

	require.Len(t, timeline.Recent(1, 0), 1)
	require.Len(t, timeline.Recent(2, 0), 1)
	require.Empty(t, timeline.Recent(3, 0))

	timeline.DropGroup(1)
	require.Empty(t, timeline.Recent(1, 0))
}
