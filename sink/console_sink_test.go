package sink_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/sink"
)

func TestConsoleSink_Consume(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	s := sink.NewConsoleSink(&buf, false)

	req.NoError(s.Consume(ctx, event.MemberMuted{
		Meta:    event.NewMeta(42, 5, 99, domain.OriginBot, at),
		Seconds: 600,
		Until:   at.Add(600 * time.Second),
	}))
	req.NoError(s.Consume(ctx, event.CardChanged{
		Meta: event.NewMeta(42, 5, 5, domain.OriginSelf, at),
		Old:  "alice",
		New:  "alice-ops",
	}))
	req.NoError(s.Consume(ctx, event.MemberRemoved{
		Meta:   event.NewMeta(42, 7, 99, domain.OriginBot, at),
		Kicked: true,
	}))

	out := buf.String()
	req.Contains(out, "09:30:00 group=42 member=5 muted for 600s by 99")
	req.Contains(out, `card "alice" -> "alice-ops"`)
	req.Contains(out, "member=7 kicked by 99")
}

func TestConsoleSink_ConcurrentWritesStayLineAtomic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	at := time.Now()

	var buf bytes.Buffer
	s := sink.NewConsoleSink(&buf, false)

	workers := 8
	perWorker := 25
	done := make(chan bool, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < perWorker; i++ {
				_ = s.Consume(ctx, event.MemberUnmuted{
					Meta: event.NewMeta(42, 5, 99, domain.OriginBot, at),
				})
			}
			done <- true
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte{'\n'})
	req.Len(lines, workers*perWorker)
	for _, line := range lines {
		req.Contains(string(line), "unmuted by 99")
	}
}
