// Package sink hosts terminal and storage facing event consumers.
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"

	"group-lab/domain/event"
)

// ConsoleSink renders each membership event as one line on a writer.
// Moderation actions stand out in warm colours so an operator tailing
// the console spots them without reading every line.
type ConsoleSink struct {
	out     io.Writer
	colours bool
	mu      *sync.Mutex
}

// NewConsoleSink builds a sink writing to out. Colours should be off
// when the output is not a terminal.
func NewConsoleSink(out io.Writer, colours bool) ConsoleSink {
	return ConsoleSink{
		out:     out,
		colours: colours,
		mu:      &sync.Mutex{},
	}
}

func (s ConsoleSink) Consume(_ context.Context, e event.GroupEvent) error {
	line, style := render(e)
	if s.colours {
		line = style.Render(line)
	}

	// Sinks can be fed from several group loops at once.
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, line)
	return err
}

func render(e event.GroupEvent) (string, color.Style) {
	prefix := fmt.Sprintf("%s group=%d member=%d",
		e.OccurredAt().Format("15:04:05"), e.GroupID(), e.MemberID())

	switch evt := e.(type) {
	case event.PermissionChanged:
		return fmt.Sprintf("%s role %s -> %s", prefix, evt.Old, evt.New),
			color.New(color.FgCyan)
	case event.CardChanged:
		return fmt.Sprintf("%s card %q -> %q", prefix, evt.Old, evt.New),
			color.New(color.FgDefault)
	case event.TitleChanged:
		return fmt.Sprintf("%s title %q -> %q", prefix, evt.Old, evt.New),
			color.New(color.FgDefault)
	case event.MemberMuted:
		return fmt.Sprintf("%s muted for %ds by %d", prefix, evt.Seconds, evt.Operator),
			color.New(color.FgYellow)
	case event.MemberUnmuted:
		return fmt.Sprintf("%s unmuted by %d", prefix, evt.Operator),
			color.New(color.FgGreen)
	case event.MemberJoined:
		return fmt.Sprintf("%s joined as %s", prefix, evt.Role),
			color.New(color.FgGreen)
	case event.MemberRemoved:
		if evt.Kicked {
			return fmt.Sprintf("%s kicked by %d", prefix, evt.Operator),
				color.New(color.FgRed, color.OpBold)
		}
		return fmt.Sprintf("%s left the group", prefix),
			color.New(color.FgMagenta)
	default:
		return fmt.Sprintf("%s %s", prefix, event.Kind(e)),
			color.New(color.FgDefault)
	}
}
