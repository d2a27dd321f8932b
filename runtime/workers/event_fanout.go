package workers

import (
	"context"
	"log/slog"
	"time"

	"group-lab/contract"
	"group-lab/domain/event"
)

// EventFanout broadcasts membership events to multiple in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// Permanent sinks receive every event of every group; registry sinks
// only the events of the group they subscribed to. Each delivery runs
// under its own timeout so one stuck consumer cannot hold the stream.
type EventFanout struct {
	log            *slog.Logger
	permanentSinks []contract.EventSink
	registry       contract.IRegistry
	events         chan event.GroupEvent
	telemetryChan  chan event.Event
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, permanentSinks []contract.EventSink,
	registry contract.IRegistry, events chan event.GroupEvent,
	telemetryChan chan event.Event, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:            log,
		permanentSinks: permanentSinks,
		registry:       registry,
		events:         events,
		telemetryChan:  telemetryChan,
		sinkTimeout:    sinkTimeout,
	}
}

func (w EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.fanout(ctx, evt)
			w.mirror(evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// fanout One delivery per sink, permanent first then subscribers.
func (w EventFanout) fanout(ctx context.Context, evt event.GroupEvent) {
	for _, sink := range w.permanentSinks {
		w.deliver(ctx, sink, evt)
	}
	for _, sink := range w.registry.GetSinksForGroup(evt.GroupID()) {
		w.deliver(ctx, sink, evt)
	}
}

func (w EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.GroupEvent) {
	deliveryCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(deliveryCtx, evt); err != nil {
		w.log.Warn("Sink rejected event",
			"kind", event.Kind(evt),
			"group", evt.GroupID(),
			"error", err)
	}
}

// mirror copies the event onto the telemetry channel for counters and
// lead time tracking, best effort.
func (w EventFanout) mirror(evt event.GroupEvent) {
	if w.telemetryChan == nil {
		return
	}
	select {
	case w.telemetryChan <- event.Event{
		Type:      event.GroupEventType,
		CreatedAt: time.Now().UTC(),
		Payload:   evt,
	}:
	default:
		w.log.Debug("Observability telemetry event lost")
	}
}
