package workers

import (
	"context"
	"log/slog"
	"time"

	"group-lab/domain/event"
)

// TelemetryWorker drains the telemetry channel through the handler
// chain at a fixed cadence. Handlers are ordered; each one decides for
// itself whether an envelope concerns it.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	telemetryChan  chan event.Event
	handlers       []event.Handler
}

func NewTelemetryWorker(log *slog.Logger,
	metricInterval time.Duration,
	telemetryChan chan event.Event,
	handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		telemetryChan:  telemetryChan,
		handlers:       handlers,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry drain")
			return nil
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain empties whatever accumulated since the last tick, then yields.
func (w TelemetryWorker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-w.telemetryChan:
			w.handle(evt)
		default:
			return
		}
	}
}

func (w TelemetryWorker) handle(event event.Event) {
	for _, h := range w.handlers {
		h.Handle(event)
	}
}
