package event

import (
	"log/slog"
	"sync"
	"time"

	"group-lab/errors"
)

// GroupEventHandler observes semantic events mirrored onto the telemetry
// channel. It tallies them per kind and flags slow pipelines: the gap
// between an event's timestamp and its observation here is the full
// apply-and-fanout latency.
type GroupEventHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
	mu               sync.Mutex
	counts           map[string]uint64
}

func NewGroupEventHandler(log *slog.Logger, latencyThreshold time.Duration) *GroupEventHandler {
	return &GroupEventHandler{
		log:              log,
		latencyThreshold: latencyThreshold,
		counts:           make(map[string]uint64),
	}
}

func (h *GroupEventHandler) Handle(e Event) {
	if e.Type != GroupEventType {
		return
	}
	payload, ok := e.Payload.(GroupEvent)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error())
		return
	}

	h.mu.Lock()
	h.counts[Kind(payload)]++
	h.mu.Unlock()

	leadTime := time.Since(payload.OccurredAt())
	h.log.Debug("telemetry: event latency",
		"group_id", int64(payload.GroupID()),
		"member_id", int64(payload.MemberID()),
		"kind", Kind(payload),
		"lead_time_ms", leadTime.Milliseconds(),
	)
	if leadTime > h.latencyThreshold {
		h.log.Warn("high latency detected", "lead_time", leadTime)
	}
}

// Count returns how many events of a kind were observed.
func (h *GroupEventHandler) Count(kind string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[kind]
}
