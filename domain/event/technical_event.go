package event

import "time"

// Type discriminates technical (telemetry) event payloads.
type Type string

const (
	// GroupEventType wraps a semantic GroupEvent mirrored onto the
	// telemetry channel by the fanout worker.
	GroupEventType Type = "GROUP_EVENT"

	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	PIDTrackerType          Type = "PID_TRACKER"
)

// Event is the envelope for technical events. Unlike GroupEvents these
// are best-effort: producers drop them when the telemetry channel is
// full rather than slow the pipeline down.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type ProcessTracker struct {
	PID    int64
	Status string
	Cpu    float64
	Ram    uint64
}
