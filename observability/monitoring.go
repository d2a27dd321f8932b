package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats aggregates the metrics exposed to telemetry and the demo UI.
type Stats struct {
	MutationsSent    uint64  `json:"mutations_sent"`
	AcksApplied      uint64  `json:"acks_applied"`
	PushesApplied    uint64  `json:"pushes_applied"`
	PushRate         float64 `json:"push_rate"` // pushes/s since last refresh
	EventsPublished  uint64  `json:"events_published"`
	EventsDropped    uint64  `json:"events_dropped"`
	ScreenRejections uint64  `json:"screen_rejections"`
	ActiveGroups     int     `json:"active_groups"`
	AllocMemMb       uint64  `json:"alloc_mem_mb"`
	NumGC            uint32  `json:"num_gc"`
}

// MonitoringManager gère la télémétrie en temps réel
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats Stats

	// Atomic counters, cumulative since start
	MutationsSent    uint64
	AcksApplied      uint64
	PushesApplied    uint64
	EventsPublished  uint64
	EventsDropped    uint64
	ScreenRejections uint64

	// Window counter for the push rate
	pushWindow uint64
	LastCheck  time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{
		log:       log,
		LastCheck: time.Now(),
	}
}

func (mm *MonitoringManager) IncrMutationsSent() {
	atomic.AddUint64(&mm.MutationsSent, 1)
}

func (mm *MonitoringManager) IncrAcksApplied() {
	atomic.AddUint64(&mm.AcksApplied, 1)
}

func (mm *MonitoringManager) IncrPushesApplied() {
	atomic.AddUint64(&mm.PushesApplied, 1)
	atomic.AddUint64(&mm.pushWindow, 1)
}

func (mm *MonitoringManager) IncrEventsPublished() {
	atomic.AddUint64(&mm.EventsPublished, 1)
}

func (mm *MonitoringManager) IncrEventsDropped() {
	atomic.AddUint64(&mm.EventsDropped, 1)
}

func (mm *MonitoringManager) IncrScreenRejections() {
	atomic.AddUint64(&mm.ScreenRejections, 1)
}

func (mm *MonitoringManager) UpdateActiveGroups(n int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats.ActiveGroups = n
}

// Listen refreshes the aggregated snapshot every second until ctx ends.
func (mm *MonitoringManager) Listen(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	duration := now.Sub(mm.LastCheck).Seconds()

	if duration > 0 {
		window := atomic.SwapUint64(&mm.pushWindow, 0)
		mm.latestStats.PushRate = float64(window) / duration
	}
	mm.LastCheck = now

	mm.latestStats.MutationsSent = atomic.LoadUint64(&mm.MutationsSent)
	mm.latestStats.AcksApplied = atomic.LoadUint64(&mm.AcksApplied)
	mm.latestStats.PushesApplied = atomic.LoadUint64(&mm.PushesApplied)
	mm.latestStats.EventsPublished = atomic.LoadUint64(&mm.EventsPublished)
	mm.latestStats.EventsDropped = atomic.LoadUint64(&mm.EventsDropped)
	mm.latestStats.ScreenRejections = atomic.LoadUint64(&mm.ScreenRejections)

	// Go runtime metrics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC

	mm.log.Debug("Stats refreshed",
		"mutations_sent", mm.latestStats.MutationsSent,
		"pushes_applied", mm.latestStats.PushesApplied,
		"push_rate", mm.latestStats.PushRate,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

func (mm *MonitoringManager) GetLatest() Stats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
