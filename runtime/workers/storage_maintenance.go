package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// StorageMaintenance reclaims Badger value-log space in the background.
// Badger never rewrites vlog files on its own; a client appending audit
// entries and roster snapshots for months grows its data directory
// forever unless someone runs the GC. One pass per tick, repeated until
// Badger reports nothing left to rewrite.
type StorageMaintenance struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewStorageMaintenance(log *slog.Logger, db *badger.DB, interval time.Duration) *StorageMaintenance {
	return &StorageMaintenance{log: log, db: db, interval: interval}
}

func (w *StorageMaintenance) Run(ctx context.Context) error {
	w.log.Info("Starting storage maintenance worker", slog.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping storage maintenance")
			return nil
		case <-ticker.C:
			w.collect()
		}
	}
}

func (w *StorageMaintenance) collect() {
	for {
		err := w.db.RunValueLogGC(0.5)
		if err == nil {
			// A file was rewritten, there may be more.
			continue
		}
		if errors.Is(err, badger.ErrNoRewrite) {
			w.log.Debug("Value log GC: nothing to reclaim")
		} else {
			// Rejected runs (GC already in flight, in-memory mode) are
			// not worth crashing a supervised worker over.
			w.log.Warn("Value log GC failed", "error", err)
		}
		return
	}
}
