package workers

import (
	"context"
	"log/slog"

	"group-lab/contract"
)

// Reconciler drains the server push feed into the per-group apply
// loops. The feed is ordered and order is the conflict rule, so routing
// blocks on a saturated group instead of reordering or dropping. A
// closed feed means the session ended; the worker then finishes and is
// not restarted.
type Reconciler struct {
	log    *slog.Logger
	feed   contract.PushFeed
	router contract.ChangeRouter
}

func NewReconciler(log *slog.Logger, feed contract.PushFeed, router contract.ChangeRouter) *Reconciler {
	return &Reconciler{log: log, feed: feed, router: router}
}

func (w Reconciler) Run(ctx context.Context) error {
	changes := w.feed.Changes()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping push reconciliation")
			return nil
		case c, ok := <-changes:
			if !ok {
				w.log.Info("Push feed closed, reconciler finishing")
				return nil
			}
			if err := w.router.Route(ctx, c); err != nil {
				// Pushes for groups the bot already left are expected
				// noise; anything else is still only droppable, the
				// server will not resend.
				w.log.Warn("Push record not routed, dropping",
					"group", c.GroupID(),
					"member", c.MemberID(),
					"error", err)
			}
		}
	}
}
