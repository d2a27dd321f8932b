package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"group-lab/domain/event"
	"group-lab/repositories"
)

// AuditSink appends every membership event to the on-disk journal. It
// is registered as a permanent sink, so it sees all groups whether or
// not anyone subscribed to them.
type AuditSink struct {
	journal repositories.IAuditJournal
	log     *slog.Logger
}

func NewAuditSink(journal repositories.IAuditJournal, log *slog.Logger) AuditSink {
	return AuditSink{journal: journal, log: log}
}

func (s AuditSink) Consume(_ context.Context, e event.GroupEvent) error {
	entry, ok := toAuditEntry(e)
	if !ok {
		s.log.Debug(fmt.Sprintf("Not journaled event : %v", e))
		return nil
	}
	return s.journal.Append(entry)
}

func toAuditEntry(e event.GroupEvent) (repositories.AuditEntry, bool) {
	var meta event.Meta
	var detail string

	switch evt := e.(type) {
	case event.PermissionChanged:
		meta = evt.Meta
		detail = fmt.Sprintf("%s -> %s", evt.Old, evt.New)
	case event.CardChanged:
		meta = evt.Meta
		detail = fmt.Sprintf("%q -> %q", evt.Old, evt.New)
	case event.TitleChanged:
		meta = evt.Meta
		detail = fmt.Sprintf("%q -> %q", evt.Old, evt.New)
	case event.MemberMuted:
		meta = evt.Meta
		detail = fmt.Sprintf("%ds until %s", evt.Seconds, evt.Until.UTC().Format(time.RFC3339))
	case event.MemberUnmuted:
		meta = evt.Meta
	case event.MemberJoined:
		meta = evt.Meta
		detail = fmt.Sprintf("role %s", evt.Role)
	case event.MemberRemoved:
		meta = evt.Meta
		if evt.Kicked {
			detail = "kicked"
		} else {
			detail = "left"
		}
	default:
		return repositories.AuditEntry{}, false
	}

	return repositories.AuditEntry{
		ID:       meta.ID,
		Group:    meta.Group,
		Member:   meta.Member,
		Operator: meta.Operator,
		Origin:   meta.Origin.String(),
		Kind:     event.Kind(e),
		Detail:   detail,
		At:       meta.At,
	}, true
}
