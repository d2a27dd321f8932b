//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_member_index.go -package=mocks

// Package search maintains a full-text directory of known group members.
// The index is fed by membership events and answers free-text lookups over
// cards, nicknames, and special titles, so a UI can resolve "who is the
// guy called ops-bob" without scanning rosters.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/domain/event"
	"group-lab/errors"
)

const defaultSearchLimit = 20

type IMemberIndex interface {
	Consume(ctx context.Context, e event.GroupEvent) error
	IndexRoster(snap domain.GroupSnapshot) error
	Search(ctx context.Context, text string, group domain.GroupID, limit int) ([]MemberHit, error)
	Close() error
}

// MemberHit is one directory match, carrying the stored attributes so
// callers can render a result line without a roster round trip.
type MemberHit struct {
	Group  domain.GroupID
	Member domain.MemberID
	Role   string
	Card   string
	Title  string
	Name   string
	Score  float64
}

// memberDoc mirrors the indexed attributes of one member. Bluge documents
// are replaced whole on update while events only carry deltas, so the
// mirror is what turns a single changed field into a complete document.
type memberDoc struct {
	group  domain.GroupID
	member domain.MemberID
	role   string
	card   string
	title  string
	name   string
}

// MemberIndex implements contract.EventSink over an in-memory bluge index.
// Register it as a permanent sink and seed it with IndexRoster when a
// group is installed; events keep it current from there.
type MemberIndex struct {
	log       *slog.Logger
	writer    *bluge.Writer
	nicknames contract.NicknameSource

	mu   sync.Mutex
	docs map[string]*memberDoc
}

func NewMemberIndex(log *slog.Logger, nicknames contract.NicknameSource) (*MemberIndex, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open member index: %w", err)
	}
	return &MemberIndex{
		log:       log,
		writer:    writer,
		nicknames: nicknames,
		docs:      make(map[string]*memberDoc),
	}, nil
}

// IndexRoster loads every member of an installed group in one batch.
// Members already present are replaced, so re-installing a group after a
// reconnect converges the directory to the fresh snapshot.
func (x *MemberIndex) IndexRoster(snap domain.GroupSnapshot) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	batch := bluge.NewBatch()
	for _, m := range snap.Members {
		d := &memberDoc{
			group:  snap.Group,
			member: m.Key.Member,
			role:   m.Role.String(),
			card:   m.Card,
			title:  m.Title,
			name:   x.nickname(m.Key.Member),
		}
		key := docKey(snap.Group, m.Key.Member)
		x.docs[key] = d
		doc := buildDoc(key, d)
		batch.Update(doc.ID(), doc)
	}
	if err := x.writer.Batch(batch); err != nil {
		return fmt.Errorf("failed to index roster of group %d: %w", snap.Group, err)
	}
	x.log.Debug(fmt.Sprintf("Indexed %d members of group %d", len(snap.Members), snap.Group))
	return nil
}

// Consume applies one membership event to the directory. Updates are
// committed synchronously, a subsequent Search sees them without any
// flush step.
func (x *MemberIndex) Consume(_ context.Context, e event.GroupEvent) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := docKey(e.GroupID(), e.MemberID())
	switch evt := e.(type) {
	case event.MemberJoined:
		x.docs[key] = &memberDoc{
			group:  evt.Group,
			member: evt.Member,
			role:   evt.Role.String(),
			card:   evt.Card,
			name:   x.nickname(evt.Member),
		}
	case event.PermissionChanged:
		x.entry(key, e).role = evt.New.String()
	case event.CardChanged:
		x.entry(key, e).card = evt.New
	case event.TitleChanged:
		x.entry(key, e).title = evt.New
	case event.MemberRemoved:
		delete(x.docs, key)
		if err := x.writer.Delete(bluge.Identifier(key)); err != nil {
			return fmt.Errorf("failed to unindex member %s: %w", key, err)
		}
		return nil
	default:
		// Mute state is not part of the directory.
		return nil
	}
	return x.indexLocked(key)
}

// Search matches text against cards, nicknames, and titles of one group.
// A zero or negative limit falls back to a sane page size.
func (x *MemberIndex) Search(ctx context.Context, text string, group domain.GroupID, limit int) ([]MemberHit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty search text", errors.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	// Prefix terms bypass the analyzer, the input is lowered by hand to
	// line up with the analyzed index terms.
	lowered := strings.ToLower(text)
	attributes := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(text).SetField("card")).
		AddShould(bluge.NewMatchQuery(text).SetField("name")).
		AddShould(bluge.NewMatchQuery(text).SetField("title")).
		AddShould(bluge.NewPrefixQuery(lowered).SetField("card")).
		AddShould(bluge.NewPrefixQuery(lowered).SetField("name")).
		SetMinShould(1)
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(group), 10)).SetField("group")).
		AddMust(attributes)

	reader, err := x.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer reader.Close()

	it, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("failed to search members: %w", err)
	}

	var hits []MemberHit
	next, err := it.Next()
	for err == nil && next != nil {
		hit := MemberHit{Group: group, Score: next.Score}
		verr := next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "member":
				id, _ := strconv.ParseInt(string(value), 10, 64)
				hit.Member = domain.MemberID(id)
			case "role":
				hit.Role = string(value)
			case "card":
				hit.Card = string(value)
			case "title":
				hit.Title = string(value)
			case "name":
				hit.Name = string(value)
			}
			return true
		})
		if verr != nil {
			return nil, fmt.Errorf("failed to read stored fields: %w", verr)
		}
		hits = append(hits, hit)
		next, err = it.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return hits, nil
}

func (x *MemberIndex) Close() error {
	return x.writer.Close()
}

// entry returns the mirror entry for the event's member, creating a blank
// one when a change precedes any observed join.
func (x *MemberIndex) entry(key string, e event.GroupEvent) *memberDoc {
	d, ok := x.docs[key]
	if !ok {
		d = &memberDoc{
			group:  e.GroupID(),
			member: e.MemberID(),
			name:   x.nickname(e.MemberID()),
		}
		x.docs[key] = d
	}
	return d
}

func (x *MemberIndex) indexLocked(key string) error {
	doc := buildDoc(key, x.docs[key])
	if err := x.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to index member %s: %w", key, err)
	}
	return nil
}

func (x *MemberIndex) nickname(id domain.MemberID) string {
	if x.nicknames == nil {
		return ""
	}
	return x.nicknames.Nickname(id)
}

func buildDoc(key string, d *memberDoc) *bluge.Document {
	return bluge.NewDocument(key).
		AddField(bluge.NewKeywordField("group", strconv.FormatInt(int64(d.group), 10)).StoreValue()).
		AddField(bluge.NewKeywordField("member", strconv.FormatInt(int64(d.member), 10)).StoreValue()).
		AddField(bluge.NewKeywordField("role", d.role).StoreValue()).
		AddField(bluge.NewTextField("card", d.card).StoreValue()).
		AddField(bluge.NewTextField("title", d.title).StoreValue()).
		AddField(bluge.NewTextField("name", d.name).StoreValue())
}

func docKey(group domain.GroupID, member domain.MemberID) string {
	return fmt.Sprintf("%d:%d", group, member)
}
