//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"group-lab/domain"
	"group-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.GroupEvent) error
}

type IRegistry interface {
	GetSinksForGroup(groupID domain.GroupID) []EventSink
	Subscribe(subscriberID string, groupID domain.GroupID, sink EventSink)
	Unsubscribe(subscriberID string, groupID domain.GroupID)
}

// ResponseCode classifies the server's verdict on a mutation request.
// Transport-level failures are returned as errors, never as codes.
type ResponseCode uint8

const (
	ResponseOK ResponseCode = iota
	ResponseDenied
	ResponseBadArgument
	ResponseNoTarget
)

// MutationRequest is one mutating call on a group member. Text carries
// the card, title, or kick reason depending on the action; Seconds is
// only meaningful for mutes.
type MutationRequest struct {
	Group   domain.GroupID
	Member  domain.MemberID
	Action  domain.Action
	Text    string
	Seconds int64
}

type MutationResponse struct {
	Code   ResponseCode
	Detail string
}

// Transport is the authenticated request/response primitive to the
// server, provided by the session layer. Implementations must honor ctx
// cancellation and deadlines; the caller never retries on its own.
type Transport interface {
	SendGroupMutation(ctx context.Context, req MutationRequest) (MutationResponse, error)
}

// PushFeed yields server-pushed change records in server order. The
// channel closes when the session ends.
type PushFeed interface {
	Changes() <-chan domain.Change
}

// ChangeRouter accepts push records and routes them to the owning
// group's serialization point.
type ChangeRouter interface {
	Route(ctx context.Context, c domain.Change) error
}

// NicknameSource resolves the contact-book nickname used as display
// fallback when a member's card is empty. Owned by the contact
// subsystem; implementations should be cheap and non-blocking.
type NicknameSource interface {
	Nickname(member domain.MemberID) string
}
