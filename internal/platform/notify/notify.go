// Package notify defines the event surface the comment engine emits on.
// Delivery is fire and forget: dispatch failures are logged by the
// implementation and never fail the operation that produced the event.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an outbound event.
type Kind string

const (
	KindMention    Kind = "mention"
	KindReply      Kind = "reply"
	KindResolution Kind = "resolution"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMention, KindReply, KindResolution:
		return true
	}
	return false
}

// Event is one notification-worthy occurrence. Recipient is the single user
// the event addresses; producers emit one event per recipient.
type Event struct {
	Kind       Kind
	Recipient  uuid.UUID
	Actor      uuid.UUID
	ActorName  string
	CommentID  uuid.UUID
	TargetType string
	TargetID   uuid.UUID
	Preview    string
	OccurredAt time.Time
}

// Dispatcher consumes events. Implementations must not block the caller on
// delivery and have no error to return; a lost event is logged, not surfaced.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Dispatch(context.Context, Event) {}
