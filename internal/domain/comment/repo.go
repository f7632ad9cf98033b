package comment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// ListQuery narrows a root-comment listing. Filter carries the viewer's
// access scope and is always set by the service layer.
type ListQuery struct {
	Filter     *access.Filter
	TargetKind string
	TargetID   uuid.UUID
	PatientID  uuid.UUID
	Status     string
	Type       string
	Priority   string
	Search     string
	Sort       string
	RootsOnly  bool
	Limit      int
	Offset     int
}

// Repository stores comments. Reaction, read-receipt and flag mutations are
// per-key upserts so concurrent writers on the same comment do not lose
// updates.
type Repository interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	Update(ctx context.Context, c *Comment) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, q ListQuery) ([]*Comment, int, error)
	// ListReplies returns a parent's direct replies oldest first.
	ListReplies(ctx context.Context, parentID uuid.UUID) ([]*Comment, error)

	SetReaction(ctx context.Context, id, userID uuid.UUID, r Reaction) error
	RemoveReaction(ctx context.Context, id, userID uuid.UUID) error
	// MarkRead records a read receipt once; later calls for the same user
	// keep the original timestamp.
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	AddFlag(ctx context.Context, id, userID uuid.UUID, f Flag) error

	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetThreadStats(ctx context.Context, id uuid.UUID, replyCount int, lastReplyAt *time.Time) error
}
