package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

type ListQuery struct {
	Filter     *access.Filter
	UnreadOnly bool
	Kind       string
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]*Notification, int, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
}
