package progress

import (
	"context"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// ListQuery narrows a listing. Filter carries the caller's access scope and
// is always set by the service layer.
type ListQuery struct {
	Filter    *access.Filter
	TaskID    uuid.UUID
	PatientID uuid.UUID
	Since     string
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]*Entry, int, error)
}
