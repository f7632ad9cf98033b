package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// ListQuery scopes a task listing. Filter is always set by the service from
// the caller's read filter; Status and PatientID further narrow the result.
type ListQuery struct {
	Filter    *access.Filter
	Status    string
	PatientID uuid.UUID
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, t *RehabTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*RehabTask, error)
	Update(ctx context.Context, t *RehabTask) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]*RehabTask, int, error)
}
