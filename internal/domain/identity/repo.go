package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByHandle(ctx context.Context, handle string) (*User, error)
	GetByHandles(ctx context.Context, handles []string) ([]*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, role access.Role, limit, offset int) ([]*User, int, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
}

type AssignmentRepository interface {
	Assign(ctx context.Context, patientID, providerID uuid.UUID) error
	Unassign(ctx context.Context, patientID, providerID uuid.UUID) error
	PatientIDsForProvider(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error)
	ProviderIDsForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
	Exists(ctx context.Context, patientID, providerID uuid.UUID) (bool, error)
}
