package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// User is an account in one of the three fixed roles. Handle is the unique
// @-mention name, stored lowercase.
type User struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Handle    string      `db:"handle" json:"handle"`
	Email     string      `db:"email" json:"email"`
	Role      access.Role `db:"role" json:"role"`
	Active    bool        `db:"active" json:"active"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// RelatedPatient treats a profile's own id as its patient facet, so "own"
// checks and provider assignment checks both resolve to the profile owner.
func (u *User) RelatedPatient() uuid.UUID         { return u.ID }
func (u *User) Creator() uuid.UUID                { return uuid.Nil }
func (u *User) Author() uuid.UUID                 { return uuid.Nil }
func (u *User) Recipients() []uuid.UUID           { return nil }
func (u *User) VisibilityMode() access.Visibility { return "" }

// Assignment is the care relation between a provider and a patient. Both
// sides of the relation are views of this single row, so assignment is
// symmetric by construction.
type Assignment struct {
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
