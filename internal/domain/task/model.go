package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// RehabTask is an exercise prescription a provider assigns to a patient.
type RehabTask struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	CreatedBy       uuid.UUID  `db:"created_by" json:"created_by"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	Status          string     `db:"status" json:"status"`
	Frequency       string     `db:"frequency" json:"frequency"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

func (t *RehabTask) RelatedPatient() uuid.UUID         { return t.PatientID }
func (t *RehabTask) Creator() uuid.UUID                { return t.CreatedBy }
func (t *RehabTask) Author() uuid.UUID                 { return uuid.Nil }
func (t *RehabTask) Recipients() []uuid.UUID           { return nil }
func (t *RehabTask) VisibilityMode() access.Visibility { return "" }
