package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// Entry is one logged performance of a rehab task: how much was done and how
// it felt. Patients log their own entries; providers may log on behalf of
// their assigned patients (supervised sessions).
type Entry struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TaskID        uuid.UUID `db:"task_id" json:"task_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	RecordedBy    uuid.UUID `db:"recorded_by" json:"recorded_by"`
	PainLevel     int       `db:"pain_level" json:"pain_level"`
	Difficulty    int       `db:"difficulty" json:"difficulty"`
	CompletedSets int       `db:"completed_sets" json:"completed_sets"`
	Notes         string    `db:"notes" json:"notes"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (e *Entry) RelatedPatient() uuid.UUID         { return e.PatientID }
func (e *Entry) Creator() uuid.UUID                { return e.RecordedBy }
func (e *Entry) Author() uuid.UUID                 { return uuid.Nil }
func (e *Entry) Recipients() []uuid.UUID           { return nil }
func (e *Entry) VisibilityMode() access.Visibility { return "" }
