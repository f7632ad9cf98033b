package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

// TaskSource reports which patient a rehab task belongs to. Entries may only
// be logged against a task the patient actually has.
type TaskSource interface {
	PatientOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	repo   Repository
	tasks  TaskSource
	engine *access.Engine
}

func NewService(repo Repository, tasks TaskSource, engine *access.Engine) *Service {
	return &Service{repo: repo, tasks: tasks, engine: engine}
}

// RecordEntry logs a performance of a task. Patients log against themselves;
// providers log for assigned patients (supervised sessions), so the patient
// is taken from the task rather than from the caller.
func (s *Service) RecordEntry(ctx context.Context, subject *access.Subject, e *Entry) error {
	if e.TaskID == uuid.Nil {
		return fmt.Errorf("%w: task_id is required", apperr.ErrValidation)
	}
	if err := validateScores(e); err != nil {
		return err
	}
	patientID, err := s.tasks.PatientOf(ctx, e.TaskID)
	if err != nil {
		return fmt.Errorf("%w: unknown task", apperr.ErrValidation)
	}
	e.PatientID = patientID
	e.RecordedBy = subject.ID
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	d, err := s.engine.Decide(subject, access.KindProgressEntry, access.ActionWrite, e)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return s.repo.Create(ctx, e)
}

func (s *Service) GetEntry(ctx context.Context, subject *access.Subject, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Decide(subject, access.KindProgressEntry, access.ActionRead, e)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return e, nil
}

// UpdateEntry corrects the scores or notes of an entry. The task, patient and
// recorder are immutable.
func (s *Service) UpdateEntry(ctx context.Context, subject *access.Subject, e *Entry) error {
	current, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindProgressEntry, access.ActionWrite, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	if err := validateScores(e); err != nil {
		return err
	}
	e.TaskID = current.TaskID
	e.PatientID = current.PatientID
	e.RecordedBy = current.RecordedBy
	return s.repo.Update(ctx, e)
}

func (s *Service) DeleteEntry(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindProgressEntry, access.ActionDelete, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return s.repo.Delete(ctx, id)
}

// ListEntries returns the entries the subject may read, newest first.
func (s *Service) ListEntries(ctx context.Context, subject *access.Subject, taskID, patientID uuid.UUID, since string, limit, offset int) ([]*Entry, int, error) {
	if since != "" {
		if _, err := time.Parse(time.RFC3339, since); err != nil {
			return nil, 0, fmt.Errorf("%w: since must be RFC 3339", apperr.ErrValidation)
		}
	}
	filter, err := s.engine.FilterFor(subject, access.KindProgressEntry)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListQuery{
		Filter:    filter,
		TaskID:    taskID,
		PatientID: patientID,
		Since:     since,
		Limit:     limit,
		Offset:    offset,
	})
}

// PatientOf reports which patient an entry concerns. Used to anchor
// comments on progress entries.
func (s *Service) PatientOf(ctx context.Context, entryID uuid.UUID) (uuid.UUID, error) {
	e, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return uuid.Nil, err
	}
	return e.PatientID, nil
}

func validateScores(e *Entry) error {
	if e.PainLevel < 0 || e.PainLevel > 10 {
		return fmt.Errorf("%w: pain_level must be between 0 and 10", apperr.ErrValidation)
	}
	if e.Difficulty < 0 || e.Difficulty > 10 {
		return fmt.Errorf("%w: difficulty must be between 0 and 10", apperr.ErrValidation)
	}
	if e.CompletedSets < 0 {
		return fmt.Errorf("%w: completed_sets cannot be negative", apperr.ErrValidation)
	}
	return nil
}
