package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

var validStatuses = map[string]bool{
	StatusAssigned: true, StatusInProgress: true,
	StatusCompleted: true, StatusArchived: true,
}

// statusTransitions lists the allowed next statuses for each current one.
var statusTransitions = map[string][]string{
	StatusAssigned:   {StatusInProgress, StatusArchived},
	StatusInProgress: {StatusCompleted, StatusArchived},
	StatusCompleted:  {StatusArchived},
	StatusArchived:   {},
}

type Service struct {
	repo   Repository
	engine *access.Engine
}

func NewService(repo Repository, engine *access.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

func (s *Service) CreateTask(ctx context.Context, subject *access.Subject, t *RehabTask) error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if t.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", apperr.ErrValidation)
	}
	if t.Status == "" {
		t.Status = StatusAssigned
	}
	if !validStatuses[t.Status] {
		return fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, t.Status)
	}
	if t.StartDate.IsZero() {
		t.StartDate = time.Now()
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("%w: end_date precedes start_date", apperr.ErrValidation)
	}
	t.CreatedBy = subject.ID

	d, err := s.engine.Decide(subject, access.KindRehabTask, access.ActionWrite, t)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return s.repo.Create(ctx, t)
}

func (s *Service) GetTask(ctx context.Context, subject *access.Subject, id uuid.UUID) (*RehabTask, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Decide(subject, access.KindRehabTask, access.ActionRead, t)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return t, nil
}

// UpdateTask applies changes to an existing task. Patient and creator are
// immutable; status changes must follow the transition table.
func (s *Service) UpdateTask(ctx context.Context, subject *access.Subject, t *RehabTask) error {
	current, err := s.repo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindRehabTask, access.ActionWrite, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}

	if t.Title == "" {
		return fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if t.Status != current.Status {
		if err := checkTransition(current.Status, t.Status); err != nil {
			return err
		}
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("%w: end_date precedes start_date", apperr.ErrValidation)
	}
	t.PatientID = current.PatientID
	t.CreatedBy = current.CreatedBy
	return s.repo.Update(ctx, t)
}

// UpdateStatus moves a task along the status lifecycle without touching the
// prescription fields.
func (s *Service) UpdateStatus(ctx context.Context, subject *access.Subject, id uuid.UUID, status string) (*RehabTask, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Decide(subject, access.KindRehabTask, access.ActionWrite, current)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	if err := checkTransition(current.Status, status); err != nil {
		return nil, err
	}
	current.Status = status
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) DeleteTask(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindRehabTask, access.ActionDelete, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return s.repo.Delete(ctx, id)
}

// ListTasks returns the tasks the subject may read, narrowed by the optional
// status and patient filters. The read scope comes from the same matrix cell
// the single-task check uses.
func (s *Service) ListTasks(ctx context.Context, subject *access.Subject, status string, patientID uuid.UUID, limit, offset int) ([]*RehabTask, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, status)
	}
	filter, err := s.engine.FilterFor(subject, access.KindRehabTask)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListQuery{
		Filter:    filter,
		Status:    status,
		PatientID: patientID,
		Limit:     limit,
		Offset:    offset,
	})
}

// PatientOf reports which patient a task belongs to. Used by the progress
// service to anchor entries; it bypasses access checks because the caller's
// own write check runs against the resolved patient.
func (s *Service) PatientOf(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	t, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return uuid.Nil, err
	}
	return t.PatientID, nil
}

func checkTransition(from, to string) error {
	if !validStatuses[to] {
		return fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, to)
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move task from %s to %s", apperr.ErrConflict, from, to)
}
