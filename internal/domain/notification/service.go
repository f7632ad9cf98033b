package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

type Service struct {
	repo   Repository
	engine *access.Engine
}

func NewService(repo Repository, engine *access.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

func (s *Service) GetNotification(ctx context.Context, subject *access.Subject, id uuid.UUID) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Decide(subject, access.KindNotification, access.ActionRead, n)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return n, nil
}

// ListNotifications returns the subject's own inbox, newest first.
func (s *Service) ListNotifications(ctx context.Context, subject *access.Subject, unreadOnly bool, kind string, limit, offset int) ([]*Notification, int, error) {
	filter, err := s.engine.FilterFor(subject, access.KindNotification)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListQuery{
		Filter:     filter,
		UnreadOnly: unreadOnly,
		Kind:       kind,
		Limit:      limit,
		Offset:     offset,
	})
}

// MarkRead marks one notification read. Only the recipient can see the row,
// so the read decision doubles as the mark permission.
func (s *Service) MarkRead(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientID != subject.ID {
		return fmt.Errorf("%w: not the recipient", apperr.ErrAccessDenied)
	}
	if n.ReadAt != nil {
		return nil
	}
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead marks the subject's whole inbox read and reports how many rows
// changed.
func (s *Service) MarkAllRead(ctx context.Context, subject *access.Subject) (int, error) {
	return s.repo.MarkAllRead(ctx, subject.ID)
}

func (s *Service) UnreadCount(ctx context.Context, subject *access.Subject) (int, error) {
	return s.repo.CountUnread(ctx, subject.ID)
}

func (s *Service) DeleteNotification(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindNotification, access.ActionDelete, n)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return s.repo.Delete(ctx, id)
}
