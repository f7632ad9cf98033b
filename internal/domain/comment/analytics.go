package comment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

// analyticsWindow is how far back the activity rate looks.
const analyticsWindow = 7 * 24 * time.Hour

// Analytics summarizes a target's discussion as the viewer sees it. The
// aggregation runs over the viewer's own read scope, so two viewers with
// different visibility get different numbers.
type Analytics struct {
	TotalComments   int            `json:"total_comments"`
	RootComments    int            `json:"root_comments"`
	Replies         int            `json:"replies"`
	Participants    int            `json:"participants"`
	ByType          map[string]int `json:"by_type"`
	ByPriority      map[string]int `json:"by_priority"`
	OpenQuestions   int            `json:"open_questions"`
	ActivityRate    float64        `json:"activity_rate_per_day"`
	LastActivity    *time.Time     `json:"last_activity,omitempty"`
	EngagementScore float64        `json:"engagement_score"`
}

// DiscussionAnalytics aggregates the comments on a target that the viewer
// may read. It reuses the same filter as listing so the numbers can never
// include comments the viewer could not see.
func (s *Service) DiscussionAnalytics(ctx context.Context, subject *access.Subject, targetKind string, targetID uuid.UUID) (*Analytics, error) {
	if !validTargetKind(targetKind) {
		return nil, fmt.Errorf("%w: invalid target kind %q", apperr.ErrValidation, targetKind)
	}
	patientID, err := s.targets.TargetPatient(ctx, targetKind, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTargetAccess(subject, patientID); err != nil {
		return nil, err
	}
	filter, err := s.engine.FilterFor(subject, access.KindComment)
	if err != nil {
		return nil, err
	}
	comments, _, err := s.repo.List(ctx, ListQuery{
		Filter:     filter,
		TargetKind: targetKind,
		TargetID:   targetID,
		Limit:      10000,
	})
	if err != nil {
		return nil, err
	}
	return aggregate(comments, time.Now()), nil
}

func aggregate(comments []*Comment, now time.Time) *Analytics {
	a := &Analytics{
		ByType:     make(map[string]int),
		ByPriority: make(map[string]int),
	}
	participants := make(map[uuid.UUID]bool)
	recent := 0
	for _, c := range comments {
		a.TotalComments++
		if c.IsReply {
			a.Replies++
		} else {
			a.RootComments++
		}
		participants[c.AuthorID] = true
		a.ByType[c.Type]++
		a.ByPriority[c.Priority]++
		if c.Type == TypeQuestion && c.Status == StatusActive {
			a.OpenQuestions++
		}
		if now.Sub(c.CreatedAt) <= analyticsWindow {
			recent++
		}
		if a.LastActivity == nil || c.CreatedAt.After(*a.LastActivity) {
			t := c.CreatedAt
			a.LastActivity = &t
		}
	}
	a.Participants = len(participants)
	a.ActivityRate = float64(recent) / 7.0

	// Engagement blends participant diversity, volume and recency.
	score := float64(a.Participants)*2 + float64(a.TotalComments)*0.5
	if a.LastActivity != nil {
		switch age := now.Sub(*a.LastActivity); {
		case age <= 24*time.Hour:
			score += 5
		case age <= analyticsWindow:
			score += 2
		}
	}
	a.EngagementScore = score
	return a
}
