package comment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	author1 := uuid.New()
	author2 := uuid.New()

	comments := []*Comment{
		{AuthorID: author1, Type: TypeQuestion, Priority: PriorityHigh,
			Status: StatusActive, CreatedAt: now.Add(-2 * time.Hour)},
		{AuthorID: author2, Type: TypeNote, Priority: PriorityNormal, IsReply: true,
			Status: StatusActive, CreatedAt: now.Add(-1 * time.Hour)},
		{AuthorID: author1, Type: TypeQuestion, Priority: PriorityNormal,
			Status: StatusResolved, CreatedAt: now.Add(-30 * 24 * time.Hour)},
	}

	a := aggregate(comments, now)
	if a.TotalComments != 3 || a.RootComments != 2 || a.Replies != 1 {
		t.Fatalf("counts = %+v", a)
	}
	if a.Participants != 2 {
		t.Fatalf("participants = %d", a.Participants)
	}
	if a.ByType[TypeQuestion] != 2 || a.ByPriority[PriorityHigh] != 1 {
		t.Fatalf("distributions = %v / %v", a.ByType, a.ByPriority)
	}
	// Only the active question counts as open; the resolved one does not.
	if a.OpenQuestions != 1 {
		t.Fatalf("open questions = %d", a.OpenQuestions)
	}
	// Two comments in the last 7 days.
	if a.ActivityRate != 2.0/7.0 {
		t.Fatalf("activity rate = %f", a.ActivityRate)
	}
	// 2 participants * 2 + 3 comments * 0.5 + 5 for activity within 24h.
	if a.EngagementScore != 10.5 {
		t.Fatalf("engagement = %f", a.EngagementScore)
	}
}

func TestAggregate_Empty(t *testing.T) {
	a := aggregate(nil, time.Now())
	if a.TotalComments != 0 || a.EngagementScore != 0 || a.LastActivity != nil {
		t.Fatalf("empty aggregate = %+v", a)
	}
}
