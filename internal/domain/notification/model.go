package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// Notification is one stored event addressed to a single user. Rows are
// written by the store dispatcher when the comment engine emits mention,
// reply and resolution events.
type Notification struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RecipientID uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	ActorID     uuid.UUID  `db:"actor_id" json:"actor_id"`
	ActorName   string     `db:"actor_name" json:"actor_name"`
	Kind        string     `db:"kind" json:"kind"`
	CommentID   uuid.UUID  `db:"comment_id" json:"comment_id"`
	TargetType  string     `db:"target_type" json:"target_type"`
	TargetID    uuid.UUID  `db:"target_id" json:"target_id"`
	Preview     string     `db:"preview" json:"preview"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (n *Notification) RelatedPatient() uuid.UUID         { return uuid.Nil }
func (n *Notification) Creator() uuid.UUID                { return n.ActorID }
func (n *Notification) Author() uuid.UUID                 { return uuid.Nil }
func (n *Notification) Recipients() []uuid.UUID           { return []uuid.UUID{n.RecipientID} }
func (n *Notification) VisibilityMode() access.Visibility { return "" }
