package comment

import (
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
)

// Target kinds a comment can annotate.
const (
	TargetTask     = "task"
	TargetProgress = "progress"
	TargetPatient  = "patient"
	TargetGeneral  = "general"
)

// Comment types.
const (
	TypeNote        = "note"
	TypeQuestion    = "question"
	TypeConcern     = "concern"
	TypeInstruction = "instruction"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Statuses. Active comments may move to resolved, archived or flagged;
// flagged comments return to active when a moderator clears the flags.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
	StatusArchived = "archived"
	StatusFlagged  = "flagged"
)

// Tombstone replaces the content of a soft-deleted root comment so its
// replies keep their thread.
const Tombstone = "[deleted]"

// Reaction is one user's reaction to a comment. A user has at most one;
// adding a second replaces the first.
type Reaction struct {
	Type      string    `json:"type"`
	ReactedAt time.Time `json:"reacted_at"`
}

// Flag is one user's report against a comment.
type Flag struct {
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}

// Comment is a threaded annotation on a task, progress entry or patient
// context. Reactions, read receipts and flags are keyed by user id so the
// one-entry-per-user invariant is structural.
type Comment struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	TargetKind string            `db:"target_kind" json:"target_kind"`
	TargetID   uuid.UUID         `db:"target_id" json:"target_id"`
	PatientID  uuid.UUID         `db:"patient_id" json:"patient_id"`
	AuthorID   uuid.UUID         `db:"author_id" json:"author_id"`
	AuthorRole access.Role       `db:"author_role" json:"author_role"`
	Content    string            `db:"content" json:"content"`
	Type       string            `db:"type" json:"type"`
	Priority   string            `db:"priority" json:"priority"`
	Visibility access.Visibility `db:"visibility" json:"visibility"`

	// VisibleTo is materialized from Visibility at write time and recomputed
	// whenever Visibility changes. It is never hand-edited.
	VisibleTo []uuid.UUID `db:"visible_to" json:"visible_to"`

	ParentID *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	IsReply  bool       `db:"is_reply" json:"is_reply"`

	Status     string     `db:"status" json:"status"`
	ResolvedBy *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	DeletedBy  *uuid.UUID `db:"deleted_by" json:"deleted_by,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`

	Reactions map[uuid.UUID]Reaction  `db:"reactions" json:"reactions"`
	ReadBy    map[uuid.UUID]time.Time `db:"read_by" json:"read_by"`
	Flags     map[uuid.UUID]Flag      `db:"flags" json:"flags"`

	Mentions []uuid.UUID `db:"mentions" json:"mentions,omitempty"`

	ReplyCount  int        `db:"reply_count" json:"reply_count"`
	LastReplyAt *time.Time `db:"last_reply_at" json:"last_reply_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (c *Comment) RelatedPatient() uuid.UUID         { return c.PatientID }
func (c *Comment) Creator() uuid.UUID                { return c.AuthorID }
func (c *Comment) Author() uuid.UUID                 { return c.AuthorID }
func (c *Comment) Recipients() []uuid.UUID           { return c.VisibleTo }
func (c *Comment) VisibilityMode() access.Visibility { return c.Visibility }

// Thread is a root comment annotated with its replies and per-thread
// summary values for the viewing user.
type Thread struct {
	Root         *Comment   `json:"root"`
	Replies      []*Comment `json:"replies"`
	UnreadCount  int        `json:"unread_count"`
	Participants int        `json:"participants"`
	LastActivity time.Time  `json:"last_activity"`
	HasHighPrio  bool       `json:"has_high_priority_replies"`
}

// ThreadContext locates a comment inside its thread.
type ThreadContext struct {
	RootID       uuid.UUID `json:"root_id"`
	Depth        int       `json:"depth"`
	SiblingCount int       `json:"sibling_count"`
}

func validTargetKind(k string) bool {
	switch k {
	case TargetTask, TargetProgress, TargetPatient, TargetGeneral:
		return true
	}
	return false
}

func validType(t string) bool {
	switch t {
	case TypeNote, TypeQuestion, TypeConcern, TypeInstruction:
		return true
	}
	return false
}

func validPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
