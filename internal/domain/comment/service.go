package comment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/domain/identity"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/notify"
)

// Directory is the slice of the identity service the comment engine needs:
// care-team membership for visibility materialization and handle resolution
// for @mentions.
type Directory interface {
	TeamMemberIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
	ResolveMentions(ctx context.Context, handles []string) ([]*identity.User, error)
	UserName(ctx context.Context, id uuid.UUID) string
}

// TargetSource resolves a comment target to the patient it concerns.
type TargetSource interface {
	TargetPatient(ctx context.Context, kind string, id uuid.UUID) (uuid.UUID, error)
}

const previewLength = 80

type Service struct {
	repo          Repository
	directory     Directory
	targets       TargetSource
	engine        *access.Engine
	dispatcher    notify.Dispatcher
	flagThreshold int
}

func NewService(repo Repository, directory Directory, targets TargetSource,
	engine *access.Engine, dispatcher notify.Dispatcher, flagThreshold int) *Service {
	if flagThreshold < 1 {
		flagThreshold = 3
	}
	return &Service{
		repo:          repo,
		directory:     directory,
		targets:       targets,
		engine:        engine,
		dispatcher:    dispatcher,
		flagThreshold: flagThreshold,
	}
}

// contextRef anchors a target-level access check on a patient without
// loading the full target document.
type contextRef struct{ patientID uuid.UUID }

func (r contextRef) RelatedPatient() uuid.UUID         { return r.patientID }
func (r contextRef) Creator() uuid.UUID                { return uuid.Nil }
func (r contextRef) Author() uuid.UUID                 { return uuid.Nil }
func (r contextRef) Recipients() []uuid.UUID           { return nil }
func (r contextRef) VisibilityMode() access.Visibility { return "" }

func (s *Service) checkTargetAccess(subject *access.Subject, patientID uuid.UUID) error {
	d, err := s.engine.Decide(subject, access.KindUserProfile, access.ActionRead, contextRef{patientID})
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: no access to this patient's context", apperr.ErrAccessDenied)
	}
	return nil
}

// CreateComment posts a comment or reply. The patient anchor comes from the
// target (or the parent, for replies), never from the caller.
func (s *Service) CreateComment(ctx context.Context, subject *access.Subject, c *Comment) (*ThreadContext, error) {
	if c.Type == "" {
		c.Type = TypeNote
	}
	if c.Priority == "" {
		c.Priority = PriorityNormal
	}
	if c.Visibility == "" {
		c.Visibility = access.VisibilityPatientVisible
	}
	if !validType(c.Type) {
		return nil, fmt.Errorf("%w: invalid type %q", apperr.ErrValidation, c.Type)
	}
	if !validPriority(c.Priority) {
		return nil, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, c.Priority)
	}
	if !c.Visibility.Valid() {
		return nil, fmt.Errorf("%w: invalid visibility %q", apperr.ErrValidation, c.Visibility)
	}

	var parent *Comment
	if c.ParentID != nil {
		var err error
		parent, err = s.repo.GetByID(ctx, *c.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.IsReply {
			return nil, fmt.Errorf("%w: replies cannot be nested", apperr.ErrValidation)
		}
		c.IsReply = true
		c.TargetKind = parent.TargetKind
		c.TargetID = parent.TargetID
		c.PatientID = parent.PatientID
	} else {
		if !validTargetKind(c.TargetKind) {
			return nil, fmt.Errorf("%w: invalid target kind %q", apperr.ErrValidation, c.TargetKind)
		}
		pid, err := s.targets.TargetPatient(ctx, c.TargetKind, c.TargetID)
		if err != nil {
			return nil, err
		}
		c.PatientID = pid
	}

	c.AuthorID = subject.ID
	c.AuthorRole = subject.Role
	c.Status = StatusActive

	d, err := s.engine.Decide(subject, access.KindComment, access.ActionWrite, c)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}

	c.Content = sanitizeContent(c.Content)
	if c.Content == "" {
		return nil, fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}

	if c.VisibleTo, err = s.computeVisibleTo(ctx, c); err != nil {
		return nil, err
	}

	// Unresolvable mentions are dropped, not an error.
	mentioned, err := s.directory.ResolveMentions(ctx, extractMentions(c.Content))
	if err != nil {
		return nil, err
	}
	c.Mentions = c.Mentions[:0]
	for _, u := range mentioned {
		c.Mentions = append(c.Mentions, u.ID)
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	tc := &ThreadContext{RootID: c.ID}
	if parent != nil {
		now := time.Now()
		if err := s.repo.SetThreadStats(ctx, parent.ID, parent.ReplyCount+1, &now); err != nil {
			return nil, err
		}
		tc.RootID = parent.ID
		tc.Depth = 1
		tc.SiblingCount = parent.ReplyCount
	}

	s.emitCreateEvents(ctx, subject, c, parent)
	return tc, nil
}

func (s *Service) emitCreateEvents(ctx context.Context, subject *access.Subject, c *Comment, parent *Comment) {
	actorName := s.directory.UserName(ctx, subject.ID)
	base := notify.Event{
		Actor:      subject.ID,
		ActorName:  actorName,
		CommentID:  c.ID,
		TargetType: c.TargetKind,
		TargetID:   c.TargetID,
		Preview:    truncate(c.Content, previewLength),
		OccurredAt: time.Now(),
	}
	for _, userID := range c.Mentions {
		if userID == subject.ID {
			continue
		}
		ev := base
		ev.Kind = notify.KindMention
		ev.Recipient = userID
		s.dispatcher.Dispatch(ctx, ev)
	}
	if parent != nil && parent.AuthorID != subject.ID {
		ev := base
		ev.Kind = notify.KindReply
		ev.Recipient = parent.AuthorID
		s.dispatcher.Dispatch(ctx, ev)
	}
}

// computeVisibleTo materializes the explicit recipient set for a visibility
// mode. all_visible carries an empty set: that mode is handled structurally.
func (s *Service) computeVisibleTo(ctx context.Context, c *Comment) ([]uuid.UUID, error) {
	switch c.Visibility {
	case access.VisibilityPrivate:
		return []uuid.UUID{c.AuthorID}, nil
	case access.VisibilityPatientVisible:
		return []uuid.UUID{c.PatientID}, nil
	case access.VisibilityTeamVisible:
		return s.directory.TeamMemberIDs(ctx, c.PatientID)
	case access.VisibilityAllVisible:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: invalid visibility %q", apperr.ErrValidation, c.Visibility)
}

func (s *Service) GetComment(ctx context.Context, subject *access.Subject, id uuid.UUID) (*Comment, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Decide(subject, access.KindComment, access.ActionRead, c)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return c, nil
}

// ThreadOptions control root ordering and paging for a thread listing.
// Replies are always chronological regardless of Sort.
type ThreadOptions struct {
	Sort   string
	Limit  int
	Offset int
}

// GetThreadedComments lists the root comments on a target the viewer may
// see, each annotated with its visible replies and per-thread summary.
func (s *Service) GetThreadedComments(ctx context.Context, subject *access.Subject, targetKind string, targetID uuid.UUID, opts ThreadOptions) ([]*Thread, int, error) {
	if !validTargetKind(targetKind) {
		return nil, 0, fmt.Errorf("%w: invalid target kind %q", apperr.ErrValidation, targetKind)
	}
	patientID, err := s.targets.TargetPatient(ctx, targetKind, targetID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.checkTargetAccess(subject, patientID); err != nil {
		return nil, 0, err
	}

	filter, err := s.engine.FilterFor(subject, access.KindComment)
	if err != nil {
		return nil, 0, err
	}
	roots, total, err := s.repo.List(ctx, ListQuery{
		Filter:     filter,
		TargetKind: targetKind,
		TargetID:   targetID,
		RootsOnly:  true,
		Sort:       opts.Sort,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	threads := make([]*Thread, 0, len(roots))
	for _, root := range roots {
		t, err := s.buildThread(ctx, subject, filter, root)
		if err != nil {
			return nil, 0, err
		}
		threads = append(threads, t)
	}
	return threads, total, nil
}

func (s *Service) buildThread(ctx context.Context, subject *access.Subject, filter *access.Filter, root *Comment) (*Thread, error) {
	all, err := s.repo.ListReplies(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	replies := make([]*Comment, 0, len(all))
	for _, r := range all {
		if filter.Matches(r) {
			replies = append(replies, r)
		}
	}

	t := &Thread{Root: root, Replies: replies, LastActivity: root.CreatedAt}
	participants := map[uuid.UUID]bool{root.AuthorID: true}
	if _, read := root.ReadBy[subject.ID]; !read && root.AuthorID != subject.ID {
		t.UnreadCount++
	}
	for _, r := range replies {
		participants[r.AuthorID] = true
		if r.CreatedAt.After(t.LastActivity) {
			t.LastActivity = r.CreatedAt
		}
		if _, read := r.ReadBy[subject.ID]; !read && r.AuthorID != subject.ID {
			t.UnreadCount++
		}
		if r.Priority == PriorityHigh || r.Priority == PriorityUrgent {
			t.HasHighPrio = true
		}
	}
	t.Participants = len(participants)
	return t, nil
}

// GetCommentReplies returns a root's replies the viewer may see, oldest
// first.
func (s *Service) GetCommentReplies(ctx context.Context, subject *access.Subject, rootID uuid.UUID) ([]*Comment, error) {
	root, err := s.GetComment(ctx, subject, rootID)
	if err != nil {
		return nil, err
	}
	filter, err := s.engine.FilterFor(subject, access.KindComment)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListReplies(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	replies := make([]*Comment, 0, len(all))
	for _, r := range all {
		if filter.Matches(r) {
			replies = append(replies, r)
		}
	}
	return replies, nil
}

// AddReaction records the user's reaction, replacing any prior one. At most
// one reaction per user per comment at all times.
func (s *Service) AddReaction(ctx context.Context, subject *access.Subject, id uuid.UUID, reactionType string) error {
	if reactionType == "" {
		return fmt.Errorf("%w: reaction type is required", apperr.ErrValidation)
	}
	if _, err := s.GetComment(ctx, subject, id); err != nil {
		return err
	}
	return s.repo.SetReaction(ctx, id, subject.ID, Reaction{Type: reactionType, ReactedAt: time.Now()})
}

// RemoveReaction deletes the user's reaction if present; an absent entry is
// a no-op, not an error.
func (s *Service) RemoveReaction(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	if _, err := s.GetComment(ctx, subject, id); err != nil {
		return err
	}
	return s.repo.RemoveReaction(ctx, id, subject.ID)
}

// MarkAsRead records a read receipt once per user; repeated calls keep the
// first timestamp.
func (s *Service) MarkAsRead(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	if _, err := s.GetComment(ctx, subject, id); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id, subject.ID, time.Now())
}

// UpdateComment edits content and metadata. Author-only; the anchors and
// the thread position are immutable. A visibility change recomputes the
// materialized recipient set.
func (s *Service) UpdateComment(ctx context.Context, subject *access.Subject, c *Comment) (*Comment, error) {
	current, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != subject.ID {
		return nil, fmt.Errorf("%w: only the author may edit a comment", apperr.ErrAccessDenied)
	}
	if current.DeletedAt != nil {
		return nil, fmt.Errorf("%w: comment was deleted", apperr.ErrConflict)
	}

	if c.Content != "" {
		current.Content = sanitizeContent(c.Content)
		if current.Content == "" {
			return nil, fmt.Errorf("%w: content is required", apperr.ErrValidation)
		}
	}
	if c.Type != "" {
		if !validType(c.Type) {
			return nil, fmt.Errorf("%w: invalid type %q", apperr.ErrValidation, c.Type)
		}
		current.Type = c.Type
	}
	if c.Priority != "" {
		if !validPriority(c.Priority) {
			return nil, fmt.Errorf("%w: invalid priority %q", apperr.ErrValidation, c.Priority)
		}
		current.Priority = c.Priority
	}
	if c.Visibility != "" && c.Visibility != current.Visibility {
		if !c.Visibility.Valid() {
			return nil, fmt.Errorf("%w: invalid visibility %q", apperr.ErrValidation, c.Visibility)
		}
		current.Visibility = c.Visibility
		if current.VisibleTo, err = s.computeVisibleTo(ctx, current); err != nil {
			return nil, err
		}
	}

	mentioned, err := s.directory.ResolveMentions(ctx, extractMentions(current.Content))
	if err != nil {
		return nil, err
	}
	current.Mentions = current.Mentions[:0]
	for _, u := range mentioned {
		current.Mentions = append(current.Mentions, u.ID)
	}

	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// DeleteComment removes a comment. A root with replies is soft-deleted so
// the thread survives; a root without replies, or any reply, is removed
// outright.
func (s *Service) DeleteComment(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindComment, access.ActionDelete, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}

	if !current.IsReply {
		replies, err := s.repo.ListReplies(ctx, id)
		if err != nil {
			return err
		}
		if len(replies) > 0 {
			now := time.Now()
			current.Content = Tombstone
			current.Status = StatusArchived
			current.DeletedBy = &subject.ID
			current.DeletedAt = &now
			current.Mentions = nil
			return s.repo.Update(ctx, current)
		}
		return s.repo.Delete(ctx, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// The parent's denormalized stats are display-only; recompute from the
	// surviving replies. The delete itself already succeeded, so a recompute
	// failure surfaces to the caller rather than hiding a storage error.
	if current.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *current.ParentID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		replies, err := s.repo.ListReplies(ctx, parent.ID)
		if err != nil {
			return err
		}
		var last *time.Time
		for _, r := range replies {
			t := r.CreatedAt
			if last == nil || t.After(*last) {
				last = &t
			}
		}
		return s.repo.SetThreadStats(ctx, parent.ID, len(replies), last)
	}
	return nil
}

// ResolveComment marks a comment resolved and cascades to its direct
// question and concern replies that are still open. Provider roles only.
func (s *Service) ResolveComment(ctx context.Context, subject *access.Subject, id uuid.UUID) (*Comment, error) {
	if subject.Role != access.RolePhysiotherapist && subject.Role != access.RoleDoctor {
		return nil, fmt.Errorf("%w: only providers may resolve comments", apperr.ErrAccessDenied)
	}
	current, err := s.GetComment(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusResolved {
		return nil, fmt.Errorf("%w: comment is already resolved", apperr.ErrConflict)
	}
	if current.DeletedAt != nil {
		return nil, fmt.Errorf("%w: comment was deleted", apperr.ErrConflict)
	}

	now := time.Now()
	current.Status = StatusResolved
	current.ResolvedBy = &subject.ID
	current.ResolvedAt = &now
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}

	if !current.IsReply {
		replies, err := s.repo.ListReplies(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, r := range replies {
			if r.Status == StatusResolved {
				continue
			}
			if r.Type != TypeQuestion && r.Type != TypeConcern {
				continue
			}
			r.Status = StatusResolved
			r.ResolvedBy = &subject.ID
			r.ResolvedAt = &now
			if err := s.repo.Update(ctx, r); err != nil {
				return nil, err
			}
		}
	}

	if current.AuthorID != subject.ID {
		s.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindResolution,
			Recipient:  current.AuthorID,
			Actor:      subject.ID,
			ActorName:  s.directory.UserName(ctx, subject.ID),
			CommentID:  current.ID,
			TargetType: current.TargetKind,
			TargetID:   current.TargetID,
			Preview:    truncate(current.Content, previewLength),
			OccurredAt: now,
		})
	}
	return current, nil
}

// FlagComment records one report per user. A duplicate flag is an error so
// misuse surfaces. Reaching the threshold of distinct flags transitions the
// comment to flagged.
func (s *Service) FlagComment(ctx context.Context, subject *access.Subject, id uuid.UUID, reason string) error {
	current, err := s.GetComment(ctx, subject, id)
	if err != nil {
		return err
	}
	if _, already := current.Flags[subject.ID]; already {
		return fmt.Errorf("%w: you already flagged this comment", apperr.ErrDuplicate)
	}
	if err := s.repo.AddFlag(ctx, id, subject.ID, Flag{Reason: reason, FlaggedAt: time.Now()}); err != nil {
		return err
	}
	if len(current.Flags)+1 >= s.flagThreshold && current.Status != StatusFlagged {
		return s.repo.SetStatus(ctx, id, StatusFlagged)
	}
	return nil
}

// SearchOptions narrow a comment search; Term matches content.
type SearchOptions struct {
	Term       string
	TargetKind string
	Type       string
	Priority   string
	Status     string
	Limit      int
	Offset     int
}

// SearchComments finds comments matching the term among those the viewer
// may read, roots and replies alike.
func (s *Service) SearchComments(ctx context.Context, subject *access.Subject, opts SearchOptions) ([]*Comment, int, error) {
	if opts.Term == "" {
		return nil, 0, fmt.Errorf("%w: search term is required", apperr.ErrValidation)
	}
	filter, err := s.engine.FilterFor(subject, access.KindComment)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, ListQuery{
		Filter:     filter,
		TargetKind: opts.TargetKind,
		Type:       opts.Type,
		Priority:   opts.Priority,
		Status:     opts.Status,
		Search:     opts.Term,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
}
