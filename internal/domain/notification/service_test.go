package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/notify"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Notification
	fail  bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Notification)}
}

func (m *mockRepo) Create(_ context.Context, n *Notification) error {
	if m.fail {
		return errors.New("insert failed")
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.store[n.ID] = n
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	n, ok := m.store[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *mockRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	n, ok := m.store[id]
	if !ok || n.ReadAt != nil {
		return apperr.ErrNotFound
	}
	now := time.Now()
	n.ReadAt = &now
	return nil
}

func (m *mockRepo) MarkAllRead(_ context.Context, recipientID uuid.UUID) (int, error) {
	count := 0
	now := time.Now()
	for _, n := range m.store {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, q ListQuery) ([]*Notification, int, error) {
	var r []*Notification
	for _, n := range m.store {
		if !q.Filter.Matches(n) {
			continue
		}
		if q.UnreadOnly && n.ReadAt != nil {
			continue
		}
		if q.Kind != "" && n.Kind != q.Kind {
			continue
		}
		r = append(r, n)
	}
	return r, len(r), nil
}

func (m *mockRepo) CountUnread(_ context.Context, recipientID uuid.UUID) (int, error) {
	count := 0
	for _, n := range m.store {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// -- Helpers --

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	engine, err := access.NewEngine(access.DefaultMatrix())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	repo := newMockRepo()
	return NewService(repo, engine), repo
}

func seed(repo *mockRepo, recipient uuid.UUID, kind string) *Notification {
	n := &Notification{ID: uuid.New(), RecipientID: recipient, ActorID: uuid.New(),
		Kind: kind, CreatedAt: time.Now()}
	repo.store[n.ID] = n
	return n
}

// -- Tests --

func TestListNotifications_OwnInboxOnly(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	me := uuid.New()
	seed(repo, me, "mention")
	seed(repo, me, "reply")
	seed(repo, uuid.New(), "mention")

	subject := &access.Subject{ID: me, Role: access.RolePatient}
	_, total, err := svc.ListNotifications(ctx, subject, false, "", 50, 0)
	if err != nil || total != 2 {
		t.Fatalf("list: total=%d err=%v", total, err)
	}

	// Even a doctor only sees their own inbox.
	doctor := &access.Subject{ID: uuid.New(), Role: access.RoleDoctor}
	_, total, err = svc.ListNotifications(ctx, doctor, false, "", 50, 0)
	if err != nil || total != 0 {
		t.Fatalf("doctor list: total=%d err=%v", total, err)
	}
}

func TestListNotifications_Filters(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	me := uuid.New()
	seed(repo, me, "mention")
	read := seed(repo, me, "reply")
	now := time.Now()
	read.ReadAt = &now

	subject := &access.Subject{ID: me, Role: access.RolePhysiotherapist}
	_, total, err := svc.ListNotifications(ctx, subject, true, "", 50, 0)
	if err != nil || total != 1 {
		t.Fatalf("unread only: total=%d err=%v", total, err)
	}
	_, total, err = svc.ListNotifications(ctx, subject, false, "reply", 50, 0)
	if err != nil || total != 1 {
		t.Fatalf("by kind: total=%d err=%v", total, err)
	}
}

func TestMarkRead_RecipientOnly(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	me := uuid.New()
	n := seed(repo, me, "mention")

	other := &access.Subject{ID: uuid.New(), Role: access.RoleDoctor}
	if err := svc.MarkRead(ctx, other, n.ID); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("non-recipient mark: got %v", err)
	}

	subject := &access.Subject{ID: me, Role: access.RolePatient}
	if err := svc.MarkRead(ctx, subject, n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if repo.store[n.ID].ReadAt == nil {
		t.Fatal("read_at not set")
	}
	// Marking twice is a no-op, not an error.
	if err := svc.MarkRead(ctx, subject, n.ID); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	svc, repo := newTestService(t)
	me := uuid.New()
	seed(repo, me, "mention")
	seed(repo, me, "reply")
	seed(repo, uuid.New(), "mention")

	subject := &access.Subject{ID: me, Role: access.RolePatient}
	n, err := svc.MarkAllRead(context.Background(), subject)
	if err != nil || n != 2 {
		t.Fatalf("MarkAllRead: n=%d err=%v", n, err)
	}
	count, _ := svc.UnreadCount(context.Background(), subject)
	if count != 0 {
		t.Fatalf("unread after mark-all = %d", count)
	}
}

func TestDeleteNotification_DoctorOnly(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	me := uuid.New()
	n := seed(repo, me, "mention")

	subject := &access.Subject{ID: me, Role: access.RolePatient}
	if err := svc.DeleteNotification(ctx, subject, n.ID); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("recipient delete: got %v", err)
	}
	doctor := &access.Subject{ID: uuid.New(), Role: access.RoleDoctor}
	if err := svc.DeleteNotification(ctx, doctor, n.ID); err != nil {
		t.Fatalf("doctor delete: %v", err)
	}
}

func TestStoreDispatcher_PersistsEvent(t *testing.T) {
	repo := newMockRepo()
	d := NewStoreDispatcher(repo, zerolog.Nop())

	recipient := uuid.New()
	d.Dispatch(context.Background(), notify.Event{
		Kind:      notify.KindMention,
		Recipient: recipient,
		Actor:     uuid.New(),
		ActorName: "Dr. Chen",
		Preview:   "@pat great progress this week",
	})

	if len(repo.store) != 1 {
		t.Fatalf("stored %d rows", len(repo.store))
	}
	for _, n := range repo.store {
		if n.RecipientID != recipient || n.Kind != "mention" {
			t.Fatalf("stored row = %+v", n)
		}
	}
}

func TestStoreDispatcher_SwallowsFailures(t *testing.T) {
	repo := newMockRepo()
	repo.fail = true
	d := NewStoreDispatcher(repo, zerolog.Nop())

	// Must not panic or surface the error.
	d.Dispatch(context.Background(), notify.Event{Kind: notify.KindReply, Recipient: uuid.New()})
	d.Dispatch(context.Background(), notify.Event{Kind: "unknown", Recipient: uuid.New()})
}
