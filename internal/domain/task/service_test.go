package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*RehabTask
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*RehabTask)}
}

func (m *mockRepo) Create(_ context.Context, t *RehabTask) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.store[t.ID] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*RehabTask, error) {
	t, ok := m.store[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, t *RehabTask) error {
	if _, ok := m.store[t.ID]; !ok {
		return apperr.ErrNotFound
	}
	m.store[t.ID] = t
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, q ListQuery) ([]*RehabTask, int, error) {
	var r []*RehabTask
	for _, t := range m.store {
		if !q.Filter.Matches(t) {
			continue
		}
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if q.PatientID != uuid.Nil && t.PatientID != q.PatientID {
			continue
		}
		r = append(r, t)
	}
	return r, len(r), nil
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

func physioFor(patientIDs ...uuid.UUID) *access.Subject {
	return &access.Subject{ID: uuid.New(), Role: access.RolePhysiotherapist, AssignedPatients: patientIDs}
}

// -- Tests --

func TestCreateTask_ProviderForAssignedPatient(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	physio := physioFor(patientID)

	task := &RehabTask{PatientID: patientID, Title: "Knee bends", Frequency: "daily"}
	if err := svc.CreateTask(ctx, physio, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	stored := repo.store[task.ID]
	if stored.Status != StatusAssigned {
		t.Fatalf("status = %q", stored.Status)
	}
	if stored.CreatedBy != physio.ID {
		t.Fatal("creator not stamped from subject")
	}
}

func TestCreateTask_DeniedForUnassignedPatient(t *testing.T) {
	svc, _ := newTestService(t)
	physio := physioFor(uuid.New())

	task := &RehabTask{PatientID: uuid.New(), Title: "Knee bends"}
	err := svc.CreateTask(context.Background(), physio, task)
	if !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestCreateTask_PatientCannotCreate(t *testing.T) {
	svc, _ := newTestService(t)
	patient := &access.Subject{ID: uuid.New(), Role: access.RolePatient}

	task := &RehabTask{PatientID: patient.ID, Title: "Self-assigned"}
	err := svc.CreateTask(context.Background(), patient, task)
	if !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	patientID := uuid.New()
	physio := physioFor(patientID)
	ctx := context.Background()

	if err := svc.CreateTask(ctx, physio, &RehabTask{PatientID: patientID}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing title: got %v", err)
	}
	if err := svc.CreateTask(ctx, physio, &RehabTask{Title: "T"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing patient: got %v", err)
	}

	past := time.Now().Add(-48 * time.Hour)
	bad := &RehabTask{PatientID: patientID, Title: "T", StartDate: time.Now(), EndDate: &past}
	if err := svc.CreateTask(ctx, physio, bad); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("end before start: got %v", err)
	}
}

func TestGetTask_PatientReadsOwn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	physio := physioFor(patientID)

	task := &RehabTask{PatientID: patientID, Title: "Squats"}
	if err := svc.CreateTask(ctx, physio, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	patient := &access.Subject{ID: patientID, Role: access.RolePatient}
	if _, err := svc.GetTask(ctx, patient, task.ID); err != nil {
		t.Fatalf("patient read own task: %v", err)
	}

	other := &access.Subject{ID: uuid.New(), Role: access.RolePatient}
	if _, err := svc.GetTask(ctx, other, task.ID); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("other patient read: got %v", err)
	}
}

func TestUpdateTask_PreservesOwnership(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	physio := physioFor(patientID)

	task := &RehabTask{PatientID: patientID, Title: "Squats"}
	if err := svc.CreateTask(ctx, physio, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	update := &RehabTask{ID: task.ID, PatientID: uuid.New(), CreatedBy: uuid.New(),
		Title: "Deeper squats", Status: StatusAssigned, StartDate: task.StartDate}
	if err := svc.UpdateTask(ctx, physio, update); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	stored := repo.store[task.ID]
	if stored.PatientID != patientID || stored.CreatedBy != physio.ID {
		t.Fatal("ownership fields were rewritten")
	}
	if stored.Title != "Deeper squats" {
		t.Fatalf("title = %q", stored.Title)
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	physio := physioFor(patientID)

	task := &RehabTask{PatientID: patientID, Title: "Squats"}
	if err := svc.CreateTask(ctx, physio, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// assigned -> in_progress -> completed follows the lifecycle.
	if _, err := svc.UpdateStatus(ctx, physio, task.ID, StatusInProgress); err != nil {
		t.Fatalf("to in_progress: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, physio, task.ID, StatusCompleted); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	// completed -> assigned is not a legal transition.
	if _, err := svc.UpdateStatus(ctx, physio, task.ID, StatusAssigned); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("illegal transition: got %v", err)
	}
}

func TestDeleteTask_CreatorOnlyForPhysio(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	patientID := uuid.New()
	creator := physioFor(patientID)

	task := &RehabTask{PatientID: patientID, Title: "Squats"}
	if err := svc.CreateTask(ctx, creator, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// Another physio assigned to the same patient may write but not delete.
	colleague := physioFor(patientID)
	if err := svc.DeleteTask(ctx, colleague, task.ID); !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("colleague delete: got %v", err)
	}
	if err := svc.DeleteTask(ctx, creator, task.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}
}

func TestListTasks_ScopedByReadFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p1 := uuid.New()
	p2 := uuid.New()
	physio := physioFor(p1)
	doctor := &access.Subject{ID: uuid.New(), Role: access.RoleDoctor}

	for _, pid := range []uuid.UUID{p1, p2} {
		task := &RehabTask{PatientID: pid, Title: "Stretch"}
		if err := svc.CreateTask(ctx, doctor, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	_, total, err := svc.ListTasks(ctx, doctor, "", uuid.Nil, 50, 0)
	if err != nil || total != 2 {
		t.Fatalf("doctor list: total=%d err=%v", total, err)
	}

	items, total, err := svc.ListTasks(ctx, physio, "", uuid.Nil, 50, 0)
	if err != nil || total != 1 {
		t.Fatalf("physio list: total=%d err=%v", total, err)
	}
	if items[0].PatientID != p1 {
		t.Fatal("physio saw an unassigned patient's task")
	}

	patient := &access.Subject{ID: p2, Role: access.RolePatient}
	items, total, err = svc.ListTasks(ctx, patient, "", uuid.Nil, 50, 0)
	if err != nil || total != 1 || items[0].PatientID != p2 {
		t.Fatalf("patient list: total=%d err=%v", total, err)
	}
}

func TestListTasks_RejectsBadStatus(t *testing.T) {
	svc, _ := newTestService(t)
	doctor := &access.Subject{ID: uuid.New(), Role: access.RoleDoctor}
	_, _, err := svc.ListTasks(context.Background(), doctor, "paused", uuid.Nil, 50, 0)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
