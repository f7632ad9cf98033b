package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type Service struct {
	users       UserRepository
	assignments AssignmentRepository
	engine      *access.Engine
}

func NewService(users UserRepository, assignments AssignmentRepository, engine *access.Engine) *Service {
	return &Service{users: users, assignments: assignments, engine: engine}
}

func (s *Service) RegisterUser(ctx context.Context, u *User) error {
	if u.Name == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	u.Handle = strings.ToLower(strings.TrimSpace(u.Handle))
	if !handlePattern.MatchString(u.Handle) {
		return fmt.Errorf("%w: handle must be 3-30 characters of a-z, 0-9, _", apperr.ErrValidation)
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: valid email is required", apperr.ErrValidation)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: role must be one of patient, physiotherapist, doctor", apperr.ErrValidation)
	}
	u.Active = true
	return s.users.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, subject *access.Subject, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.Decide(subject, access.KindUserProfile, access.ActionRead, u)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}
	return u, nil
}

// UpdateUser applies profile changes. Role is fixed at registration and
// silently preserved.
func (s *Service) UpdateUser(ctx context.Context, subject *access.Subject, u *User) error {
	current, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	d, err := s.engine.Decide(subject, access.KindUserProfile, access.ActionWrite, current)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", apperr.ErrAccessDenied, d.Reason)
	}

	u.Handle = strings.ToLower(strings.TrimSpace(u.Handle))
	if !handlePattern.MatchString(u.Handle) {
		return fmt.Errorf("%w: handle must be 3-30 characters of a-z, 0-9, _", apperr.ErrValidation)
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: valid email is required", apperr.ErrValidation)
	}
	u.Role = current.Role
	return s.users.Update(ctx, u)
}

// DeactivateUser soft-disables an account. The row is kept so authored
// comments and progress history stay attributable; a deactivated user stops
// resolving as a mention target. Owners can deactivate themselves, doctors
// can deactivate anyone.
func (s *Service) DeactivateUser(ctx context.Context, subject *access.Subject, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if subject.ID != id && subject.Role != access.RoleDoctor {
		return fmt.Errorf("%w: only the account owner or a doctor can deactivate", apperr.ErrAccessDenied)
	}
	if !u.Active {
		return nil
	}
	u.Active = false
	return s.users.Update(ctx, u)
}

// ListUsers returns the profiles the subject may read. Doctors see everyone;
// providers see themselves and their assigned patients; patients see only
// themselves.
func (s *Service) ListUsers(ctx context.Context, subject *access.Subject, role access.Role, limit, offset int) ([]*User, int, error) {
	filter, err := s.engine.FilterFor(subject, access.KindUserProfile)
	if err != nil {
		return nil, 0, err
	}
	if filter.MatchesAll() {
		return s.users.List(ctx, role, limit, offset)
	}

	ids := append([]uuid.UUID{subject.ID}, subject.AssignedPatients...)
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	var visible []*User
	for _, u := range users {
		if role != "" && u.Role != role {
			continue
		}
		if filter.Matches(u) {
			visible = append(visible, u)
		}
	}
	total := len(visible)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return visible[offset:end], total, nil
}

// SubjectFor builds the permission-check snapshot for a caller. Providers get
// their assigned patient set; patients act with an empty set.
func (s *Service) SubjectFor(ctx context.Context, userID uuid.UUID, role access.Role) (*access.Subject, error) {
	subject := &access.Subject{ID: userID, Role: role}
	if role.IsProvider() {
		patients, err := s.assignments.PatientIDsForProvider(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load assignments: %w", err)
		}
		subject.AssignedPatients = patients
	}
	return subject, nil
}

// AssignProvider creates the care relation between a provider and a patient.
// Doctors may assign any provider; a provider may assign themselves.
func (s *Service) AssignProvider(ctx context.Context, subject *access.Subject, patientID, providerID uuid.UUID) error {
	if err := s.authorizeAssignment(subject, providerID); err != nil {
		return err
	}
	patient, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		return fmt.Errorf("patient: %w", err)
	}
	if patient.Role != access.RolePatient {
		return fmt.Errorf("%w: %s is not a patient", apperr.ErrValidation, patientID)
	}
	provider, err := s.users.GetByID(ctx, providerID)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if !provider.Role.IsProvider() {
		return fmt.Errorf("%w: %s is not a care provider", apperr.ErrValidation, providerID)
	}
	return s.assignments.Assign(ctx, patientID, providerID)
}

// UnassignProvider removes the care relation. The single underlying row means
// both the provider's and the patient's view of the relation end together.
func (s *Service) UnassignProvider(ctx context.Context, subject *access.Subject, patientID, providerID uuid.UUID) error {
	if err := s.authorizeAssignment(subject, providerID); err != nil {
		return err
	}
	return s.assignments.Unassign(ctx, patientID, providerID)
}

func (s *Service) authorizeAssignment(subject *access.Subject, providerID uuid.UUID) error {
	if subject.Role == access.RoleDoctor {
		return nil
	}
	if subject.Role == access.RolePhysiotherapist && subject.ID == providerID {
		return nil
	}
	return fmt.Errorf("%w: only doctors or the provider themselves may change assignments", apperr.ErrAccessDenied)
}

// CareTeam returns the patient and every provider assigned to them.
func (s *Service) CareTeam(ctx context.Context, subject *access.Subject, patientID uuid.UUID) ([]*User, error) {
	patient, err := s.GetUser(ctx, subject, patientID)
	if err != nil {
		return nil, err
	}
	providerIDs, err := s.assignments.ProviderIDsForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	team := []*User{patient}
	if len(providerIDs) > 0 {
		providers, err := s.users.ListByIDs(ctx, providerIDs)
		if err != nil {
			return nil, err
		}
		team = append(team, providers...)
	}
	return team, nil
}

// TeamMemberIDs returns the ids of everyone on the patient's care team,
// patient included. Comment visibility uses it to snapshot recipients.
func (s *Service) TeamMemberIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	providerIDs, err := s.assignments.ProviderIDsForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID{patientID}, providerIDs...), nil
}

// ResolveMentions maps @handles to active users. Unknown or inactive handles
// are skipped, not errors; a typo in a mention never fails the comment.
func (s *Service) ResolveMentions(ctx context.Context, handles []string) ([]*User, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	users, err := s.users.GetByHandles(ctx, handles)
	if err != nil {
		return nil, err
	}
	var active []*User
	for _, u := range users {
		if u.Active {
			active = append(active, u)
		}
	}
	return active, nil
}

// UserName returns the display name for an id, falling back to the id string.
func (s *Service) UserName(ctx context.Context, id uuid.UUID) string {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return id.String()
	}
	return u.Name
}
