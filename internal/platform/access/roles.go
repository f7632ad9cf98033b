// Package access implements the permission engine shared by every domain
// package: the static role set, the resource/role/action permission matrix,
// the per-instance decision engine, and the query-filter builder that derives
// list predicates from the same matrix the single-object check uses.
package access

import "github.com/google/uuid"

// Role is one of the three fixed user roles.
type Role string

const (
	RolePatient         Role = "patient"
	RolePhysiotherapist Role = "physiotherapist"
	RoleDoctor          Role = "doctor"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RolePatient, RolePhysiotherapist, RoleDoctor}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RolePhysiotherapist, RoleDoctor:
		return true
	}
	return false
}

// IsProvider reports whether r is a care-provider role.
func (r Role) IsProvider() bool {
	return r == RolePhysiotherapist || r == RoleDoctor
}

// Action is an operation a caller may attempt on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Actions lists every known action.
func Actions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete}
}

// ResourceKind names a permission-controlled resource collection.
type ResourceKind string

const (
	KindRehabTask     ResourceKind = "rehabTask"
	KindProgressEntry ResourceKind = "progressEntry"
	KindNotification  ResourceKind = "notification"
	KindUserProfile   ResourceKind = "userProfile"
	KindComment       ResourceKind = "comment"
)

// Kinds lists every known resource kind.
func Kinds() []ResourceKind {
	return []ResourceKind{KindRehabTask, KindProgressEntry, KindNotification, KindUserProfile, KindComment}
}

// Relation is the relationship a user must hold to a resource instance for an
// action to be granted.
type Relation int

const (
	// RelationNone denies unconditionally.
	RelationNone Relation = iota
	// RelationAll allows unconditionally (global oversight).
	RelationAll
	// RelationOwn requires the resource's related patient to be the acting user.
	RelationOwn
	// RelationAssigned requires the acting user to be the creator of the
	// resource (provider-authored tasks).
	RelationAssigned
	// RelationAssignedPatients requires the resource's related patient to be
	// in the acting provider's assigned set.
	RelationAssignedPatients
	// RelationVisibleToUser requires the resource's explicit recipient set to
	// contain the acting user, or its visibility mode to admit them
	// structurally.
	RelationVisibleToUser
	// RelationAuthor requires the acting user to be the resource's author.
	// Comment read cells carry it alongside RelationVisibleToUser so an
	// author keeps reading their own comment whatever its visibility.
	RelationAuthor
	// RelationOwnOrModeration requires author match, or the doctor role.
	RelationOwnOrModeration
	// RelationOwnContext requires the acting patient to be commenting in
	// their own context (related patient equals acting user).
	RelationOwnContext
	// RelationAssignedPatientsContext requires the acting provider to be
	// assigned to the related patient of the context being commented in.
	RelationAssignedPatientsContext
)

func (r Relation) String() string {
	switch r {
	case RelationNone:
		return "none"
	case RelationAll:
		return "all"
	case RelationOwn:
		return "own"
	case RelationAssigned:
		return "assigned"
	case RelationAssignedPatients:
		return "assigned_patients"
	case RelationVisibleToUser:
		return "visible_to_user"
	case RelationAuthor:
		return "author"
	case RelationOwnOrModeration:
		return "own_or_moderation"
	case RelationOwnContext:
		return "own_context"
	case RelationAssignedPatientsContext:
		return "assigned_patients_context"
	}
	return "unknown"
}

// Visibility is a per-comment (or per-notification) visibility mode.
type Visibility string

const (
	VisibilityPrivate        Visibility = "private"
	VisibilityPatientVisible Visibility = "patient_visible"
	VisibilityTeamVisible    Visibility = "team_visible"
	VisibilityAllVisible     Visibility = "all_visible"
)

// Valid reports whether v is a known visibility mode.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPatientVisible, VisibilityTeamVisible, VisibilityAllVisible:
		return true
	}
	return false
}

// Subject is the acting user snapshot a permission check runs against. For
// providers, AssignedPatients carries the patient side of the assignment
// relation as the store currently records it; a divergent edge simply fails
// the membership test and reads as "not assigned".
type Subject struct {
	ID               uuid.UUID
	Role             Role
	AssignedPatients []uuid.UUID
}

// HasAssignedPatient reports whether patientID is in the subject's assigned set.
func (s *Subject) HasAssignedPatient(patientID uuid.UUID) bool {
	for _, id := range s.AssignedPatients {
		if id == patientID {
			return true
		}
	}
	return false
}

// Resource is the view of a concrete instance the engine evaluates relation
// predicates against. Implementations return uuid.Nil (or nil/empty) for
// facets that do not apply to their kind; every instance must resolve to
// exactly one related patient.
type Resource interface {
	// RelatedPatient is the patient the resource concerns.
	RelatedPatient() uuid.UUID
	// Creator is the provider who authored the resource, uuid.Nil if none.
	Creator() uuid.UUID
	// Author is the comment author, uuid.Nil for non-comment kinds.
	Author() uuid.UUID
	// Recipients is the explicit set of user ids the resource is addressed to.
	Recipients() []uuid.UUID
	// VisibilityMode is the structural visibility setting, "" if none.
	VisibilityMode() Visibility
}
