package access

import "fmt"

// Matrix is the declarative permission table: for each resource kind and
// role, the relation requirements per action. Multiple relations for one
// cell are OR-combined at evaluation time.
type Matrix map[ResourceKind]map[Role]map[Action][]Relation

// DefaultMatrix returns the production permission table.
//
// Patients act only in their own context and never author tasks; providers
// act on their assigned patients; doctors additionally carry global
// oversight on tasks and progress records and the moderation half of
// comment deletion.
func DefaultMatrix() Matrix {
	return Matrix{
		KindRehabTask: {
			RolePatient: {
				ActionRead:   {RelationOwn},
				ActionWrite:  {RelationNone},
				ActionDelete: {RelationNone},
			},
			RolePhysiotherapist: {
				ActionRead:   {RelationAssignedPatients, RelationAssigned},
				ActionWrite:  {RelationAssignedPatients},
				ActionDelete: {RelationAssigned},
			},
			RoleDoctor: {
				ActionRead:   {RelationAll},
				ActionWrite:  {RelationAll},
				ActionDelete: {RelationAll},
			},
		},
		KindProgressEntry: {
			RolePatient: {
				ActionRead:   {RelationOwn},
				ActionWrite:  {RelationOwn},
				ActionDelete: {RelationNone},
			},
			RolePhysiotherapist: {
				ActionRead:   {RelationAssignedPatients},
				ActionWrite:  {RelationAssignedPatients},
				ActionDelete: {RelationNone},
			},
			RoleDoctor: {
				ActionRead:   {RelationAll},
				ActionWrite:  {RelationAssignedPatients},
				ActionDelete: {RelationAll},
			},
		},
		KindNotification: {
			RolePatient: {
				ActionRead:   {RelationVisibleToUser},
				ActionWrite:  {RelationNone},
				ActionDelete: {RelationNone},
			},
			RolePhysiotherapist: {
				ActionRead:   {RelationVisibleToUser},
				ActionWrite:  {RelationNone},
				ActionDelete: {RelationNone},
			},
			RoleDoctor: {
				ActionRead:   {RelationVisibleToUser},
				ActionWrite:  {RelationNone},
				ActionDelete: {RelationAll},
			},
		},
		KindUserProfile: {
			RolePatient: {
				ActionRead:   {RelationOwn},
				ActionWrite:  {RelationOwn},
				ActionDelete: {RelationNone},
			},
			RolePhysiotherapist: {
				ActionRead:   {RelationOwn, RelationAssignedPatients},
				ActionWrite:  {RelationOwn},
				ActionDelete: {RelationNone},
			},
			RoleDoctor: {
				ActionRead:   {RelationAll},
				ActionWrite:  {RelationOwn},
				ActionDelete: {RelationNone},
			},
		},
		KindComment: {
			RolePatient: {
				ActionRead:   {RelationVisibleToUser, RelationAuthor},
				ActionWrite:  {RelationOwnContext},
				ActionDelete: {RelationOwnOrModeration},
			},
			RolePhysiotherapist: {
				ActionRead:   {RelationVisibleToUser, RelationAuthor},
				ActionWrite:  {RelationAssignedPatientsContext},
				ActionDelete: {RelationOwnOrModeration},
			},
			RoleDoctor: {
				ActionRead:   {RelationAll},
				ActionWrite:  {RelationAll},
				ActionDelete: {RelationOwnOrModeration},
			},
		},
	}
}

// Requirements returns the relation list for (kind, role, action). Unknown
// kind or role is an error; a missing cell denies by returning RelationNone.
func (m Matrix) Requirements(kind ResourceKind, role Role, action Action) ([]Relation, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	byRole, ok := m[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	byAction, ok := byRole[role]
	if !ok {
		return []Relation{RelationNone}, nil
	}
	reqs, ok := byAction[action]
	if !ok || len(reqs) == 0 {
		return []Relation{RelationNone}, nil
	}
	return reqs, nil
}

// Relations returns the set of distinct relations the matrix references.
func (m Matrix) Relations() map[Relation]bool {
	set := make(map[Relation]bool)
	for _, byRole := range m {
		for _, byAction := range byRole {
			for _, reqs := range byAction {
				for _, r := range reqs {
					set[r] = true
				}
			}
		}
	}
	return set
}

// Validate checks the table is total over {kind × role × action} and that
// every referenced relation has a filter clause. Engines refuse to construct
// over an invalid matrix, so a gap surfaces at startup rather than as a
// silent deny at request time.
func (m Matrix) Validate() error {
	sample := &Subject{Role: RoleDoctor}
	for _, kind := range Kinds() {
		byRole, ok := m[kind]
		if !ok {
			return fmt.Errorf("matrix: missing resource kind %q", kind)
		}
		for _, role := range Roles() {
			byAction, ok := byRole[role]
			if !ok {
				return fmt.Errorf("matrix: %s: missing role %q", kind, role)
			}
			for _, action := range Actions() {
				reqs, ok := byAction[action]
				if !ok || len(reqs) == 0 {
					return fmt.Errorf("matrix: %s/%s: missing action %q", kind, role, action)
				}
				for _, rel := range reqs {
					if _, err := clausesFor(rel, sample); err != nil {
						return fmt.Errorf("matrix: %s/%s/%s: %w", kind, role, action, err)
					}
				}
			}
		}
	}
	return nil
}
