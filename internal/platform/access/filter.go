package access

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// clauseKind enumerates the storage-evaluable predicates a relation
// requirement translates to.
type clauseKind int

const (
	clausePatientEquals clauseKind = iota
	clauseCreatorEquals
	clausePatientIn
	clauseVisibleTo
	clauseAuthorEquals
)

type clause struct {
	kind       clauseKind
	userID     uuid.UUID
	patientIDs []uuid.UUID
}

// clauseSet is the translation of one relation requirement for a concrete
// subject: either a short-circuit (match all / match none) or a list of
// clauses that OR together.
type clauseSet struct {
	matchAll  bool
	matchNone bool
	clauses   []clause
}

// clausesFor translates a relation requirement into its clause set. Every
// relation the matrix can name must have a translation here; Matrix.Validate
// calls this for each cell so a missing translation fails startup instead of
// silently diverging from the decision engine.
func clausesFor(rel Relation, user *Subject) (clauseSet, error) {
	switch rel {
	case RelationNone:
		return clauseSet{matchNone: true}, nil
	case RelationAll:
		return clauseSet{matchAll: true}, nil
	case RelationOwn, RelationOwnContext:
		return clauseSet{clauses: []clause{{kind: clausePatientEquals, userID: user.ID}}}, nil
	case RelationAssigned:
		return clauseSet{clauses: []clause{{kind: clauseCreatorEquals, userID: user.ID}}}, nil
	case RelationAssignedPatients, RelationAssignedPatientsContext:
		return clauseSet{clauses: []clause{{kind: clausePatientIn, patientIDs: user.AssignedPatients}}}, nil
	case RelationVisibleToUser:
		return clauseSet{clauses: []clause{{kind: clauseVisibleTo, userID: user.ID}}}, nil
	case RelationAuthor:
		return clauseSet{clauses: []clause{{kind: clauseAuthorEquals, userID: user.ID}}}, nil
	case RelationOwnOrModeration:
		cs := clauseSet{clauses: []clause{{kind: clauseAuthorEquals, userID: user.ID}}}
		if user.Role == RoleDoctor {
			cs.matchAll = true
		}
		return cs, nil
	}
	return clauseSet{}, fmt.Errorf("relation %s has no filter clause", rel)
}

// matches evaluates a single clause against an instance.
func (c clause) matches(res Resource) bool {
	switch c.kind {
	case clausePatientEquals:
		return res.RelatedPatient() == c.userID
	case clauseCreatorEquals:
		return res.Creator() != uuid.Nil && res.Creator() == c.userID
	case clausePatientIn:
		patient := res.RelatedPatient()
		for _, id := range c.patientIDs {
			if id == patient {
				return true
			}
		}
		return false
	case clauseVisibleTo:
		for _, id := range res.Recipients() {
			if id == c.userID {
				return true
			}
		}
		if res.VisibilityMode() == VisibilityAllVisible {
			return true
		}
		return res.VisibilityMode() == VisibilityPatientVisible && res.RelatedPatient() == c.userID
	case clauseAuthorEquals:
		return res.Author() != uuid.Nil && res.Author() == c.userID
	}
	return false
}

// Filter is the predicate tree produced for a (user, resource kind) pair. It
// can be evaluated in memory against a Resource or rendered to a SQL WHERE
// fragment; both readings answer exactly the question the decision engine
// answers for "read", one instance at a time.
type Filter struct {
	matchAll  bool
	matchNone bool
	clauses   []clause
}

// MatchesAll reports whether the filter admits every instance.
func (f *Filter) MatchesAll() bool { return f.matchAll }

// MatchesNone reports whether the filter admits no instance.
func (f *Filter) MatchesNone() bool { return f.matchNone && len(f.clauses) == 0 }

// Matches evaluates the filter against an instance in memory.
func (f *Filter) Matches(res Resource) bool {
	if f.matchAll {
		return true
	}
	for _, c := range f.clauses {
		if c.matches(res) {
			return true
		}
	}
	return false
}

// ColumnMap tells the SQL renderer which columns carry each instance facet
// for a given table. RecipientsIsJSONB selects between a scalar uuid
// recipient column and a jsonb object keyed by user id. Empty Visibility
// drops the structural-visibility disjuncts, matching instances whose
// VisibilityMode is always "".
type ColumnMap struct {
	RelatedPatient   string
	Creator          string
	Author           string
	Recipients       string
	RecipientsIsJSONB bool
	Visibility       string
}

// SQL renders the filter as a WHERE fragment with positional placeholders
// starting at argOffset. An empty fragment means "match everything"; the
// caller composes it with its own WHERE conditions.
func (f *Filter) SQL(cols ColumnMap, argOffset int) (string, []interface{}) {
	if f.matchAll {
		return "", nil
	}
	if len(f.clauses) == 0 {
		return "FALSE", nil
	}

	var parts []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args)-1)
	}

	for _, c := range f.clauses {
		switch c.kind {
		case clausePatientEquals:
			parts = append(parts, fmt.Sprintf("%s = %s", cols.RelatedPatient, next(c.userID)))
		case clauseCreatorEquals:
			parts = append(parts, fmt.Sprintf("%s = %s", cols.Creator, next(c.userID)))
		case clausePatientIn:
			ids := c.patientIDs
			if ids == nil {
				ids = []uuid.UUID{}
			}
			parts = append(parts, fmt.Sprintf("%s = ANY(%s)", cols.RelatedPatient, next(ids)))
		case clauseVisibleTo:
			var sub []string
			if cols.RecipientsIsJSONB {
				sub = append(sub, fmt.Sprintf("%s ? %s", cols.Recipients, next(c.userID.String())))
			} else {
				sub = append(sub, fmt.Sprintf("%s = %s", cols.Recipients, next(c.userID)))
			}
			if cols.Visibility != "" {
				sub = append(sub, fmt.Sprintf("%s = '%s'", cols.Visibility, VisibilityAllVisible))
				sub = append(sub, fmt.Sprintf("(%s = '%s' AND %s = %s)",
					cols.Visibility, VisibilityPatientVisible, cols.RelatedPatient, next(c.userID)))
			}
			parts = append(parts, "("+strings.Join(sub, " OR ")+")")
		case clauseAuthorEquals:
			parts = append(parts, fmt.Sprintf("%s = %s", cols.Author, next(c.userID)))
		}
	}
	if len(parts) == 1 {
		return parts[0], args
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
