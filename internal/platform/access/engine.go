package access

import (
	"fmt"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
)

// Decision is the outcome of a permission check. A deny is a value, not an
// error; errors are reserved for malformed checks (unknown kind, missing
// instance).
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Engine answers permission questions against a validated matrix. Decide and
// FilterFor both run through clausesFor, so the list predicate a query uses
// and the per-instance check a mutation uses cannot drift apart.
type Engine struct {
	matrix Matrix
}

// NewEngine validates the matrix and constructs an engine over it. An
// incomplete matrix is a construction error, never a runtime deny.
func NewEngine(m Matrix) (*Engine, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Engine{matrix: m}, nil
}

// Decide evaluates whether user may perform action on the given instance.
// res may be nil only when every requirement for the cell is instance-free;
// otherwise the check is malformed and an error is returned.
func (e *Engine) Decide(user *Subject, kind ResourceKind, action Action, res Resource) (Decision, error) {
	if user == nil {
		return Decision{}, fmt.Errorf("%w: subject required", apperr.ErrValidation)
	}
	reqs, err := e.matrix.Requirements(kind, user.Role, action)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	instanceNeeded := false
	for _, rel := range reqs {
		cs, err := clausesFor(rel, user)
		if err != nil {
			return Decision{}, err
		}
		if cs.matchAll {
			return allow(fmt.Sprintf("role %s holds %s on %s", user.Role, rel, kind)), nil
		}
		if cs.matchNone {
			continue
		}
		if res == nil {
			instanceNeeded = true
			continue
		}
		for _, c := range cs.clauses {
			if c.matches(res) {
				return allow(fmt.Sprintf("user holds %s on %s", rel, kind)), nil
			}
		}
	}
	if instanceNeeded {
		return Decision{}, fmt.Errorf("%w: %s %s on %s requires an instance", apperr.ErrValidation, user.Role, action, kind)
	}
	return deny(fmt.Sprintf("role %s has no qualifying relation for %s on %s", user.Role, action, kind)), nil
}

// Capability answers the instance-free question "can this role ever perform
// action on kind". It allows only when a requirement grants unconditionally;
// a conditional grant reports allowed=false with a reason naming the
// condition, because the answer depends on the instance.
func (e *Engine) Capability(role Role, kind ResourceKind, action Action) (Decision, error) {
	reqs, err := e.matrix.Requirements(kind, role, action)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	conditional := false
	for _, rel := range reqs {
		switch rel {
		case RelationAll:
			return allow(fmt.Sprintf("role %s holds %s on %s", role, rel, kind)), nil
		case RelationNone:
		default:
			conditional = true
		}
	}
	if conditional {
		return deny(fmt.Sprintf("role %s may %s %s only for qualifying instances", role, action, kind)), nil
	}
	return deny(fmt.Sprintf("role %s may never %s %s", role, action, kind)), nil
}

// FilterFor builds the list predicate for user reading kind. The filter is
// the disjunction of the clause sets of every read requirement; it admits an
// instance exactly when Decide would allow reading it.
func (e *Engine) FilterFor(user *Subject, kind ResourceKind) (*Filter, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: subject required", apperr.ErrValidation)
	}
	reqs, err := e.matrix.Requirements(kind, user.Role, ActionRead)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	f := &Filter{}
	for _, rel := range reqs {
		cs, err := clausesFor(rel, user)
		if err != nil {
			return nil, err
		}
		if cs.matchAll {
			return &Filter{matchAll: true}, nil
		}
		f.clauses = append(f.clauses, cs.clauses...)
	}
	if len(f.clauses) == 0 {
		f.matchNone = true
	}
	return f, nil
}
