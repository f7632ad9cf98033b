package access

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// TestEveryRelationHasClauses guards the translation table: a relation added
// to the matrix without a clause translation must fail here (and at engine
// construction) rather than silently deny.
func TestEveryRelationHasClauses(t *testing.T) {
	sample := &Subject{ID: uuid.New(), Role: RoleDoctor, AssignedPatients: []uuid.UUID{uuid.New()}}
	for rel := range DefaultMatrix().Relations() {
		if _, err := clausesFor(rel, sample); err != nil {
			t.Errorf("relation %s: %v", rel, err)
		}
	}
}

// TestFilterAgreesWithDecide is the core property: for every (role, kind)
// pair, the list filter admits exactly the instances the per-instance check
// allows reading. Instances are drawn from a seeded corpus that hits every
// facet combination the clauses look at.
func TestFilterAgreesWithDecide(t *testing.T) {
	eng := newTestEngine(t)
	rng := rand.New(rand.NewSource(7))

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = uuid.New()
	}
	pick := func() uuid.UUID { return ids[rng.Intn(len(ids))] }
	modes := []Visibility{"", VisibilityPrivate, VisibilityPatientVisible, VisibilityTeamVisible, VisibilityAllVisible}

	var corpus []*instance
	for i := 0; i < 400; i++ {
		inst := &instance{
			patient:    pick(),
			creator:    pick(),
			author:     pick(),
			visibility: modes[rng.Intn(len(modes))],
		}
		for j := 0; j < rng.Intn(3); j++ {
			inst.recipients = append(inst.recipients, pick())
		}
		corpus = append(corpus, inst)
	}

	for _, role := range Roles() {
		user := &Subject{ID: ids[0], Role: role, AssignedPatients: []uuid.UUID{ids[1], ids[2]}}
		for _, kind := range Kinds() {
			filter, err := eng.FilterFor(user, kind)
			if err != nil {
				t.Fatalf("%s/%s: FilterFor: %v", role, kind, err)
			}
			for _, inst := range corpus {
				d, err := eng.Decide(user, kind, ActionRead, inst)
				if err != nil {
					t.Fatalf("%s/%s: Decide: %v", role, kind, err)
				}
				if got := filter.Matches(inst); got != d.Allowed {
					t.Fatalf("%s/%s: filter says %v, decision says %v (reason %q)",
						role, kind, got, d.Allowed, d.Reason)
				}
			}
		}
	}
}

func TestFilterShortCircuits(t *testing.T) {
	eng := newTestEngine(t)

	doctor := &Subject{ID: uuid.New(), Role: RoleDoctor}
	f, err := eng.FilterFor(doctor, KindRehabTask)
	if err != nil {
		t.Fatalf("FilterFor: %v", err)
	}
	if !f.MatchesAll() {
		t.Fatal("doctor task filter should match everything")
	}
	if sql, args := f.SQL(ColumnMap{RelatedPatient: "patient_id"}, 1); sql != "" || args != nil {
		t.Fatalf("match-all filter should render empty, got %q", sql)
	}
}

func TestFilterSQLPatientOwn(t *testing.T) {
	eng := newTestEngine(t)
	patient := &Subject{ID: uuid.New(), Role: RolePatient}

	f, err := eng.FilterFor(patient, KindRehabTask)
	if err != nil {
		t.Fatalf("FilterFor: %v", err)
	}
	sql, args := f.SQL(ColumnMap{RelatedPatient: "patient_id"}, 3)
	if sql != "patient_id = $3" {
		t.Fatalf("sql = %q", sql)
	}
	if len(args) != 1 || args[0] != patient.ID {
		t.Fatalf("args = %v", args)
	}
}

func TestFilterSQLProviderTasks(t *testing.T) {
	eng := newTestEngine(t)
	physio := &Subject{ID: uuid.New(), Role: RolePhysiotherapist, AssignedPatients: []uuid.UUID{uuid.New()}}

	f, err := eng.FilterFor(physio, KindRehabTask)
	if err != nil {
		t.Fatalf("FilterFor: %v", err)
	}
	sql, args := f.SQL(ColumnMap{RelatedPatient: "patient_id", Creator: "created_by"}, 1)
	if sql != "(patient_id = ANY($1) OR created_by = $2)" {
		t.Fatalf("sql = %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}

func TestFilterSQLVisibleTo(t *testing.T) {
	eng := newTestEngine(t)
	patient := &Subject{ID: uuid.New(), Role: RolePatient}

	f, err := eng.FilterFor(patient, KindComment)
	if err != nil {
		t.Fatalf("FilterFor: %v", err)
	}
	sql, args := f.SQL(ColumnMap{
		RelatedPatient:    "patient_id",
		Author:            "author_id",
		Recipients:        "visible_to",
		RecipientsIsJSONB: true,
		Visibility:        "visibility",
	}, 1)
	for _, want := range []string{"visible_to ? $1", "visibility = 'all_visible'", "visibility = 'patient_visible'", "author_id = $3"} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql %q missing %q", sql, want)
		}
	}
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
	if args[0] != patient.ID.String() {
		t.Fatalf("jsonb key arg should be the string form, got %v", args[0])
	}
	if args[2] != patient.ID {
		t.Fatalf("author arg = %v", args[2])
	}
}

func TestFilterSQLMatchNone(t *testing.T) {
	f := &Filter{matchNone: true}
	if sql, _ := f.SQL(ColumnMap{}, 1); sql != "FALSE" {
		t.Fatalf("sql = %q", sql)
	}
	if f.Matches(&instance{patient: uuid.New()}) {
		t.Fatal("match-none filter admitted an instance")
	}
}

// An empty assigned set must render to a predicate that matches nothing, not
// to an error or an unconstrained query.
func TestFilterEmptyAssignedSet(t *testing.T) {
	eng := newTestEngine(t)
	physio := &Subject{ID: uuid.New(), Role: RolePhysiotherapist}

	f, err := eng.FilterFor(physio, KindProgressEntry)
	if err != nil {
		t.Fatalf("FilterFor: %v", err)
	}
	if f.Matches(&instance{patient: uuid.New()}) {
		t.Fatal("unassigned provider matched a progress entry")
	}
	sql, args := f.SQL(ColumnMap{RelatedPatient: "patient_id"}, 1)
	if sql == "" {
		t.Fatal("empty assigned set must still constrain the query")
	}
	if len(args) == 0 {
		t.Fatal("expected bound args")
	}
}
