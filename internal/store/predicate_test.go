package store

import (
	"strings"
	"testing"

	"presupuesto/internal/query"
)

func buildPredicate(t *testing.T) *query.Predicate {
	t.Helper()
	p, err := query.Build(3, query.Filters{
		Area:        "Health",
		MinAmount:   "1,000.00",
		Description: "road works",
	})
	if err != nil {
		t.Fatal(err)
	}
	p.WithYears(2015, 2018)
	return p
}

func TestRenderPredicateSQLite(t *testing.T) {
	p := buildPredicate(t)
	s := &sqlStore{d: sqliteDialect}
	where, err := renderPredicate(p, sqliteDialect.placeholder, func(ph string) string {
		return s.matchClause(corpusPaymentDesc, ph)
	})
	if err != nil {
		t.Fatal(err)
	}

	want := "b.entity_id = ? AND p.area = ? AND p.amount >= ? AND " +
		"p.id IN (SELECT rowid FROM payments_desc_fts WHERE payments_desc_fts MATCH ?) AND " +
		"b.year >= ? AND b.year <= ?"
	if where != want {
		t.Errorf("where = %q\nwant    %q", where, want)
	}
	if len(p.Args) != 6 {
		t.Errorf("args = %v", p.Args)
	}
}

func TestRenderPredicatePostgres(t *testing.T) {
	p := buildPredicate(t)
	s := &sqlStore{d: postgresDialect}
	where, err := renderPredicate(p, postgresDialect.placeholder, func(ph string) string {
		return s.matchClause(corpusPaymentDesc, ph)
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, frag := range []string{"$1", "$2", "$3", "$4", "$5", "$6"} {
		if !strings.Contains(where, frag) {
			t.Errorf("missing placeholder %s (%d) in %q", frag, i+1, where)
		}
	}
	if !strings.Contains(where, "plainto_tsquery('simple', $4)") {
		t.Errorf("description clause not parameterized: %q", where)
	}
	if strings.Contains(where, "road works") {
		t.Errorf("user input leaked into query text: %q", where)
	}
}

func TestRenderPredicateUnknownField(t *testing.T) {
	p := &query.Predicate{}
	p.Clauses = append(p.Clauses, query.Clause{Field: "nonsense", Op: query.OpEq})
	p.Args = append(p.Args, 1)
	if _, err := renderPredicate(p, sqliteDialect.placeholder, func(string) string { return "" }); err == nil {
		t.Error("expected error for unknown field")
	}
}
