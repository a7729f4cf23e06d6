package query

import (
	"errors"
	"reflect"
	"testing"

	"presupuesto/internal/budget"
)

func TestBuildEntityOnly(t *testing.T) {
	p, err := Build(7, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Clauses) != 1 || p.Clauses[0] != (Clause{Field: FieldEntity, Op: OpEq}) {
		t.Fatalf("expected single entity clause, got %+v", p.Clauses)
	}
	if !reflect.DeepEqual(p.Args, []any{int64(7)}) {
		t.Errorf("args = %v", p.Args)
	}
	if p.FilterCount() != 0 || len(p.Active) != 0 {
		t.Errorf("expected no active filters, got %d/%v", p.FilterCount(), p.Active)
	}
}

func TestBuildAllFilters(t *testing.T) {
	p, err := Build(1, Filters{
		Area:        " Health ",
		Department:  "Urbanism",
		Payee:       "ACME SL",
		Description: "road works",
		FiscalID:    "B1234",
		MinAmount:   "1,000.00",
		MaxAmount:   "2.000,00",
	})
	if err != nil {
		t.Fatal(err)
	}

	wantFields := []string{
		FieldEntity, budget.CriterionArea, budget.CriterionDepartment,
		FieldAmount, FieldAmount, budget.CriterionPayee, FieldFiscalID,
		budget.CriterionDescription,
	}
	if len(p.Clauses) != len(wantFields) {
		t.Fatalf("clause count = %d, expected %d", len(p.Clauses), len(wantFields))
	}
	for i, f := range wantFields {
		if p.Clauses[i].Field != f {
			t.Errorf("clause %d field = %s, expected %s", i, p.Clauses[i].Field, f)
		}
	}
	if len(p.Args) != len(p.Clauses) {
		t.Errorf("args and clauses out of step: %d vs %d", len(p.Args), len(p.Clauses))
	}
	if p.Args[1] != "Health" {
		t.Errorf("area should be trimmed, got %v", p.Args[1])
	}
	if p.Args[3] != int64(100000) || p.Args[4] != int64(200000) {
		t.Errorf("amount bounds = %v, %v", p.Args[3], p.Args[4])
	}
	if p.Clauses[7].Op != OpTextMatch {
		t.Error("description must be a text-match clause")
	}

	// Active names drive criteria reduction; the description text match
	// is not constant over the result set and stays out of the list.
	wantActive := []string{FilterArea, FilterDepartment, FilterMinAmount, FilterMaxAmount, FilterPayee, FilterFiscalID}
	if !reflect.DeepEqual(p.Active, wantActive) {
		t.Errorf("active = %v, expected %v", p.Active, wantActive)
	}
}

func TestBuildMalformedAmount(t *testing.T) {
	if _, err := Build(1, Filters{MinAmount: "12x"}); !errors.Is(err, budget.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Build(1, Filters{MaxAmount: "1..2"}); !errors.Is(err, budget.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWithYears(t *testing.T) {
	p, _ := Build(1, Filters{Area: "Health"})
	n := p.FilterCount()
	p.WithYears(2015, 2018)
	if len(p.Clauses) != n+3 {
		t.Fatalf("expected two year clauses appended, got %d total", len(p.Clauses))
	}
	last := p.Args[len(p.Args)-2:]
	if last[0] != 2015 || last[1] != 2018 {
		t.Errorf("year args = %v", last)
	}
}

func TestSelectMode(t *testing.T) {
	cases := []struct {
		filters int
		full    bool
		want    Mode
	}{
		{0, false, ModeSummary},
		{0, true, ModeDetail},
		{1, false, ModeDetail},
		{1, true, ModeDetail},
		{5, false, ModeDetail},
	}
	for _, tc := range cases {
		if got := SelectMode(tc.filters, tc.full); got != tc.want {
			t.Errorf("SelectMode(%d, %v) = %v, expected %v", tc.filters, tc.full, got, tc.want)
		}
	}
}

func TestReduceCriteria(t *testing.T) {
	criteria := []string{"area", "payee", "description"}
	got := ReduceCriteria(criteria, []string{"area", "minAmount"})
	if !reflect.DeepEqual(got, []string{"payee", "description"}) {
		t.Errorf("reduced = %v", got)
	}
	// No active filters: untouched copy.
	if got := ReduceCriteria(criteria, nil); !reflect.DeepEqual(got, criteria) {
		t.Errorf("reduced = %v", got)
	}
}
