// Package query builds the bounded predicate a payment search runs with,
// and decides between the summary and the detail retrieval path.
//
// Predicates are structured (field, operator) clauses with a parallel list
// of bound arguments. SQL rendering belongs to the store, which always
// emits parameter placeholders; user input never reaches query text.
package query

import (
	"strings"

	"presupuesto/internal/budget"
)

// Op is a clause operator.
type Op int

const (
	OpEq Op = iota
	OpGte
	OpLte
	// OpTextMatch is the record source's ranked text-search primitive.
	OpTextMatch
)

// Clause fields. Grouping criteria reuse the budget criterion names.
const (
	FieldEntity   = "entity_id"
	FieldAmount   = "amount"
	FieldFiscalID = "fiscal_id"
	FieldYear     = "year"
)

// Filter names as reported in Predicate.Active.
const (
	FilterArea       = "area"
	FilterDepartment = "department"
	FilterPayee      = "payee"
	FilterFiscalID   = "fiscalId"
	FilterMinAmount  = "minAmount"
	FilterMaxAmount  = "maxAmount"
)

type Clause struct {
	Field string
	Op    Op
}

// Predicate is an ordered clause list plus its bound arguments, in the
// same order. The entity clause is always first and mandatory.
type Predicate struct {
	Clauses []Clause
	Args    []any

	// Active lists the names of the non-empty search inputs whose value
	// becomes constant across the result set, for breakdown-criteria
	// reduction. A description text match is not constant and is
	// deliberately absent.
	Active []string
}

func (p *Predicate) add(field string, op Op, arg any) {
	p.Clauses = append(p.Clauses, Clause{Field: field, Op: op})
	p.Args = append(p.Args, arg)
}

// FilterCount returns how many clauses beyond the mandatory entity one
// the predicate carries. Year-range clauses are appended after the mode
// decision and never count.
func (p *Predicate) FilterCount() int {
	return len(p.Clauses) - 1
}

// WithYears appends the year-range clauses. Only the detail path calls
// this, and only when the caller supplied an explicit range.
func (p *Predicate) WithYears(from, to int) {
	p.add(FieldYear, OpGte, from)
	p.add(FieldYear, OpLte, to)
}

// Filters are the optional payment search inputs as received from the
// request, untrimmed.
type Filters struct {
	Area        string
	Department  string
	Payee       string
	Description string
	FiscalID    string
	MinAmount   string
	MaxAmount   string
	Years       string // "Y", "Y1,Y2" or empty for the caller default
}

// Build assembles the predicate for an entity. Each input contributes a
// clause only when non-empty after trimming; malformed amounts fail with
// budget.ErrInvalidAmount rather than being dropped.
func Build(entityID int64, f Filters) (*Predicate, error) {
	p := &Predicate{}
	p.add(FieldEntity, OpEq, entityID)

	if v := strings.TrimSpace(f.Area); v != "" {
		p.add(budget.CriterionArea, OpEq, v)
		p.Active = append(p.Active, FilterArea)
	}
	if v := strings.TrimSpace(f.Department); v != "" {
		p.add(budget.CriterionDepartment, OpEq, v)
		p.Active = append(p.Active, FilterDepartment)
	}
	if v := strings.TrimSpace(f.MinAmount); v != "" {
		cents, err := budget.ParseAmountToCents(v)
		if err != nil {
			return nil, err
		}
		p.add(FieldAmount, OpGte, cents)
		p.Active = append(p.Active, FilterMinAmount)
	}
	if v := strings.TrimSpace(f.MaxAmount); v != "" {
		cents, err := budget.ParseAmountToCents(v)
		if err != nil {
			return nil, err
		}
		p.add(FieldAmount, OpLte, cents)
		p.Active = append(p.Active, FilterMaxAmount)
	}
	if v := strings.TrimSpace(f.Payee); v != "" {
		p.add(budget.CriterionPayee, OpEq, v)
		p.Active = append(p.Active, FilterPayee)
	}
	if v := strings.TrimSpace(f.FiscalID); v != "" {
		p.add(FieldFiscalID, OpEq, v)
		p.Active = append(p.Active, FilterFiscalID)
	}
	if v := strings.TrimSpace(f.Description); v != "" {
		p.add(budget.CriterionDescription, OpTextMatch, v)
	}

	return p, nil
}

// ReduceCriteria drops from a breakdown criteria list every criterion that
// is an active filter: its value is constant across the result set, so it
// is redundant as a grouping key.
func ReduceCriteria(criteria []string, active []string) []string {
	out := make([]string, 0, len(criteria))
	for _, c := range criteria {
		redundant := false
		for _, a := range active {
			if c == a {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, c)
		}
	}
	return out
}
