// Package search consolidates the portal's generic text search: one query
// fanned out over glossary terms, entities, department sections, budget
// categories, line items and payments, with hierarchical matches
// deduplicated so each concept counts once.
package search

import (
	"context"
	"errors"
	"strings"

	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/paginate"
	"presupuesto/internal/store"
)

// ChildSet deduplicates matched children under their parent's natural
// key. Re-inserting an existing pair is a no-op, which is what collapses
// the same heading matched across several budgets into one result.
type ChildSet map[string]map[string]struct{}

// Insert records child under parent.
func (s ChildSet) Insert(parent, child string) {
	m, ok := s[parent]
	if !ok {
		m = make(map[string]struct{})
		s[parent] = m
	}
	m[child] = struct{}{}
}

// Total counts every deduplicated child across all parents.
func (s ChildSet) Total() int {
	n := 0
	for _, children := range s {
		n += len(children)
	}
	return n
}

// Results is one consolidated search answer. Kinds disabled by
// configuration keep their zero length; they are never an error.
type Results struct {
	Query string

	Terms       []store.Term
	Entities    []store.Entity
	Departments []string

	// Economic categories. Articles split by direction; income and
	// expense codes overlap, so the sets stay separate. Headings
	// deduplicate under their article code.
	ExpenseArticles map[string]struct{}
	IncomeArticles  map[string]struct{}
	ExpenseHeadings ChildSet
	IncomeHeadings  ChildSet

	// Functional categories: policies by code, programmes deduplicated
	// under their policy code.
	Policies   map[string]struct{}
	Programmes ChildSet

	Items    paginate.Page[store.Item]
	Payments paginate.Page[store.PaymentMatch]
}

// Size counts every result exactly once: each deduplicated category
// child, each list entry, and every matched item and payment (not just
// the visible page).
func (r *Results) Size() int {
	return len(r.Terms) +
		len(r.Entities) +
		len(r.Departments) +
		len(r.ExpenseArticles) +
		len(r.IncomeArticles) +
		r.ExpenseHeadings.Total() +
		r.IncomeHeadings.Total() +
		len(r.Policies) +
		r.Programmes.Total() +
		r.Items.TotalItems +
		r.Payments.TotalItems
}

// Year sentinels for Consolidate. Without an explicit year the search
// covers the latest loaded budget; searching every budget is an explicit
// opt-in.
const (
	YearLatest = 0
	YearAll    = -1
)

// Consolidator fans one query out over the search source.
type Consolidator struct {
	source store.SearchSource
	cfg    *config.Config
	logger *log.Logger
}

// NewConsolidator creates a consolidator over a search source.
func NewConsolidator(source store.SearchSource, cfg *config.Config, logger *log.Logger) *Consolidator {
	return &Consolidator{
		source: source,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentSearch),
	}
}

// Consolidate runs the query. YearLatest scopes it to the most recent
// budget of the main entity, YearAll opts into searching every budget;
// an empty query returns an empty well-formed result without touching
// the source. page selects the visible window of items and payments.
func (c *Consolidator) Consolidate(ctx context.Context, q string, year, page int) (*Results, error) {
	res := &Results{
		Query:           strings.TrimSpace(q),
		ExpenseArticles: make(map[string]struct{}),
		IncomeArticles:  make(map[string]struct{}),
		ExpenseHeadings: make(ChildSet),
		IncomeHeadings:  make(ChildSet),
		Policies:        make(map[string]struct{}),
		Programmes:      make(ChildSet),
	}
	res.Items, _ = paginate.Paginate[store.Item](nil, c.cfg.PageLength, c.cfg.PageWindowBody, c.cfg.PageWindowPadding, 1)
	res.Payments, _ = paginate.Paginate[store.PaymentMatch](nil, c.cfg.PageLength, c.cfg.PageWindowBody, c.cfg.PageWindowPadding, 1)

	if res.Query == "" {
		return res, nil
	}

	if year == YearLatest {
		y, err := c.source.LatestYear(ctx, c.cfg.MainEntityID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Nothing loaded yet; search everything.
			year = YearAll
		case err != nil:
			return nil, err
		default:
			year = y
		}
	}
	// The item and payment searches take the year directly; the source
	// treats zero as unscoped.
	scopeYear := year
	if scopeYear == YearAll {
		scopeYear = 0
	}

	// Category and department searches are scoped to the main entity's
	// budget for the year; a year with no budget just leaves them
	// unscoped rather than failing the whole search.
	var budgetID int64
	if scopeYear != 0 {
		id, err := c.source.BudgetID(ctx, c.cfg.MainEntityID, scopeYear)
		switch {
		case errors.Is(err, store.ErrNotFound):
			fields := log.NewFields().WithEntity(c.cfg.MainEntityID, scopeYear)
			c.logger.DebugContext(ctx, "no budget for year, searching unscoped", fields.ToSlice()...)
		case err != nil:
			return nil, err
		default:
			budgetID = id
		}
	}

	var err error
	res.Terms, err = c.source.SearchTerms(ctx, res.Query, c.cfg.Language)
	if err != nil {
		return nil, err
	}

	if c.cfg.SearchEntities {
		res.Entities, err = c.source.SearchEntities(ctx, res.Query)
		if err != nil {
			return nil, err
		}
	}
	if c.cfg.ShowSectionPages {
		res.Departments, err = c.source.SearchDepartments(ctx, res.Query, budgetID)
		if err != nil {
			return nil, err
		}
	}

	if err := c.categories(ctx, res, budgetID); err != nil {
		return nil, err
	}

	items, err := c.source.SearchItems(ctx, res.Query, scopeYear, c.cfg.Language)
	if err != nil {
		return nil, err
	}
	res.Items = window(items, c.cfg.PageLength, c.cfg.PageWindowBody, c.cfg.PageWindowPadding, page)

	if c.cfg.ShowPayments {
		matches, err := c.source.SearchPayments(ctx, res.Query, scopeYear, c.cfg.Language)
		if err != nil {
			return nil, err
		}
		res.Payments = window(matches, c.cfg.PageLength, c.cfg.PageWindowBody, c.cfg.PageWindowPadding, page)
	}

	fields := log.NewFields().WithOperation(log.OpSearch)
	fields[log.FieldQuery] = res.Query
	fields[log.FieldYear] = scopeYear
	fields[log.FieldPage] = page
	fields[log.FieldResults] = res.Size()
	c.logger.DebugContext(ctx, "search consolidated", fields.ToSlice()...)
	return res, nil
}

// categories merges economic and functional category matches into the
// dedup structures.
func (c *Consolidator) categories(ctx context.Context, res *Results, budgetID int64) error {
	articles, err := c.source.SearchArticles(ctx, res.Query, budgetID)
	if err != nil {
		return err
	}
	for _, a := range articles {
		if a.Expense {
			res.ExpenseArticles[a.Code] = struct{}{}
		} else {
			res.IncomeArticles[a.Code] = struct{}{}
		}
	}

	headings, err := c.source.SearchHeadings(ctx, res.Query, budgetID)
	if err != nil {
		return err
	}
	for _, h := range headings {
		if h.Expense {
			res.ExpenseHeadings.Insert(h.Article, h.Name)
		} else {
			res.IncomeHeadings.Insert(h.Article, h.Name)
		}
	}

	policies, err := c.source.SearchPolicies(ctx, res.Query, budgetID)
	if err != nil {
		return err
	}
	for _, p := range policies {
		res.Policies[p.Code] = struct{}{}
	}

	programmes, err := c.source.SearchProgrammes(ctx, res.Query, budgetID)
	if err != nil {
		return err
	}
	for _, p := range programmes {
		res.Programmes.Insert(p.Policy, p.Name)
	}
	return nil
}

// window pages a result list. A page beyond the end is not an error at
// this level, it shows as empty while keeping the match counts.
func window[T any](items []T, pageLength, body, padding, current int) paginate.Page[T] {
	if current < 1 {
		current = 1
	}
	pg, err := paginate.Paginate(items, pageLength, body, padding, current)
	if err == nil {
		return pg
	}
	pg, _ = paginate.Paginate(items, pageLength, body, padding, 1)
	pg.Number = current
	pg.Items = nil
	return pg
}
