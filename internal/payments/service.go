// Package payments answers the portal's payment queries: the entity
// overview and the filtered search, choosing between the pre-aggregated
// summary path and the per-record detail path.
package payments

import (
	"context"
	"fmt"

	"presupuesto/internal/budget"
	"presupuesto/internal/cache"
	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/query"
	"presupuesto/internal/store"
)

// bucket labels every total the payment breakdowns accumulate. Payments
// have a single source, unlike budget items with their per-year buckets.
const bucket = "payments"

// SummaryRows are the cached raw aggregates of one entity/year-range, as
// stored in the summary cache. Breakdowns are rebuilt from them per
// request; they are cheap, the store round-trips are not.
type SummaryRows struct {
	Payee      []store.AggregateRow
	Area       []store.AggregateRow
	Department []store.AggregateRow
}

// SearchRequest is one payment search.
type SearchRequest struct {
	EntityID int64
	Filters  query.Filters

	// FullListing requests every matching record (exports, CSV dumps).
	// It forces the detail path even with no filters.
	FullListing bool
}

// Result is the outcome of a search: the grouped views plus, for
// full-listing callers, the flat record set.
type Result struct {
	Entity store.Entity
	Mode   query.Mode

	FromYear int
	ToYear   int

	// ActiveFilters names the search inputs that constrained the result
	// set to a single value.
	ActiveFilters []string

	ByPayee      *budget.Breakdown
	ByArea       *budget.Breakdown
	ByDepartment *budget.Breakdown

	Count        int
	TotalExpense int64

	Records []budget.Record
}

// Overview is the entry page of an entity's payments section.
type Overview struct {
	Entity store.Entity

	Years    []int
	FromYear int
	ToYear   int

	Payees      []string
	Areas       []string
	Departments []string

	ByPayee      *budget.Breakdown
	ByArea       *budget.Breakdown
	ByDepartment *budget.Breakdown

	Count        int
	TotalExpense int64
}

// Service runs payment queries against a record source.
type Service struct {
	source store.RecordSource
	cfg    *config.Config
	cache  cache.Cache[SummaryRows]
	logger *log.Logger
}

// NewService creates a payments service. The cache may be nil, in which
// case every summary goes to the record source.
func NewService(source store.RecordSource, cfg *config.Config, c cache.Cache[SummaryRows], logger *log.Logger) *Service {
	return &Service{
		source: source,
		cfg:    cfg,
		cache:  c,
		logger: logger.WithComponent(log.ComponentPayments),
	}
}

// Overview assembles the payments entry page for an entity: the year
// range, the filterable value lists and the unfiltered summary breakdowns.
func (s *Service) Overview(ctx context.Context, entityID int64) (*Overview, error) {
	entity, err := s.source.Entity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	years, err := s.source.Years(ctx, entityID)
	if err != nil {
		return nil, err
	}
	from, to := s.defaultYearRange(years)

	payees, err := s.source.Payees(ctx, entityID)
	if err != nil {
		return nil, err
	}
	areas, err := s.source.Areas(ctx, entityID)
	if err != nil {
		return nil, err
	}
	departments, err := s.source.Departments(ctx, entityID)
	if err != nil {
		return nil, err
	}

	rows, err := s.summaryRows(ctx, entityID, from, to)
	if err != nil {
		return nil, err
	}
	byPayee, byArea, byDepartment := summaryBreakdowns(rows)
	count, total := areaTotals(rows.Area)

	fields := log.NewFields().WithOperation(log.OpRead).WithEntity(entityID, 0)
	fields[log.FieldRecords] = count
	s.logger.DebugContext(ctx, "payments overview", fields.ToSlice()...)

	return &Overview{
		Entity:       entity,
		Years:        years,
		FromYear:     from,
		ToYear:       to,
		Payees:       payees,
		Areas:        areas,
		Departments:  departments,
		ByPayee:      byPayee,
		ByArea:       byArea,
		ByDepartment: byDepartment,
		Count:        count,
		TotalExpense: total,
	}, nil
}

// Search runs one payment search. Validation failures surface as
// budget.ErrInvalidAmount or budget.ErrInvalidYear; an unknown entity as
// store.ErrNotFound.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*Result, error) {
	entity, err := s.source.Entity(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	p, err := query.Build(req.EntityID, req.Filters)
	if err != nil {
		return nil, err
	}

	from, to, explicitYears, err := budget.ParseYearRange(req.Filters.Years)
	if err != nil {
		return nil, err
	}
	if !explicitYears {
		years, err := s.source.Years(ctx, req.EntityID)
		if err != nil {
			return nil, err
		}
		from, to = s.defaultYearRange(years)
	}

	mode := query.SelectMode(p.FilterCount(), req.FullListing)
	fields := log.NewFields().WithOperation(log.OpSearch).WithEntity(req.EntityID, 0)
	fields[log.FieldMode] = mode.String()
	fields[log.FieldFilters] = len(p.Active)
	s.logger.DebugContext(ctx, "payment search", fields.ToSlice()...)

	res := &Result{
		Entity:        entity,
		Mode:          mode,
		FromYear:      from,
		ToYear:        to,
		ActiveFilters: p.Active,
	}

	if mode == query.ModeSummary {
		rows, err := s.summaryRows(ctx, req.EntityID, from, to)
		if err != nil {
			return nil, err
		}
		res.ByPayee, res.ByArea, res.ByDepartment = summaryBreakdowns(rows)
		res.Count, res.TotalExpense = areaTotals(rows.Area)
		return res, nil
	}

	if explicitYears {
		p.WithYears(from, to)
	}
	// Full listings are presented flat, so they come ordered by amount;
	// the grouped views impose their own order.
	records, err := s.source.DenormalizedRecords(ctx, p, req.FullListing)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		records[i] = annotateDate(r)
	}

	res.ByPayee = detailBreakdown(s.cfg.BreakdownByPayee, p.Active, records)
	res.ByArea = detailBreakdown(s.cfg.BreakdownByArea, p.Active, records)
	res.ByDepartment = detailBreakdown(s.cfg.BreakdownByDepartment, p.Active, records)
	res.Count = len(records)
	res.TotalExpense = res.ByPayee.TotalExpense[bucket]
	if req.FullListing {
		res.Records = records
	}
	return res, nil
}

// defaultYearRange picks the range a search without an explicit year
// covers. With the year-range toggle off only the most recent year is
// browseable.
func (s *Service) defaultYearRange(years []int) (from, to int) {
	if len(years) == 0 {
		return 0, 0
	}
	from, to = years[0], years[len(years)-1]
	if !s.cfg.PaymentsYearRange {
		from = to
	}
	return from, to
}

// summaryRows fetches (or serves from cache) the three grouped aggregates
// a summary answer is built from.
func (s *Service) summaryRows(ctx context.Context, entityID int64, from, to int) (SummaryRows, error) {
	key := fmt.Sprintf("%d:%d-%d", entityID, from, to)
	if s.cache != nil {
		if rows, ok := s.cache.Get(ctx, key); ok {
			return rows, nil
		}
	}

	var rows SummaryRows
	var err error
	rows.Payee, err = s.source.Aggregate(ctx, store.GroupByPayee, entityID, from, to, true, s.cfg.TopPayeesLimit)
	if err != nil {
		return SummaryRows{}, err
	}
	rows.Area, err = s.source.Aggregate(ctx, store.GroupByArea, entityID, from, to, false, 0)
	if err != nil {
		return SummaryRows{}, err
	}
	rows.Department, err = s.source.Aggregate(ctx, store.GroupByDepartment, entityID, from, to, false, 0)
	if err != nil {
		return SummaryRows{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, rows)
	}
	return rows, nil
}

// summaryBreakdowns rebuilds the three single-level breakdowns from raw
// aggregate rows. Each group's aggregate becomes one uniform record, so
// the summary and the detail path expose the same shape downstream.
func summaryBreakdowns(rows SummaryRows) (byPayee, byArea, byDepartment *budget.Breakdown) {
	build := func(criterion string, rs []store.AggregateRow) *budget.Breakdown {
		b := budget.NewBreakdown(criterion)
		for _, r := range rs {
			values := map[string]string{}
			if r.HasValue {
				values[criterion] = r.Value
			}
			b.AddItem(bucket, budget.NewRecord(r.Sum, true, values))
		}
		return b
	}
	return build(budget.CriterionPayee, rows.Payee),
		build(budget.CriterionArea, rows.Area),
		build(budget.CriterionDepartment, rows.Department)
}

// areaTotals derives the overall payment count and expense total. The
// area aggregate is the one unlimited grouping that covers every payment,
// anonymized ones included.
func areaTotals(rows []store.AggregateRow) (count int, total int64) {
	for _, r := range rows {
		count += r.Count
		total += r.Sum
	}
	return count, total
}

// detailBreakdown groups the record set by the configured criteria minus
// the ones an active filter already pins to a single value.
func detailBreakdown(criteria, active []string, records []budget.Record) *budget.Breakdown {
	b := budget.NewBreakdown(query.ReduceCriteria(criteria, active)...)
	for _, r := range records {
		b.AddItem(bucket, r)
	}
	return b
}

// annotateDate folds a record's payment date into its description, the
// form the grouped views present. A dated record is annotated even when
// its description is blank, so two payments on different dates never
// collapse into one group.
func annotateDate(r budget.Record) budget.Record {
	date, ok := r.Value(budget.CriterionDate)
	if !ok || date == "" {
		return r
	}
	desc, _ := r.Value(budget.CriterionDescription)
	return r.WithValue(budget.CriterionDescription, desc+" ("+date+")")
}
