package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"presupuesto/internal/budget"
	"presupuesto/internal/cache"
	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/query"
	"presupuesto/internal/store"
)

type aggregateCall struct {
	by                store.GroupBy
	fromYear, toYear  int
	excludeAnonymized bool
	limit             int
}

type fakeSource struct {
	entity      store.Entity
	years       []int
	payees      []string
	areas       []string
	departments []string
	aggregates  map[store.GroupBy][]store.AggregateRow
	records     []budget.Record

	aggregateCalls []aggregateCall
	lastPredicate  *query.Predicate
	lastOrdered    bool
}

func (f *fakeSource) Entity(ctx context.Context, id int64) (store.Entity, error) {
	if id != f.entity.ID {
		return store.Entity{}, store.ErrNotFound
	}
	return f.entity, nil
}

func (f *fakeSource) Years(ctx context.Context, entityID int64) ([]int, error) {
	return f.years, nil
}

func (f *fakeSource) Payees(ctx context.Context, entityID int64) ([]string, error) {
	return f.payees, nil
}

func (f *fakeSource) Areas(ctx context.Context, entityID int64) ([]string, error) {
	return f.areas, nil
}

func (f *fakeSource) Departments(ctx context.Context, entityID int64) ([]string, error) {
	return f.departments, nil
}

func (f *fakeSource) Aggregate(ctx context.Context, by store.GroupBy, entityID int64, fromYear, toYear int, excludeAnonymized bool, limit int) ([]store.AggregateRow, error) {
	f.aggregateCalls = append(f.aggregateCalls, aggregateCall{by, fromYear, toYear, excludeAnonymized, limit})
	return f.aggregates[by], nil
}

func (f *fakeSource) DenormalizedRecords(ctx context.Context, p *query.Predicate, orderByAmountDesc bool) ([]budget.Record, error) {
	f.lastPredicate = p
	f.lastOrdered = orderByAmountDesc
	return f.records, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MainEntityID:          1,
		PaymentsYearRange:     true,
		TopPayeesLimit:        50,
		BreakdownByPayee:      []string{"payee", "area", "description"},
		BreakdownByArea:       []string{"area", "payee", "description"},
		BreakdownByDepartment: []string{"department", "payee", "description"},
	}
}

func testLogger() *log.Logger {
	return log.New(log.DefaultConfig())
}

func testSource() *fakeSource {
	return &fakeSource{
		entity:      store.Entity{ID: 1, Name: "Ayuntamiento", Level: "municipality", Language: "es"},
		years:       []int{2019, 2020, 2021},
		payees:      []string{"ACME SL", "Obras SA"},
		areas:       []string{"Culture", "Roads"},
		departments: []string{"Urbanism"},
		aggregates: map[store.GroupBy][]store.AggregateRow{
			store.GroupByPayee: {
				{Value: "ACME SL", HasValue: true, Count: 3, Sum: 300_00},
				{Value: "Obras SA", HasValue: true, Count: 1, Sum: 50_00},
			},
			store.GroupByArea: {
				{Value: "Culture", HasValue: true, Count: 4, Sum: 350_00},
				{HasValue: false, Count: 2, Sum: 20_00},
			},
			store.GroupByDepartment: {
				{Value: "Urbanism", HasValue: true, Count: 6, Sum: 370_00},
			},
		},
	}
}

func TestSearchUnknownEntity(t *testing.T) {
	svc := NewService(testSource(), testConfig(), nil, testLogger())

	_, err := svc.Search(context.Background(), SearchRequest{EntityID: 99})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestSearchSummaryMode(t *testing.T) {
	src := testSource()
	svc := NewService(src, testConfig(), nil, testLogger())

	res, err := svc.Search(context.Background(), SearchRequest{EntityID: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Mode != query.ModeSummary {
		t.Fatalf("mode = %s, want summary", res.Mode)
	}
	if res.FromYear != 2019 || res.ToYear != 2021 {
		t.Errorf("year range = %d-%d, want 2019-2021", res.FromYear, res.ToYear)
	}

	// The payee aggregate is capped and excludes anonymized payments;
	// the other two are complete.
	if len(src.aggregateCalls) != 3 {
		t.Fatalf("aggregate calls = %d, want 3", len(src.aggregateCalls))
	}
	payeeCall := src.aggregateCalls[0]
	if payeeCall.by != store.GroupByPayee || !payeeCall.excludeAnonymized || payeeCall.limit != 50 {
		t.Errorf("payee aggregate call = %+v", payeeCall)
	}
	areaCall := src.aggregateCalls[1]
	if areaCall.excludeAnonymized || areaCall.limit != 0 {
		t.Errorf("area aggregate call = %+v", areaCall)
	}

	// Overall count and total come from the unlimited area aggregate.
	if res.Count != 6 {
		t.Errorf("Count = %d, want 6", res.Count)
	}
	if res.TotalExpense != 370_00 {
		t.Errorf("TotalExpense = %d, want 37000", res.TotalExpense)
	}

	if got := res.ByPayee.Groups["ACME SL"].Total(bucket); got != 300_00 {
		t.Errorf("ACME SL total = %d, want 30000", got)
	}
	// A NULL grouping value lands in the unspecified group, not in "".
	if _, ok := res.ByArea.Groups[budget.Unspecified]; !ok {
		t.Error("NULL area row did not produce an unspecified group")
	}
	if _, ok := res.ByArea.Groups[""]; ok {
		t.Error("NULL area row produced an empty-string group")
	}
}

func TestSearchDetailMode(t *testing.T) {
	src := testSource()
	src.records = []budget.Record{
		budget.NewRecord(100_00, true, map[string]string{
			"payee": "ACME SL", "area": "Culture", "department": "Urbanism",
			"description": "Stage rental", "date": "2021-03-01",
		}),
		budget.NewRecord(40_00, true, map[string]string{
			"payee": "Obras SA", "area": "Culture", "department": "Urbanism",
			"description": "Repairs",
		}),
		budget.NewRecord(15_00, false, map[string]string{
			"payee": "ACME SL", "area": "Culture",
			"description": "Refund",
		}),
	}
	svc := NewService(src, testConfig(), nil, testLogger())

	res, err := svc.Search(context.Background(), SearchRequest{
		EntityID: 1,
		Filters:  query.Filters{Area: "Culture"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Mode != query.ModeDetail {
		t.Fatalf("mode = %s, want detail", res.Mode)
	}
	if len(src.aggregateCalls) != 0 {
		t.Errorf("detail mode ran %d aggregates", len(src.aggregateCalls))
	}
	if src.lastPredicate == nil || len(src.lastPredicate.Active) != 1 || src.lastPredicate.Active[0] != query.FilterArea {
		t.Fatalf("predicate active filters = %+v", src.lastPredicate)
	}

	// The active area filter pins "area" to one value; the by-area
	// breakdown drops it as a grouping level.
	wantByArea := []string{"payee", "description"}
	if got := res.ByArea.Criteria(); len(got) != 2 || got[0] != wantByArea[0] || got[1] != wantByArea[1] {
		t.Errorf("ByArea criteria = %v, want %v", got, wantByArea)
	}

	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}
	// Expense total excludes the income record.
	if res.TotalExpense != 140_00 {
		t.Errorf("TotalExpense = %d, want 14000", res.TotalExpense)
	}
	if res.ByPayee.TotalIncome[bucket] != 15_00 {
		t.Errorf("income bucket = %d, want 1500", res.ByPayee.TotalIncome[bucket])
	}

	// The dated record's description carries the date.
	acme := res.ByPayee.Groups["ACME SL"]
	if acme == nil {
		t.Fatal("missing ACME SL group")
	}
	if _, ok := acme.Groups["Stage rental (2021-03-01)"]; !ok {
		t.Errorf("dated description missing, groups: %v", keysOf(acme.Groups))
	}
	// Records are only returned to full-listing callers.
	if res.Records != nil {
		t.Error("interactive search returned raw records")
	}
}

func TestSearchDatedRecordWithoutDescription(t *testing.T) {
	src := testSource()
	src.records = []budget.Record{
		budget.NewRecord(50_00, true, map[string]string{
			"payee": "ACME SL", "area": "Culture", "date": "2021-03-01",
		}),
		budget.NewRecord(30_00, true, map[string]string{
			"payee": "ACME SL", "area": "Culture", "date": "2021-06-15",
		}),
	}
	svc := NewService(src, testConfig(), nil, testLogger())

	res, err := svc.Search(context.Background(), SearchRequest{
		EntityID: 1,
		Filters:  query.Filters{Area: "Culture"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// The date alone keeps the two payments apart; without it both would
	// collapse into the no-description group.
	acme := res.ByPayee.Groups["ACME SL"]
	if acme == nil {
		t.Fatal("missing ACME SL group")
	}
	for _, want := range []string{" (2021-03-01)", " (2021-06-15)"} {
		if _, ok := acme.Groups[want]; !ok {
			t.Errorf("group %q missing, groups: %v", want, keysOf(acme.Groups))
		}
	}
}

func TestSearchExplicitYears(t *testing.T) {
	src := testSource()
	svc := NewService(src, testConfig(), nil, testLogger())

	res, err := svc.Search(context.Background(), SearchRequest{
		EntityID: 1,
		Filters:  query.Filters{Payee: "ACME SL", Years: "2021,2019"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Inverted bounds come back normalized.
	if res.FromYear != 2019 || res.ToYear != 2021 {
		t.Errorf("year range = %d-%d, want 2019-2021", res.FromYear, res.ToYear)
	}

	p := src.lastPredicate
	var gotYears []any
	for i, c := range p.Clauses {
		if c.Field == query.FieldYear {
			gotYears = append(gotYears, p.Args[i])
		}
	}
	if len(gotYears) != 2 || gotYears[0] != 2019 || gotYears[1] != 2021 {
		t.Errorf("year clause args = %v, want [2019 2021]", gotYears)
	}
}

func TestSearchMalformedAmount(t *testing.T) {
	svc := NewService(testSource(), testConfig(), nil, testLogger())

	_, err := svc.Search(context.Background(), SearchRequest{
		EntityID: 1,
		Filters:  query.Filters{MinAmount: "12x"},
	})
	if !errors.Is(err, budget.ErrInvalidAmount) {
		t.Fatalf("err = %v, want budget.ErrInvalidAmount", err)
	}
}

func TestSearchFullListing(t *testing.T) {
	src := testSource()
	src.records = []budget.Record{
		budget.NewRecord(100_00, true, map[string]string{"payee": "ACME SL"}),
	}
	svc := NewService(src, testConfig(), nil, testLogger())

	res, err := svc.Search(context.Background(), SearchRequest{EntityID: 1, FullListing: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Full listing forces detail mode even with no filters set.
	if res.Mode != query.ModeDetail {
		t.Fatalf("mode = %s, want detail", res.Mode)
	}
	if len(res.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(res.Records))
	}
	if !src.lastOrdered {
		t.Error("full listing was not ordered")
	}
}

func TestSummaryUsesCache(t *testing.T) {
	src := testSource()
	c := cache.NewLRU[SummaryRows](8, time.Minute)
	svc := NewService(src, testConfig(), c, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := svc.Search(context.Background(), SearchRequest{EntityID: 1}); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}

	// Second search is answered from the cache.
	if len(src.aggregateCalls) != 3 {
		t.Errorf("aggregate calls = %d, want 3", len(src.aggregateCalls))
	}
}

func TestOverview(t *testing.T) {
	src := testSource()
	svc := NewService(src, testConfig(), nil, testLogger())

	ov, err := svc.Overview(context.Background(), 1)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	if ov.Entity.Name != "Ayuntamiento" {
		t.Errorf("entity = %q", ov.Entity.Name)
	}
	if len(ov.Payees) != 2 || len(ov.Areas) != 2 || len(ov.Departments) != 1 {
		t.Errorf("lists = %d/%d/%d payees/areas/departments", len(ov.Payees), len(ov.Areas), len(ov.Departments))
	}
	if ov.FromYear != 2019 || ov.ToYear != 2021 {
		t.Errorf("year range = %d-%d, want 2019-2021", ov.FromYear, ov.ToYear)
	}
	if ov.Count != 6 || ov.TotalExpense != 370_00 {
		t.Errorf("count/total = %d/%d, want 6/37000", ov.Count, ov.TotalExpense)
	}
}

func TestOverviewSingleYearToggle(t *testing.T) {
	cfg := testConfig()
	cfg.PaymentsYearRange = false
	svc := NewService(testSource(), cfg, nil, testLogger())

	ov, err := svc.Overview(context.Background(), 1)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.FromYear != 2021 || ov.ToYear != 2021 {
		t.Errorf("year range = %d-%d, want 2021-2021", ov.FromYear, ov.ToYear)
	}
}

func keysOf(m map[string]*budget.Breakdown) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
