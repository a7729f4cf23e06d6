package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"presupuesto/internal/budget"
	"presupuesto/internal/config"
	"presupuesto/internal/log"
	"presupuesto/internal/payments"
	"presupuesto/internal/query"
	"presupuesto/internal/search"
	"presupuesto/internal/store"
)

// stubStore implements the read contracts with canned data.
type stubStore struct {
	unavailable bool

	lastSearchYear int
}

func (s *stubStore) err() error {
	if s.unavailable {
		return store.ErrUnavailable
	}
	return nil
}

func (s *stubStore) Entity(ctx context.Context, id int64) (store.Entity, error) {
	if err := s.err(); err != nil {
		return store.Entity{}, err
	}
	if id != 1 {
		return store.Entity{}, store.ErrNotFound
	}
	return store.Entity{ID: 1, Name: "Ayuntamiento", Level: "municipality", Language: "es"}, nil
}

func (s *stubStore) Years(ctx context.Context, entityID int64) ([]int, error) {
	return []int{2020, 2021}, s.err()
}

func (s *stubStore) Payees(ctx context.Context, entityID int64) ([]string, error) {
	return []string{"ACME SL"}, s.err()
}

func (s *stubStore) Areas(ctx context.Context, entityID int64) ([]string, error) {
	return []string{"Culture"}, s.err()
}

func (s *stubStore) Departments(ctx context.Context, entityID int64) ([]string, error) {
	return []string{"Urbanism"}, s.err()
}

func (s *stubStore) Aggregate(ctx context.Context, by store.GroupBy, entityID int64, fromYear, toYear int, excludeAnonymized bool, limit int) ([]store.AggregateRow, error) {
	return []store.AggregateRow{{Value: "Culture", HasValue: true, Count: 2, Sum: 500_00}}, s.err()
}

func (s *stubStore) DenormalizedRecords(ctx context.Context, p *query.Predicate, orderByAmountDesc bool) ([]budget.Record, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return []budget.Record{
		budget.NewRecord(100_00, true, map[string]string{"payee": "ACME SL", "area": "Culture"}),
	}, nil
}

func (s *stubStore) BudgetID(ctx context.Context, entityID int64, year int) (int64, error) {
	return 7, s.err()
}

func (s *stubStore) LatestYear(ctx context.Context, entityID int64) (int, error) {
	return 2021, s.err()
}

func (s *stubStore) SearchTerms(ctx context.Context, q, language string) ([]store.Term, error) {
	return []store.Term{{Title: "deuda", Description: "public debt"}}, s.err()
}

func (s *stubStore) SearchEntities(ctx context.Context, q string) ([]store.Entity, error) {
	return nil, s.err()
}

func (s *stubStore) SearchDepartments(ctx context.Context, q string, budgetID int64) ([]string, error) {
	return nil, s.err()
}

func (s *stubStore) SearchItems(ctx context.Context, q string, year int, language string) ([]store.Item, error) {
	s.lastSearchYear = year
	return nil, s.err()
}

func (s *stubStore) SearchPayments(ctx context.Context, q string, year int, language string) ([]store.PaymentMatch, error) {
	return nil, s.err()
}

func (s *stubStore) SearchArticles(ctx context.Context, q string, budgetID int64) ([]store.Article, error) {
	return nil, s.err()
}

func (s *stubStore) SearchHeadings(ctx context.Context, q string, budgetID int64) ([]store.Heading, error) {
	return nil, s.err()
}

func (s *stubStore) SearchPolicies(ctx context.Context, q string, budgetID int64) ([]store.Policy, error) {
	return nil, s.err()
}

func (s *stubStore) SearchProgrammes(ctx context.Context, q string, budgetID int64) ([]store.Programme, error) {
	return nil, s.err()
}

func testServer(t *testing.T, st *stubStore) *Server {
	t.Helper()
	cfg := &config.Config{
		Language:              "es",
		MainEntityID:          1,
		ShowPayments:          true,
		PaymentsYearRange:     true,
		TopPayeesLimit:        50,
		BreakdownByPayee:      []string{"payee", "area", "description"},
		BreakdownByArea:       []string{"area", "payee", "description"},
		BreakdownByDepartment: []string{"department", "payee", "description"},
		PageLength:            10,
		PageWindowBody:        5,
		PageWindowPadding:     2,
	}
	logger := log.New(log.DefaultConfig())
	svc := payments.NewService(st, cfg, nil, logger)
	cons := search.NewConsolidator(st, cfg, logger)
	srv := NewServer(":0", svc, cons, cfg, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestPaymentsOverviewEndpoint(t *testing.T) {
	srv := testServer(t, &stubStore{})

	rec := doRequest(t, srv, http.MethodGet, "/api/payments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Entity struct {
			Name string `json:"name"`
		} `json:"entity"`
		Years []int `json:"years"`
		Count int   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Entity.Name != "Ayuntamiento" || len(body.Years) != 2 || body.Count != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestPaymentsSearchEndpoint(t *testing.T) {
	srv := testServer(t, &stubStore{})

	rec := doRequest(t, srv, http.MethodGet, "/api/payments/search?area=Culture")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Mode          string   `json:"mode"`
		ActiveFilters []string `json:"activeFilters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != "detail" || len(body.ActiveFilters) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		store  *stubStore
		method string
		target string
		want   int
	}{
		{"malformed amount", &stubStore{}, http.MethodGet, "/api/payments/search?minAmount=12x", http.StatusBadRequest},
		{"bad entity id", &stubStore{}, http.MethodGet, "/api/payments?entity=zero", http.StatusBadRequest},
		{"unknown entity", &stubStore{}, http.MethodGet, "/api/payments?entity=42", http.StatusNotFound},
		{"store down", &stubStore{unavailable: true}, http.MethodGet, "/api/payments", http.StatusBadGateway},
		{"wrong method", &stubStore{}, http.MethodPost, "/api/payments", http.StatusMethodNotAllowed},
		{"bad year", &stubStore{}, http.MethodGet, "/api/search?q=roads&year=abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, tt.store)
			rec := doRequest(t, srv, tt.method, tt.target)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	srv := testServer(t, &stubStore{})

	rec := doRequest(t, srv, http.MethodGet, "/api/search?q=")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Size  int   `json:"size"`
		Terms []any `json:"terms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Size != 0 || len(body.Terms) != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestSearchEndpointYearScope(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantYear int
	}{
		{"default is the latest budget", "/api/search?q=deuda", 2021},
		{"explicit year", "/api/search?q=deuda&year=2020", 2020},
		{"all budgets on request", "/api/search?q=deuda&year=all", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &stubStore{}
			srv := testServer(t, st)
			rec := doRequest(t, srv, http.MethodGet, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if st.lastSearchYear != tt.wantYear {
				t.Errorf("search year = %d, want %d", st.lastSearchYear, tt.wantYear)
			}
		})
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := testServer(t, &stubStore{})

	rec := doRequest(t, srv, http.MethodGet, "/api/search?q=deuda&year=2021")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Size  int `json:"size"`
		Terms []struct {
			Title string `json:"title"`
		} `json:"terms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Size != 1 || len(body.Terms) != 1 || body.Terms[0].Title != "deuda" {
		t.Errorf("body = %+v", body)
	}
}
