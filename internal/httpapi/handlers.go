package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"presupuesto/internal/budget"
	"presupuesto/internal/log"
	"presupuesto/internal/paginate"
	"presupuesto/internal/payments"
	"presupuesto/internal/query"
	"presupuesto/internal/search"
	"presupuesto/internal/store"
)

func (s *Server) handlePaymentsOverview(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.ShowPayments {
		http.NotFound(w, r)
		return
	}
	entityID, err := s.entityParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ov, err := s.payments.Overview(r.Context(), entityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, overviewJSON(ov))
}

func (s *Server) handlePaymentsSearch(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.ShowPayments {
		http.NotFound(w, r)
		return
	}
	entityID, err := s.entityParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	req := payments.SearchRequest{
		EntityID: entityID,
		Filters: query.Filters{
			Area:        q.Get("area"),
			Department:  q.Get("department"),
			Payee:       q.Get("payee"),
			Description: q.Get("description"),
			FiscalID:    q.Get("fiscalId"),
			MinAmount:   q.Get("minAmount"),
			MaxAmount:   q.Get("maxAmount"),
			Years:       q.Get("years"),
		},
		FullListing: q.Get("format") == "full",
	}

	res, err := s.payments.Search(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, resultJSON(res))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// No year means the latest budget; "all" is the explicit opt-in to
	// search across every budget.
	year := search.YearLatest
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if strings.EqualFold(v, "all") {
			year = search.YearAll
		} else {
			y, err := strconv.Atoi(v)
			if err != nil || y < 1 {
				s.writeError(w, r, budget.ErrInvalidYear)
				return
			}
			year = y
		}
	}
	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			page = p
		}
	}

	res, err := s.search.Consolidate(r.Context(), q.Get("q"), year, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, searchJSON(res))
}

// entityParam reads the optional entity id, defaulting to the portal's
// main entity.
func (s *Server) entityParam(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("entity"))
	if v == "" {
		return s.cfg.MainEntityID, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, errBadEntity
	}
	return id, nil
}

var errBadEntity = errors.New("invalid entity id")

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "response encoding failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, budget.ErrInvalidAmount),
		errors.Is(err, budget.ErrInvalidYear),
		errors.Is(err, errBadEntity):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		fields := log.NewFields().WithError(err)
		fields[log.FieldPath] = r.URL.Path
		fields[log.FieldStatusCode] = status
		log.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", fields.ToSlice()...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// --- JSON shapes ---

type breakdownDTO struct {
	Criteria     []string                 `json:"criteria,omitempty"`
	TotalExpense map[string]int64         `json:"totalExpense"`
	TotalIncome  map[string]int64         `json:"totalIncome"`
	Count        int                      `json:"count"`
	Groups       map[string]*breakdownDTO `json:"groups,omitempty"`
	Sample       []recordDTO              `json:"sample,omitempty"`
}

type recordDTO struct {
	Amount  int64             `json:"amount"`
	Expense bool              `json:"expense"`
	Values  map[string]string `json:"values"`
}

func breakdownJSON(b *budget.Breakdown) *breakdownDTO {
	if b == nil {
		return nil
	}
	dto := &breakdownDTO{
		Criteria:     b.Criteria(),
		TotalExpense: b.TotalExpense,
		TotalIncome:  b.TotalIncome,
		Count:        b.Count,
	}
	if len(b.Groups) > 0 {
		dto.Groups = make(map[string]*breakdownDTO, len(b.Groups))
		for k, sub := range b.Groups {
			if k == budget.Unspecified {
				k = "(unspecified)"
			}
			dto.Groups[k] = breakdownJSON(sub)
		}
	}
	for _, rec := range b.Sample {
		dto.Sample = append(dto.Sample, recordJSON(rec))
	}
	return dto
}

func recordJSON(r budget.Record) recordDTO {
	return recordDTO{Amount: r.Amount, Expense: r.Expense, Values: r.Values()}
}

type entityDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

func entityJSON(e store.Entity) entityDTO {
	return entityDTO{ID: e.ID, Name: e.Name, Level: e.Level}
}

type overviewDTO struct {
	Entity       entityDTO     `json:"entity"`
	Years        []int         `json:"years"`
	FromYear     int           `json:"fromYear"`
	ToYear       int           `json:"toYear"`
	Payees       []string      `json:"payees"`
	Areas        []string      `json:"areas"`
	Departments  []string      `json:"departments"`
	ByPayee      *breakdownDTO `json:"byPayee"`
	ByArea       *breakdownDTO `json:"byArea"`
	ByDepartment *breakdownDTO `json:"byDepartment"`
	Count        int           `json:"count"`
	TotalExpense int64         `json:"totalExpense"`
}

func overviewJSON(ov *payments.Overview) overviewDTO {
	return overviewDTO{
		Entity:       entityJSON(ov.Entity),
		Years:        ov.Years,
		FromYear:     ov.FromYear,
		ToYear:       ov.ToYear,
		Payees:       ov.Payees,
		Areas:        ov.Areas,
		Departments:  ov.Departments,
		ByPayee:      breakdownJSON(ov.ByPayee),
		ByArea:       breakdownJSON(ov.ByArea),
		ByDepartment: breakdownJSON(ov.ByDepartment),
		Count:        ov.Count,
		TotalExpense: ov.TotalExpense,
	}
}

type resultDTO struct {
	Entity        entityDTO     `json:"entity"`
	Mode          string        `json:"mode"`
	FromYear      int           `json:"fromYear"`
	ToYear        int           `json:"toYear"`
	ActiveFilters []string      `json:"activeFilters"`
	ByPayee       *breakdownDTO `json:"byPayee"`
	ByArea        *breakdownDTO `json:"byArea"`
	ByDepartment  *breakdownDTO `json:"byDepartment"`
	Count         int           `json:"count"`
	TotalExpense  int64         `json:"totalExpense"`
	Records       []recordDTO   `json:"records,omitempty"`
}

func resultJSON(res *payments.Result) resultDTO {
	dto := resultDTO{
		Entity:        entityJSON(res.Entity),
		Mode:          res.Mode.String(),
		FromYear:      res.FromYear,
		ToYear:        res.ToYear,
		ActiveFilters: res.ActiveFilters,
		ByPayee:       breakdownJSON(res.ByPayee),
		ByArea:        breakdownJSON(res.ByArea),
		ByDepartment:  breakdownJSON(res.ByDepartment),
		Count:         res.Count,
		TotalExpense:  res.TotalExpense,
	}
	for _, rec := range res.Records {
		dto.Records = append(dto.Records, recordJSON(rec))
	}
	return dto
}

type termDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type pageDTO[T any] struct {
	Number     int   `json:"number"`
	Items      []T   `json:"items"`
	TotalItems int   `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
	Window     []int `json:"window"`
}

func pageJSON[T any](p paginate.Page[T]) pageDTO[T] {
	return pageDTO[T]{
		Number:     p.Number,
		Items:      p.Items,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		Window:     p.Window,
	}
}

type searchDTO struct {
	Query string `json:"query"`
	Size  int    `json:"size"`

	Terms       []termDTO   `json:"terms"`
	Entities    []entityDTO `json:"entities,omitempty"`
	Departments []string    `json:"departments,omitempty"`

	ExpenseArticles []string            `json:"expenseArticles"`
	IncomeArticles  []string            `json:"incomeArticles"`
	ExpenseHeadings map[string][]string `json:"expenseHeadings"`
	IncomeHeadings  map[string][]string `json:"incomeHeadings"`
	Policies        []string            `json:"policies"`
	Programmes      map[string][]string `json:"programmes"`

	Items    pageDTO[store.Item]         `json:"items"`
	Payments pageDTO[store.PaymentMatch] `json:"payments"`
}

func searchJSON(res *search.Results) searchDTO {
	dto := searchDTO{
		Query:           res.Query,
		Size:            res.Size(),
		ExpenseArticles: sortedKeys(res.ExpenseArticles),
		IncomeArticles:  sortedKeys(res.IncomeArticles),
		ExpenseHeadings: childSetJSON(res.ExpenseHeadings),
		IncomeHeadings:  childSetJSON(res.IncomeHeadings),
		Policies:        sortedKeys(res.Policies),
		Programmes:      childSetJSON(res.Programmes),
		Items:           pageJSON(res.Items),
		Payments:        pageJSON(res.Payments),
	}
	dto.Terms = make([]termDTO, 0, len(res.Terms))
	for _, t := range res.Terms {
		dto.Terms = append(dto.Terms, termDTO{Title: t.Title, Description: t.Description})
	}
	for _, e := range res.Entities {
		dto.Entities = append(dto.Entities, entityJSON(e))
	}
	dto.Departments = res.Departments
	return dto
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func childSetJSON(s search.ChildSet) map[string][]string {
	out := make(map[string][]string, len(s))
	for parent, children := range s {
		out[parent] = sortedKeys(children)
	}
	return out
}
