package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"presupuesto/internal/budget"
	"presupuesto/internal/query"
)

// corpus names a searchable text column set.
type corpus int

const (
	corpusPayments    corpus = iota // payee + description
	corpusPaymentDesc               // description only (filter clause)
	corpusItems
	corpusInstitutional
	corpusEconomic
	corpusFunctional
)

// dialect captures everything that differs between the SQLite and the
// Postgres rendering of the shared queries. match holds one format
// string per corpus with a single %s slot for the bound placeholder.
type dialect struct {
	name        string
	placeholder func(i int) string
	match       map[corpus]string
	termsSQL    string // args: 1 = language, 2 = query
	entitiesSQL string // args: 1 = query
}

// sqlStore implements Store over database/sql for both backends.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) matchClause(c corpus, ph string) string {
	return fmt.Sprintf(s.d.match[c], ph)
}

const denormalizedColumns = `p.id, p.area, p.programme, p.date, p.payee, p.expense, p.amount, p.description, ic.department, b.year`

const denormalizedFrom = `FROM payments p
	LEFT JOIN budgets b ON p.budget_id = b.id
	LEFT JOIN institutional_categories ic ON p.institutional_category_id = ic.id`

func (s *sqlStore) Entity(ctx context.Context, id int64) (Entity, error) {
	var e Entity
	q := `SELECT id, name, level, language FROM entities WHERE id = ` + s.d.placeholder(1)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Name, &e.Level, &e.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entity{}, unavailable("query entity", err)
	}
	return e, nil
}

func (s *sqlStore) BudgetID(ctx context.Context, entityID int64, year int) (int64, error) {
	var id int64
	q := `SELECT id FROM budgets WHERE entity_id = ` + s.d.placeholder(1) + ` AND year = ` + s.d.placeholder(2)
	err := s.db.QueryRowContext(ctx, q, entityID, year).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("budget for entity %d year %d: %w", entityID, year, ErrNotFound)
	}
	if err != nil {
		return 0, unavailable("query budget", err)
	}
	return id, nil
}

func (s *sqlStore) LatestYear(ctx context.Context, entityID int64) (int, error) {
	var year sql.NullInt64
	q := `SELECT MAX(year) FROM budgets WHERE entity_id = ` + s.d.placeholder(1)
	if err := s.db.QueryRowContext(ctx, q, entityID).Scan(&year); err != nil {
		return 0, unavailable("query latest year", err)
	}
	if !year.Valid {
		return 0, fmt.Errorf("budgets for entity %d: %w", entityID, ErrNotFound)
	}
	return int(year.Int64), nil
}

func (s *sqlStore) Years(ctx context.Context, entityID int64) ([]int, error) {
	q := `SELECT DISTINCT b.year FROM payments p JOIN budgets b ON p.budget_id = b.id
		WHERE b.entity_id = ` + s.d.placeholder(1) + ` ORDER BY b.year`
	rows, err := s.db.QueryContext(ctx, q, entityID)
	if err != nil {
		return nil, unavailable("query years", err)
	}
	defer rows.Close()
	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, unavailable("scan year", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (s *sqlStore) Payees(ctx context.Context, entityID int64) ([]string, error) {
	return s.distinctColumn(ctx, "p.payee", "", entityID)
}

func (s *sqlStore) Areas(ctx context.Context, entityID int64) ([]string, error) {
	return s.distinctColumn(ctx, "p.area", "", entityID)
}

func (s *sqlStore) Departments(ctx context.Context, entityID int64) ([]string, error) {
	join := `JOIN institutional_categories ic ON p.institutional_category_id = ic.id`
	return s.distinctColumn(ctx, "ic.department", join, entityID)
}

func (s *sqlStore) distinctColumn(ctx context.Context, col, extraJoin string, entityID int64) ([]string, error) {
	q := `SELECT DISTINCT ` + col + ` FROM payments p JOIN budgets b ON p.budget_id = b.id `
	if extraJoin != "" {
		q += extraJoin + " "
	}
	q += `WHERE b.entity_id = ` + s.d.placeholder(1) + ` AND ` + col + ` IS NOT NULL ORDER BY ` + col
	rows, err := s.db.QueryContext(ctx, q, entityID)
	if err != nil {
		return nil, unavailable("query "+col, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, unavailable("scan "+col, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var aggregateColumns = map[GroupBy]string{
	GroupByPayee:      "p.payee",
	GroupByArea:       "p.area",
	GroupByDepartment: "ic.department",
}

func (s *sqlStore) Aggregate(ctx context.Context, by GroupBy, entityID int64, fromYear, toYear int, excludeAnonymized bool, limit int) ([]AggregateRow, error) {
	col, ok := aggregateColumns[by]
	if !ok {
		return nil, fmt.Errorf("unknown grouping key: %s", by)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + col + `, COUNT(p.amount), SUM(p.amount)
		FROM payments p LEFT JOIN budgets b ON p.budget_id = b.id`)
	if by == GroupByDepartment {
		sb.WriteString(` LEFT JOIN institutional_categories ic ON p.institutional_category_id = ic.id`)
	}
	sb.WriteString(` WHERE `)
	if excludeAnonymized {
		sb.WriteString(`p.anonymized = FALSE AND `)
	}
	args := []any{entityID, fromYear, toYear}
	sb.WriteString(`b.entity_id = ` + s.d.placeholder(1) +
		` AND b.year >= ` + s.d.placeholder(2) +
		` AND b.year <= ` + s.d.placeholder(3))
	sb.WriteString(` GROUP BY ` + col + ` ORDER BY SUM(p.amount) DESC`)
	if limit > 0 {
		sb.WriteString(` LIMIT ` + s.d.placeholder(4))
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, unavailable("aggregate by "+string(by), err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var (
			v   sql.NullString
			r   AggregateRow
			cnt int64
		)
		if err := rows.Scan(&v, &cnt, &r.Sum); err != nil {
			return nil, unavailable("scan aggregate row", err)
		}
		r.Value, r.HasValue = v.String, v.Valid
		r.Count = int(cnt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) DenormalizedRecords(ctx context.Context, p *query.Predicate, orderByAmountDesc bool) ([]budget.Record, error) {
	where, err := renderPredicate(p, s.d.placeholder, func(ph string) string {
		return s.matchClause(corpusPaymentDesc, ph)
	})
	if err != nil {
		return nil, err
	}

	q := `SELECT ` + denormalizedColumns + ` ` + denormalizedFrom + ` WHERE ` + where
	if orderByAmountDesc {
		q += ` ORDER BY p.amount DESC`
	}

	rows, err := s.db.QueryContext(ctx, q, p.Args...)
	if err != nil {
		return nil, unavailable("query denormalized payments", err)
	}
	defer rows.Close()

	var out []budget.Record
	for rows.Next() {
		var (
			id                          int64
			area, programme, date, dept sql.NullString
			payee, description          string
			expense                     bool
			amount                      int64
			year                        int
		)
		if err := rows.Scan(&id, &area, &programme, &date, &payee, &expense, &amount, &description, &dept, &year); err != nil {
			return nil, unavailable("scan payment", err)
		}
		values := map[string]string{
			budget.CriterionPayee:       payee,
			budget.CriterionDescription: description,
			budget.CriterionYear:        fmt.Sprintf("%d", year),
		}
		if area.Valid {
			values[budget.CriterionArea] = area.String
		}
		if programme.Valid {
			values[budget.CriterionProgramme] = programme.String
		}
		if date.Valid {
			values[budget.CriterionDate] = date.String
		}
		if dept.Valid {
			values[budget.CriterionDepartment] = dept.String
		}
		out = append(out, budget.NewRecord(amount, expense, values))
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchTerms(ctx context.Context, q, language string) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, s.d.termsSQL, language, q)
	if err != nil {
		return nil, unavailable("search terms", err)
	}
	defer rows.Close()
	var out []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.Title, &t.Description); err != nil {
			return nil, unavailable("scan term", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchEntities(ctx context.Context, q string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, s.d.entitiesSQL, q)
	if err != nil {
		return nil, unavailable("search entities", err)
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Level, &e.Language); err != nil {
			return nil, unavailable("scan entity", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchDepartments(ctx context.Context, q string, budgetID int64) ([]string, error) {
	args := []any{q}
	sqlq := `SELECT DISTINCT ic.department FROM institutional_categories ic
		WHERE ic.department IS NOT NULL AND ` + s.matchClause(corpusInstitutional, s.d.placeholder(1))
	if budgetID != 0 {
		sqlq += ` AND ic.budget_id = ` + s.d.placeholder(2)
		args = append(args, budgetID)
	}
	sqlq += ` ORDER BY ic.department`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search departments", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, unavailable("scan department", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchItems(ctx context.Context, q string, year int, language string) ([]Item, error) {
	args := []any{language, q}
	sqlq := `SELECT bu.year, i.description, i.amount, i.expense
		FROM budget_items i
		JOIN budgets bu ON i.budget_id = bu.id
		JOIN entities e ON bu.entity_id = e.id
		WHERE e.language = ` + s.d.placeholder(1) + ` AND ` + s.matchClause(corpusItems, s.d.placeholder(2))
	if year != 0 {
		sqlq += ` AND bu.year = ` + s.d.placeholder(3)
		args = append(args, year)
	}
	sqlq += ` ORDER BY i.amount DESC`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search budget items", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Year, &it.Description, &it.Amount, &it.Expense); err != nil {
			return nil, unavailable("scan budget item", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchPayments(ctx context.Context, q string, year int, language string) ([]PaymentMatch, error) {
	args := []any{language, q}
	sqlq := `SELECT b.year, e.name, e.level, p.area, p.date, p.description, p.amount, p.expense
		FROM payments p
		LEFT JOIN budgets b ON p.budget_id = b.id
		LEFT JOIN entities e ON b.entity_id = e.id
		WHERE e.language = ` + s.d.placeholder(1) + ` AND ` + s.matchClause(corpusPayments, s.d.placeholder(2))
	if year != 0 {
		sqlq += ` AND b.year = ` + s.d.placeholder(3)
		args = append(args, year)
	}
	sqlq += ` ORDER BY p.amount DESC`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search payments", err)
	}
	defer rows.Close()
	var out []PaymentMatch
	for rows.Next() {
		var (
			m          PaymentMatch
			area, date sql.NullString
		)
		if err := rows.Scan(&m.Year, &m.EntityName, &m.EntityLevel, &area, &date, &m.Description, &m.Amount, &m.Expense); err != nil {
			return nil, unavailable("scan payment match", err)
		}
		m.Area, m.Date = area.String, date.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchArticles(ctx context.Context, q string, budgetID int64) ([]Article, error) {
	args := []any{q}
	sqlq := `SELECT DISTINCT ec.expense, ec.article FROM economic_categories ec
		WHERE ec.article IS NOT NULL AND ec.heading IS NULL
		AND ` + s.matchClause(corpusEconomic, s.d.placeholder(1))
	if budgetID != 0 {
		sqlq += ` AND ec.budget_id = ` + s.d.placeholder(2)
		args = append(args, budgetID)
	}
	sqlq += ` ORDER BY ec.article`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search articles", err)
	}
	defer rows.Close()
	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.Expense, &a.Code); err != nil {
			return nil, unavailable("scan article", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchHeadings(ctx context.Context, q string, budgetID int64) ([]Heading, error) {
	args := []any{q}
	sqlq := `SELECT DISTINCT ec.expense, ec.article, ec.heading FROM economic_categories ec
		WHERE ec.heading IS NOT NULL
		AND ` + s.matchClause(corpusEconomic, s.d.placeholder(1))
	if budgetID != 0 {
		sqlq += ` AND ec.budget_id = ` + s.d.placeholder(2)
		args = append(args, budgetID)
	}
	sqlq += ` ORDER BY ec.article, ec.heading`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search headings", err)
	}
	defer rows.Close()
	var out []Heading
	for rows.Next() {
		var h Heading
		if err := rows.Scan(&h.Expense, &h.Article, &h.Name); err != nil {
			return nil, unavailable("scan heading", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchPolicies(ctx context.Context, q string, budgetID int64) ([]Policy, error) {
	args := []any{q}
	sqlq := `SELECT DISTINCT fc.policy FROM functional_categories fc
		WHERE fc.policy IS NOT NULL AND fc.programme IS NULL
		AND ` + s.matchClause(corpusFunctional, s.d.placeholder(1))
	if budgetID != 0 {
		sqlq += ` AND fc.budget_id = ` + s.d.placeholder(2)
		args = append(args, budgetID)
	}
	sqlq += ` ORDER BY fc.policy`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search policies", err)
	}
	defer rows.Close()
	var out []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.Code); err != nil {
			return nil, unavailable("scan policy", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchProgrammes(ctx context.Context, q string, budgetID int64) ([]Programme, error) {
	args := []any{q}
	sqlq := `SELECT DISTINCT fc.policy, fc.programme FROM functional_categories fc
		WHERE fc.programme IS NOT NULL
		AND ` + s.matchClause(corpusFunctional, s.d.placeholder(1))
	if budgetID != 0 {
		sqlq += ` AND fc.budget_id = ` + s.d.placeholder(2)
		args = append(args, budgetID)
	}
	sqlq += ` ORDER BY fc.policy, fc.programme`

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, unavailable("search programmes", err)
	}
	defer rows.Close()
	var out []Programme
	for rows.Next() {
		var p Programme
		if err := rows.Scan(&p.Policy, &p.Name); err != nil {
			return nil, unavailable("scan programme", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
