// Package store implements the relational record source the portal core
// reads from: grouped aggregates, denormalized payment records and the
// ranked text-search primitives, plus the write side the loader uses.
//
// Two backends exist, SQLite (FTS5) and Postgres (tsvector). Both render
// predicates with bound placeholders only; user input never appears in
// query text.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"presupuesto/internal/budget"
	"presupuesto/internal/query"
)

var (
	// ErrNotFound reports a referenced entity or budget that does not
	// exist. Requests abort on it; there are no partial results.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps driver failures. The core never retries; the
	// caller owns any backoff policy.
	ErrUnavailable = errors.New("record source unavailable")
)

// GroupBy names a grouping key for pre-aggregated queries.
type GroupBy string

const (
	GroupByPayee      GroupBy = "payee"
	GroupByArea       GroupBy = "area"
	GroupByDepartment GroupBy = "department"
)

// AggregateRow is one group of a pre-aggregated query, ordered by Sum
// descending. HasValue is false when the grouping column was NULL.
type AggregateRow struct {
	Value    string
	HasValue bool
	Count    int
	Sum      int64
}

// Entity is a government body at some hierarchy level, scoped by language.
type Entity struct {
	ID       int64
	Name     string
	Level    string
	Language string
}

// Term is a glossary entry.
type Term struct {
	ID          int64
	Title       string
	Description string
}

// Item is a matched budget line item.
type Item struct {
	Year        int
	Description string
	Amount      int64
	Expense     bool
}

// PaymentMatch is a matched payment in the generic search.
type PaymentMatch struct {
	Year        int
	EntityName  string
	EntityLevel string
	Area        string
	Date        string
	Description string
	Amount      int64
	Expense     bool
}

// Article is an economic category at article level. Code is the natural
// key shared by the article across years and budgets.
type Article struct {
	Code    string
	Expense bool
}

// Heading is an economic category one level below an article.
type Heading struct {
	Article string
	Name    string
	Expense bool
}

// Policy is a functional category at policy level.
type Policy struct {
	Code string
}

// Programme is a functional category one level below a policy.
type Programme struct {
	Policy string
	Name   string
}

// PaymentRow is one payment as ingested by the loader.
type PaymentRow struct {
	Area        string
	Programme   string
	Department  string
	Date        string
	Payee       string
	FiscalID    string
	Anonymized  bool
	Expense     bool
	Description string
	Amount      int64
}

// RecordSource is the read contract of the payments subsystem.
type RecordSource interface {
	Entity(ctx context.Context, id int64) (Entity, error)
	Years(ctx context.Context, entityID int64) ([]int, error)
	Payees(ctx context.Context, entityID int64) ([]string, error)
	Areas(ctx context.Context, entityID int64) ([]string, error)
	Departments(ctx context.Context, entityID int64) ([]string, error)

	// Aggregate returns grouped (value, count, sum) rows over the year
	// range, ordered by sum descending. excludeAnonymized leaves out
	// privacy-redacted payments; limit <= 0 means no limit.
	Aggregate(ctx context.Context, by GroupBy, entityID int64, fromYear, toYear int, excludeAnonymized bool, limit int) ([]AggregateRow, error)

	// DenormalizedRecords returns the flat payment records matching the
	// predicate, with their budget year and department joined in.
	DenormalizedRecords(ctx context.Context, p *query.Predicate, orderByAmountDesc bool) ([]budget.Record, error)
}

// SearchSource is the read contract of the search consolidator. A year or
// budgetID of zero leaves the search unscoped.
type SearchSource interface {
	BudgetID(ctx context.Context, entityID int64, year int) (int64, error)

	// LatestYear returns the most recent budget year of an entity, or
	// ErrNotFound when it has no budgets.
	LatestYear(ctx context.Context, entityID int64) (int, error)
	SearchTerms(ctx context.Context, q, language string) ([]Term, error)
	SearchEntities(ctx context.Context, q string) ([]Entity, error)
	SearchDepartments(ctx context.Context, q string, budgetID int64) ([]string, error)
	SearchItems(ctx context.Context, q string, year int, language string) ([]Item, error)
	SearchPayments(ctx context.Context, q string, year int, language string) ([]PaymentMatch, error)
	SearchArticles(ctx context.Context, q string, budgetID int64) ([]Article, error)
	SearchHeadings(ctx context.Context, q string, budgetID int64) ([]Heading, error)
	SearchPolicies(ctx context.Context, q string, budgetID int64) ([]Policy, error)
	SearchProgrammes(ctx context.Context, q string, budgetID int64) ([]Programme, error)
}

// Loader is the write contract used by the ingestion commands.
type Loader interface {
	EnsureEntity(ctx context.Context, name, level, language string) (int64, error)
	EnsureBudget(ctx context.Context, entityID int64, year int) (int64, error)
	InsertPayments(ctx context.Context, budgetID int64, rows []PaymentRow) error
	DeleteBudget(ctx context.Context, entityID int64, year int) error
}

// Store is a full backend.
type Store interface {
	RecordSource
	SearchSource
	Loader
	Close() error
}

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	SQLitePath  string
	PostgresURL string
}

// Open creates the configured backend and runs its migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// unavailable wraps a driver error into the taxonomy.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// renderPredicate turns a structured predicate into a WHERE body. The
// placeholder function supplies the backend's parameter syntax (1-based);
// textMatch wraps a placeholder into the backend's search primitive.
func renderPredicate(p *query.Predicate, placeholder func(i int) string, textMatch func(ph string) string) (string, error) {
	var sb strings.Builder
	for i, c := range p.Clauses {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		ph := placeholder(i + 1)
		switch {
		case c.Op == query.OpTextMatch:
			sb.WriteString(textMatch(ph))
		default:
			col, ok := clauseColumns[c.Field]
			if !ok {
				return "", fmt.Errorf("unknown predicate field: %s", c.Field)
			}
			sb.WriteString(col)
			switch c.Op {
			case query.OpEq:
				sb.WriteString(" = ")
			case query.OpGte:
				sb.WriteString(" >= ")
			case query.OpLte:
				sb.WriteString(" <= ")
			default:
				return "", fmt.Errorf("unknown predicate operator: %d", c.Op)
			}
			sb.WriteString(ph)
		}
	}
	return sb.String(), nil
}

// clauseColumns maps predicate fields onto the denormalized join of
// payments (p), budgets (b) and institutional categories (ic).
var clauseColumns = map[string]string{
	query.FieldEntity:          "b.entity_id",
	query.FieldAmount:          "p.amount",
	query.FieldFiscalID:        "p.payee_fiscal_id",
	query.FieldYear:            "b.year",
	budget.CriterionArea:       "p.area",
	budget.CriterionDepartment: "ic.department",
	budget.CriterionPayee:      "p.payee",
}
