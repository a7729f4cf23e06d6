package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// searchConfig is the text-search configuration for every tsvector and
// tsquery. It is fixed at compile time; only values are ever bound.
const searchConfig = "simple"

var postgresDialect = dialect{
	name:        BackendPostgres,
	placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	match: map[corpus]string{
		corpusPayments:      `to_tsvector('` + searchConfig + `', p.payee || ' ' || p.description) @@ plainto_tsquery('` + searchConfig + `', %s)`,
		corpusPaymentDesc:   `to_tsvector('` + searchConfig + `', p.description) @@ plainto_tsquery('` + searchConfig + `', %s)`,
		corpusItems:         `to_tsvector('` + searchConfig + `', i.description) @@ plainto_tsquery('` + searchConfig + `', %s)`,
		corpusInstitutional: `to_tsvector('` + searchConfig + `', ic.description) @@ plainto_tsquery('` + searchConfig + `', %s)`,
		corpusEconomic:      `to_tsvector('` + searchConfig + `', ec.description) @@ plainto_tsquery('` + searchConfig + `', %s)`,
		corpusFunctional:    `to_tsvector('` + searchConfig + `', fc.description) @@ plainto_tsquery('` + searchConfig + `', %s)`,
	},
	termsSQL: `SELECT t.id, t.title, t.description
		FROM glossary_terms t
		WHERE t.language = $1
		AND to_tsvector('` + searchConfig + `', t.title || ' ' || t.description) @@ plainto_tsquery('` + searchConfig + `', $2)
		ORDER BY ts_rank(to_tsvector('` + searchConfig + `', t.title || ' ' || t.description), plainto_tsquery('` + searchConfig + `', $2)) DESC, t.id`,
	entitiesSQL: `SELECT id, name, level, language FROM entities
		WHERE name ILIKE '%' || $1 || '%' ORDER BY name`,
}

// OpenPostgres connects to the Postgres backend, the store the original
// portal deployment runs on, and brings its schema up to date.
func OpenPostgres(ctx context.Context, url string) (Store, error) {
	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping postgres database", err)
	}

	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &sqlStore{db: db, d: postgresDialect}, nil
}
