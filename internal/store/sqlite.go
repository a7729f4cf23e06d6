package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// sqliteDialect renders text search through FTS5 shadow tables kept in
// sync by triggers (see the sqlite migrations).
var sqliteDialect = dialect{
	name:        BackendSQLite,
	placeholder: func(int) string { return "?" },
	match: map[corpus]string{
		corpusPayments:      `p.id IN (SELECT rowid FROM payments_fts WHERE payments_fts MATCH %s)`,
		corpusPaymentDesc:   `p.id IN (SELECT rowid FROM payments_desc_fts WHERE payments_desc_fts MATCH %s)`,
		corpusItems:         `i.id IN (SELECT rowid FROM items_fts WHERE items_fts MATCH %s)`,
		corpusInstitutional: `ic.id IN (SELECT rowid FROM icat_fts WHERE icat_fts MATCH %s)`,
		corpusEconomic:      `ec.id IN (SELECT rowid FROM ecat_fts WHERE ecat_fts MATCH %s)`,
		corpusFunctional:    `fc.id IN (SELECT rowid FROM fcat_fts WHERE fcat_fts MATCH %s)`,
	},
	termsSQL: `SELECT t.id, t.title, t.description
		FROM glossary_fts
		JOIN glossary_terms t ON t.id = glossary_fts.rowid
		WHERE t.language = ?1 AND glossary_fts MATCH ?2
		ORDER BY rank`,
	entitiesSQL: `SELECT id, name, level, language FROM entities
		WHERE name LIKE '%' || ?1 || '%' ORDER BY name`,
}

// OpenSQLite opens (creating if needed) the SQLite backend at path and
// brings its schema up to date.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("ping sqlite database", err)
	}

	if err := migrateSQLite(path); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &sqlStore{db: db, d: sqliteDialect}, nil
}
