package store

import (
	"context"
	"database/sql"
	"errors"
)

// Write side, used by the ingestion commands only. Loads are inserts and
// wholesale budget deletions; payments are never updated in place.

func (s *sqlStore) EnsureEntity(ctx context.Context, name, level, language string) (int64, error) {
	ph := s.d.placeholder
	var id int64
	q := `SELECT id FROM entities WHERE name = ` + ph(1) + ` AND level = ` + ph(2) + ` AND language = ` + ph(3)
	err := s.db.QueryRowContext(ctx, q, name, level, language).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, unavailable("query entity", err)
	}

	q = `INSERT INTO entities (name, level, language) VALUES (` + ph(1) + `, ` + ph(2) + `, ` + ph(3) + `) RETURNING id`
	if err := s.db.QueryRowContext(ctx, q, name, level, language).Scan(&id); err != nil {
		return 0, unavailable("insert entity", err)
	}
	return id, nil
}

func (s *sqlStore) EnsureBudget(ctx context.Context, entityID int64, year int) (int64, error) {
	id, err := s.BudgetID(ctx, entityID, year)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	ph := s.d.placeholder
	q := `INSERT INTO budgets (entity_id, year) VALUES (` + ph(1) + `, ` + ph(2) + `) RETURNING id`
	if err := s.db.QueryRowContext(ctx, q, entityID, year).Scan(&id); err != nil {
		return 0, unavailable("insert budget", err)
	}
	return id, nil
}

func (s *sqlStore) InsertPayments(ctx context.Context, budgetID int64, rows []PaymentRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin payment load", err)
	}
	defer tx.Rollback()

	ph := s.d.placeholder
	departments := make(map[string]int64)
	insertPayment := `INSERT INTO payments
		(budget_id, area, programme, institutional_category_id, date, payee, payee_fiscal_id, anonymized, expense, description, amount)
		VALUES (` + ph(1) + `, ` + ph(2) + `, ` + ph(3) + `, ` + ph(4) + `, ` + ph(5) + `, ` +
		ph(6) + `, ` + ph(7) + `, ` + ph(8) + `, ` + ph(9) + `, ` + ph(10) + `, ` + ph(11) + `)`

	for _, r := range rows {
		var icatID any
		if r.Department != "" {
			id, ok := departments[r.Department]
			if !ok {
				id, err = s.ensureInstitutional(ctx, tx, budgetID, r.Department)
				if err != nil {
					return err
				}
				departments[r.Department] = id
			}
			icatID = id
		}
		_, err := tx.ExecContext(ctx, insertPayment,
			budgetID, nullable(r.Area), nullable(r.Programme), icatID, nullable(r.Date),
			r.Payee, r.FiscalID, r.Anonymized, r.Expense, r.Description, r.Amount)
		if err != nil {
			return unavailable("insert payment", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit payment load", err)
	}
	return nil
}

func (s *sqlStore) ensureInstitutional(ctx context.Context, tx *sql.Tx, budgetID int64, department string) (int64, error) {
	ph := s.d.placeholder
	var id int64
	q := `SELECT id FROM institutional_categories WHERE budget_id = ` + ph(1) + ` AND department = ` + ph(2)
	err := tx.QueryRowContext(ctx, q, budgetID, department).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, unavailable("query institutional category", err)
	}

	q = `INSERT INTO institutional_categories (budget_id, department, description) VALUES (` +
		ph(1) + `, ` + ph(2) + `, ` + ph(3) + `) RETURNING id`
	if err := tx.QueryRowContext(ctx, q, budgetID, department, department).Scan(&id); err != nil {
		return 0, unavailable("insert institutional category", err)
	}
	return id, nil
}

// DeleteBudget removes a budget year and everything hanging off it.
// Deleting a year that was never loaded is not an error.
func (s *sqlStore) DeleteBudget(ctx context.Context, entityID int64, year int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin budget removal", err)
	}
	defer tx.Rollback()

	ph := s.d.placeholder
	sub := `(SELECT id FROM budgets WHERE entity_id = ` + ph(1) + ` AND year = ` + ph(2) + `)`
	for _, table := range []string{
		"payments", "budget_items", "institutional_categories",
		"economic_categories", "functional_categories",
	} {
		q := `DELETE FROM ` + table + ` WHERE budget_id IN ` + sub
		if _, err := tx.ExecContext(ctx, q, entityID, year); err != nil {
			return unavailable("delete "+table, err)
		}
	}
	q := `DELETE FROM budgets WHERE entity_id = ` + ph(1) + ` AND year = ` + ph(2)
	if _, err := tx.ExecContext(ctx, q, entityID, year); err != nil {
		return unavailable("delete budget", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit budget removal", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
