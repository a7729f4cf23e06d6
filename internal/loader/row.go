package loader

import (
	"fmt"
	"strconv"
	"strings"

	"presupuesto/internal/budget"
	"presupuesto/internal/store"
)

// Canonical column names shared by the CSV and spreadsheet sources.
const (
	colArea        = "area"
	colProgramme   = "programme"
	colDepartment  = "department"
	colDate        = "date"
	colPayee       = "payee"
	colFiscalID    = "fiscal_id"
	colAnonymized  = "anonymized"
	colDirection   = "direction"
	colDescription = "description"
	colAmount      = "amount"
)

// rowMapper maps a header row onto payment fields, so sources accept any
// column order and tolerate absent optional columns.
type rowMapper struct {
	index map[string]int
}

func newRowMapper(header []string) (*rowMapper, error) {
	m := &rowMapper{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := m.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		m.index[name] = i
	}
	if _, ok := m.index[colAmount]; !ok {
		return nil, fmt.Errorf("missing required column %q", colAmount)
	}
	if _, ok := m.index[colDescription]; !ok {
		return nil, fmt.Errorf("missing required column %q", colDescription)
	}
	return m, nil
}

func (m *rowMapper) field(record []string, col string) string {
	i, ok := m.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// mapRow converts one data record. Amounts accept both locale
// conventions and a leading sign; direction defaults to expense, the
// overwhelmingly common case in payment data.
func (m *rowMapper) mapRow(record []string) (store.PaymentRow, error) {
	raw := m.field(record, colAmount)
	negative := strings.HasPrefix(raw, "-")
	cents, err := budget.ParseAmountToCents(strings.TrimPrefix(raw, "-"))
	if err != nil {
		return store.PaymentRow{}, fmt.Errorf("amount %q: %w", raw, err)
	}
	if negative {
		cents = -cents
	}

	anonymized := false
	if v := m.field(record, colAnonymized); v != "" {
		anonymized, err = strconv.ParseBool(v)
		if err != nil {
			return store.PaymentRow{}, fmt.Errorf("anonymized %q: %w", v, err)
		}
	}

	expense := true
	switch strings.ToLower(m.field(record, colDirection)) {
	case "", "expense":
	case "income":
		expense = false
	default:
		return store.PaymentRow{}, fmt.Errorf("unknown direction %q", m.field(record, colDirection))
	}

	return store.PaymentRow{
		Area:        m.field(record, colArea),
		Programme:   m.field(record, colProgramme),
		Department:  m.field(record, colDepartment),
		Date:        m.field(record, colDate),
		Payee:       m.field(record, colPayee),
		FiscalID:    m.field(record, colFiscalID),
		Anonymized:  anonymized,
		Expense:     expense,
		Description: m.field(record, colDescription),
		Amount:      cents,
	}, nil
}
