// Package budget holds the domain types of the transparency portal:
// financial records, grouped breakdowns and the parsers that turn
// user-supplied amount and year inputs into domain values.
package budget

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Criterion names used as grouping keys and filter fields.
const (
	CriterionPayee       = "payee"
	CriterionArea        = "area"
	CriterionDepartment  = "department"
	CriterionDescription = "description"
	CriterionProgramme   = "programme"
	CriterionDate        = "date"
	CriterionYear        = "year"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidYear   = errors.New("invalid year")
)

// Record is the unit being aggregated: a payment or budget line item
// with its grouping attributes. Records are immutable once created;
// each request builds its own and discards them with the response.
type Record struct {
	Amount  int64 // currency minor units, signed
	Expense bool  // true for expenditure, false for income
	values  map[string]string
}

// NewRecord creates a record with the given criterion values. The values
// map is copied so callers may reuse theirs.
func NewRecord(amount int64, expense bool, values map[string]string) Record {
	vs := make(map[string]string, len(values))
	for k, v := range values {
		vs[k] = v
	}
	return Record{Amount: amount, Expense: expense, values: vs}
}

// Value returns the record's value for a criterion and whether it is set.
// An empty string is a valid present value, distinct from an absent one.
func (r Record) Value(criterion string) (string, bool) {
	v, ok := r.values[criterion]
	return v, ok
}

// Values returns a copy of the record's criterion values.
func (r Record) Values() map[string]string {
	vs := make(map[string]string, len(r.values))
	for k, v := range r.values {
		vs[k] = v
	}
	return vs
}

// WithValue returns a copy of the record with one criterion replaced.
func (r Record) WithValue(criterion, value string) Record {
	vs := make(map[string]string, len(r.values)+1)
	for k, v := range r.values {
		vs[k] = v
	}
	vs[criterion] = value
	return Record{Amount: r.Amount, Expense: r.Expense, values: vs}
}

// ParseAmountToCents parses a locale-formatted amount string into currency
// minor units. Thousands separators in both the English and the Spanish
// convention are accepted: a trailing '.' or ',' followed by exactly two
// digits is the decimal separator, every other separator is grouping.
//
//	"1,234.00" -> 123400
//	"1.234,00" -> 123400
//	"1,234"    -> 123400
//
// A malformed string returns ErrInvalidAmount; it is never coerced.
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return 0, ErrInvalidAmount
		}
	}

	var cents int64
	// Split off the decimal part, if the last separator looks like one.
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 == 2 {
		frac := s[i+1:]
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		cents = f
		s = s[:i]
	}

	units := strings.NewReplacer(".", "", ",", "").Replace(s)
	if units == "" {
		return 0, ErrInvalidAmount
	}
	u, err := strconv.ParseInt(units, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if u > maxSafe {
		return 0, ErrInvalidAmount
	}
	return u*100 + cents, nil
}

// ParseYearRange parses a year-or-year-range input. "Y1,Y2" yields the
// range with the bounds swapped when inverted (the UI range slider turns
// around sometimes), a bare "Y" yields (Y, Y). An empty input returns
// ok=false so the caller can substitute its default range.
func ParseYearRange(s string) (from, to int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false, nil
	}
	parts := strings.SplitN(s, ",", 2)
	from, err = parseYear(parts[0])
	if err != nil {
		return 0, 0, false, err
	}
	to = from
	if len(parts) == 2 {
		to, err = parseYear(parts[1])
		if err != nil {
			return 0, 0, false, err
		}
	}
	if from > to {
		from, to = to, from
	}
	return from, to, true, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 0 {
		return 0, ErrInvalidYear
	}
	return y, nil
}
