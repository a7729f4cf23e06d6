package budget

// Unspecified keys the group of records that carry no value at all for a
// criterion. Source data cannot contain a NUL byte, so it never collides
// with a real value (including the empty string, which is a group of its
// own).
const Unspecified = "\x00"

// groupSampleCap bounds how many member records a group keeps for
// presentation. Totals and counts always cover every record.
const groupSampleCap = 10

// Breakdown groups financial records by an ordered list of criteria and
// accumulates income/expense totals per group and per bucket label.
// It is a pure accumulation structure: AddItem never rejects input.
type Breakdown struct {
	criteria []string

	// Groups is keyed by this level's criterion value; each group is a
	// sub-breakdown over the remaining criteria.
	Groups map[string]*Breakdown

	// Per-bucket running totals for everything routed through this node.
	TotalExpense map[string]int64
	TotalIncome  map[string]int64
	Count        int

	// Sample holds up to groupSampleCap member records, leaf levels only.
	Sample []Record
}

// NewBreakdown creates a breakdown grouping by the given criteria in
// order. With no criteria it still accumulates bucket totals.
func NewBreakdown(criteria ...string) *Breakdown {
	return &Breakdown{
		criteria:     criteria,
		Groups:       make(map[string]*Breakdown),
		TotalExpense: make(map[string]int64),
		TotalIncome:  make(map[string]int64),
	}
}

// Criteria returns the grouping criteria of this breakdown.
func (b *Breakdown) Criteria() []string { return b.criteria }

// AddItem routes a record into the group identified by its values for the
// breakdown criteria, accumulating its amount into the bucket's expense
// or income total at every level along the path.
func (b *Breakdown) AddItem(bucket string, r Record) {
	if r.Expense {
		b.TotalExpense[bucket] += r.Amount
	} else {
		b.TotalIncome[bucket] += r.Amount
	}
	b.Count++

	if len(b.criteria) == 0 {
		if len(b.Sample) < groupSampleCap {
			b.Sample = append(b.Sample, r)
		}
		return
	}

	key, ok := r.Value(b.criteria[0])
	if !ok {
		key = Unspecified
	}
	sub, ok := b.Groups[key]
	if !ok {
		sub = NewBreakdown(b.criteria[1:]...)
		b.Groups[key] = sub
	}
	sub.AddItem(bucket, r)
}

// Total returns the combined income+expense total for a bucket.
func (b *Breakdown) Total(bucket string) int64 {
	return b.TotalExpense[bucket] + b.TotalIncome[bucket]
}
