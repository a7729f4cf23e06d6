package budget

import "testing"

const bucket = "payments"

func TestBreakdownGroupsAndTotals(t *testing.T) {
	b := NewBreakdown(CriterionArea, CriterionPayee)

	b.AddItem(bucket, NewRecord(100, true, map[string]string{CriterionArea: "Health", CriterionPayee: "ACME"}))
	b.AddItem(bucket, NewRecord(200, true, map[string]string{CriterionArea: "Health", CriterionPayee: "ACME"}))
	b.AddItem(bucket, NewRecord(50, false, map[string]string{CriterionArea: "Culture", CriterionPayee: "Foo"}))

	if got := b.TotalExpense[bucket]; got != 300 {
		t.Errorf("total expense = %d, expected 300", got)
	}
	if got := b.TotalIncome[bucket]; got != 50 {
		t.Errorf("total income = %d, expected 50", got)
	}
	if len(b.Groups) != 2 {
		t.Fatalf("expected 2 area groups, got %d", len(b.Groups))
	}
	health := b.Groups["Health"]
	if health.TotalExpense[bucket] != 300 || health.Count != 2 {
		t.Errorf("health group: total=%d count=%d", health.TotalExpense[bucket], health.Count)
	}
	if acme := health.Groups["ACME"]; acme == nil || acme.TotalExpense[bucket] != 300 {
		t.Error("expected nested ACME group with total 300")
	}
}

// The sum of the group totals must equal the sum over the record set,
// partitioned by the expense flag.
func TestBreakdownConservation(t *testing.T) {
	records := []Record{
		NewRecord(123, true, map[string]string{CriterionArea: "A"}),
		NewRecord(456, true, map[string]string{CriterionArea: "B"}),
		NewRecord(789, false, map[string]string{CriterionArea: "A"}),
		NewRecord(1, false, nil),
		NewRecord(0, true, map[string]string{CriterionArea: ""}),
	}
	b := NewBreakdown(CriterionArea)
	var wantExpense, wantIncome int64
	for _, r := range records {
		b.AddItem(bucket, r)
		if r.Expense {
			wantExpense += r.Amount
		} else {
			wantIncome += r.Amount
		}
	}

	var gotExpense, gotIncome int64
	for _, g := range b.Groups {
		gotExpense += g.TotalExpense[bucket]
		gotIncome += g.TotalIncome[bucket]
	}
	if gotExpense != wantExpense || gotIncome != wantIncome {
		t.Errorf("group sums (%d,%d) != record sums (%d,%d)", gotExpense, gotIncome, wantExpense, wantIncome)
	}
	if b.TotalExpense[bucket] != wantExpense || b.TotalIncome[bucket] != wantIncome {
		t.Errorf("bucket totals (%d,%d) != record sums (%d,%d)",
			b.TotalExpense[bucket], b.TotalIncome[bucket], wantExpense, wantIncome)
	}
}

func TestBreakdownUnspecifiedVsEmpty(t *testing.T) {
	b := NewBreakdown(CriterionPayee)
	b.AddItem(bucket, NewRecord(10, true, nil))                                      // no payee at all
	b.AddItem(bucket, NewRecord(20, true, map[string]string{CriterionPayee: ""}))    // empty payee
	b.AddItem(bucket, NewRecord(30, true, map[string]string{CriterionPayee: "X Y"})) // regular payee

	if len(b.Groups) != 3 {
		t.Fatalf("expected 3 distinct groups, got %d", len(b.Groups))
	}
	if g := b.Groups[Unspecified]; g == nil || g.TotalExpense[bucket] != 10 {
		t.Error("missing value should land in the Unspecified group")
	}
	if g := b.Groups[""]; g == nil || g.TotalExpense[bucket] != 20 {
		t.Error("empty string is a group of its own")
	}
}

func TestBreakdownZeroRecords(t *testing.T) {
	b := NewBreakdown(CriterionArea)
	if b.TotalExpense[bucket] != 0 || b.TotalIncome[bucket] != 0 || len(b.Groups) != 0 {
		t.Error("empty breakdown should have zero totals and no groups")
	}
}

func TestBreakdownSampleBounded(t *testing.T) {
	b := NewBreakdown()
	for i := 0; i < groupSampleCap+5; i++ {
		b.AddItem(bucket, NewRecord(1, true, nil))
	}
	if len(b.Sample) != groupSampleCap {
		t.Errorf("sample len = %d, expected %d", len(b.Sample), groupSampleCap)
	}
	if b.Count != groupSampleCap+5 {
		t.Errorf("count = %d, expected %d", b.Count, groupSampleCap+5)
	}
}
