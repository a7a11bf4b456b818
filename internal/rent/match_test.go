package rent

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func txn(id, desc, amount string) Transaction {
	return Transaction{
		ExternalID:  id,
		Date:        time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC),
		Amount:      amt(amount),
		Description: desc,
	}
}

func TestMatch_Keyword(t *testing.T) {
	targets := []Target{
		{PropertyID: 1, Keyword: "FLAT 2B", RentAmount: amt("450")},
	}

	cases := []struct {
		desc    string
		wantHit bool
	}{
		{"Rent payment FLAT 2B weekly", true},
		{"rent   flat  2b", true}, // case fold + whitespace collapse
		{"Countdown groceries", false},
		{"", false},
	}

	for _, tc := range cases {
		got := Match([]Transaction{txn("t1", tc.desc, "450")}, targets, nil)
		if len(got) != 1 {
			t.Fatalf("Match(%q) returned %d results, want 1", tc.desc, len(got))
		}
		if got[0].Matched() != tc.wantHit {
			t.Errorf("Match(%q).Matched = %v, want %v", tc.desc, got[0].Matched(), tc.wantHit)
		}
		if tc.wantHit && got[0].Basis != BasisKeyword {
			t.Errorf("Match(%q).Basis = %q, want keyword", tc.desc, got[0].Basis)
		}
		if !tc.wantHit && got[0].Basis != BasisNone {
			t.Errorf("Match(%q).Basis = %q, want none", tc.desc, got[0].Basis)
		}
	}
}

func TestMatch_LongestKeywordWins(t *testing.T) {
	// Two properties share a keyword prefix: "RENT SMITHSON JAN" must go to
	// the SMITHSON property, never cut short at SMITH.
	targets := []Target{
		{PropertyID: 1, Keyword: "SMITH", RentAmount: amt("400")},
		{PropertyID: 2, Keyword: "SMITHSON", RentAmount: amt("520")},
	}

	got := Match([]Transaction{txn("t1", "RENT SMITHSON JAN", "520")}, targets, nil)
	if len(got) != 1 || got[0].PropertyID != 2 {
		t.Fatalf("Match = %+v, want property 2", got)
	}

	// Plain "SMITH" still reaches property 1.
	got = Match([]Transaction{txn("t2", "RENT SMITH JAN", "400")}, targets, nil)
	if len(got) != 1 || got[0].PropertyID != 1 {
		t.Fatalf("Match = %+v, want property 1", got)
	}
}

func TestMatch_AmbiguousLeftUnmatched(t *testing.T) {
	targets := []Target{
		{PropertyID: 1, Keyword: "RENT", RentAmount: amt("400")},
		{PropertyID: 2, Keyword: "rent", RentAmount: amt("400")},
	}

	got := Match([]Transaction{txn("t1", "RENT march", "400")}, targets, nil)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Matched() {
		t.Errorf("ambiguous transaction was matched to property %d, want unmatched", got[0].PropertyID)
	}
	if got[0].Basis != BasisAmbiguous {
		t.Errorf("Basis = %q, want ambiguous", got[0].Basis)
	}
}

func TestMatch_NicknameFallback(t *testing.T) {
	targets := []Target{
		{PropertyID: 1, Keyword: "FLAT 2B", TenantNickname: "Jonesy", RentAmount: amt("450")},
	}

	got := Match([]Transaction{txn("t1", "transfer from jonesy", "450")}, targets, nil)
	if len(got) != 1 || !got[0].Matched() {
		t.Fatalf("Match = %+v, want nickname hit", got)
	}
	if got[0].Basis != BasisFallback {
		t.Errorf("Basis = %q, want fallback", got[0].Basis)
	}
}

func TestMatch_PartialFlag(t *testing.T) {
	targets := []Target{
		{PropertyID: 1, Keyword: "FLAT 2B", RentAmount: amt("450")},
	}

	got := Match([]Transaction{
		txn("t1", "FLAT 2B", "450"),
		txn("t2", "FLAT 2B", "200"),
		txn("t3", "FLAT 2B", "500"),
	}, targets, nil)

	wantPartial := []bool{false, true, false}
	for i, r := range got {
		if !r.Matched() {
			t.Fatalf("result %d unmatched", i)
		}
		if r.Partial != wantPartial[i] {
			t.Errorf("result %d Partial = %v, want %v", i, r.Partial, wantPartial[i])
		}
	}
}

func TestMatch_AmountTolerance(t *testing.T) {
	// With an explicit 5% tolerance, amounts outside the band do not match
	// even when the keyword is present.
	targets := []Target{
		{PropertyID: 1, Keyword: "FLAT 2B", RentAmount: amt("400"), TolerancePercent: amt("5")},
	}

	cases := []struct {
		amount  string
		wantHit bool
	}{
		{"400", true},
		{"380", true}, // exactly -5%
		{"420", true}, // exactly +5%
		{"379.99", false},
		{"1000", false},
	}

	for _, tc := range cases {
		got := Match([]Transaction{txn("t1", "FLAT 2B", tc.amount)}, targets, nil)
		if got[0].Matched() != tc.wantHit {
			t.Errorf("amount %s: Matched = %v, want %v", tc.amount, got[0].Matched(), tc.wantHit)
		}
	}
}

func TestMatch_SeenTransactionsSkipped(t *testing.T) {
	targets := []Target{
		{PropertyID: 1, Keyword: "FLAT 2B", RentAmount: amt("450")},
	}
	batch := []Transaction{
		txn("old", "FLAT 2B rent", "450"),
		txn("new", "FLAT 2B rent", "450"),
	}
	seen := func(id string) bool { return id == "old" }

	got := Match(batch, targets, seen)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1 (seen transaction must be skipped)", len(got))
	}
	if got[0].Transaction.ExternalID != "new" {
		t.Errorf("kept %q, want new", got[0].Transaction.ExternalID)
	}
}
