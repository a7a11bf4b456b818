package rent

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one ledger line awaiting application to a property's running
// balance: a matched payment (positive amount) or an accrued rent charge
// (negative amount).
type Entry struct {
	ID      string
	Date    time.Time
	Amount  decimal.Decimal
	Applied bool
}

// ApplyEntries folds not-yet-applied entries into a running balance in date
// order and returns the new balance plus the ids that were applied. Entries
// already marked applied are skipped, so running the same batch twice is a
// no-op: every ledger line is counted exactly once.
func ApplyEntries(balance decimal.Decimal, entries []Entry) (decimal.Decimal, []string) {
	pending := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Applied {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Date.Before(pending[j].Date)
	})

	applied := make([]string, 0, len(pending))
	for _, e := range pending {
		balance = balance.Add(e.Amount)
		applied = append(applied, e.ID)
	}
	return balance, applied
}

// Standing is a property's rent position derived from its balance.
type Standing struct {
	Current bool
	Arrears decimal.Decimal // owed amount; zero when current
}

// StandingOf interprets a running balance: non-negative is current
// (credit/ahead), negative is in arrears by the absolute value.
func StandingOf(balance decimal.Decimal) Standing {
	if balance.Sign() >= 0 {
		return Standing{Current: true, Arrears: decimal.Zero}
	}
	return Standing{Current: false, Arrears: balance.Neg()}
}
