package rent

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one bank credit as seen by the matcher. Immutable.
type Transaction struct {
	ExternalID  string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Target is the matching rule for one property: a typed, validated struct
// instead of loose keyword config. TolerancePercent bounds how far the
// amount may stray from RentAmount; zero means any amount is accepted.
type Target struct {
	PropertyID       uint
	Keyword          string
	TenantNickname   string
	RentAmount       decimal.Decimal
	TolerancePercent decimal.Decimal
}

// Basis records how a transaction was associated with a property.
type Basis string

const (
	// BasisKeyword is an exact payment-keyword substring match.
	BasisKeyword Basis = "keyword"
	// BasisFallback matched on the tenant nickname instead of the keyword.
	BasisFallback Basis = "fallback"
	// BasisManual is a landlord-assigned match from the review queue.
	BasisManual Basis = "manual"
	// BasisNone means no property matched.
	BasisNone Basis = "none"
	// BasisAmbiguous means two properties matched with equal specificity;
	// left for manual review, never guessed.
	BasisAmbiguous Basis = "ambiguous"
)

// Result links one transaction to at most one property.
type Result struct {
	Transaction Transaction
	PropertyID  uint // 0 when unmatched
	Basis       Basis
	Partial     bool // amount below the full rent amount
}

// Matched reports whether the result is bound to a property.
func (r Result) Matched() bool { return r.PropertyID != 0 }

// Match assigns each transaction in a batch to at most one property.
// A batch comes from a single bank connection, which may service several
// properties of the same user.
//
// seen reports whether a match record already exists for an external id;
// such transactions are skipped entirely so a re-run never re-matches or
// double-counts (idempotent re-sync).
//
// Unmatched and ambiguous transactions are still returned, so they can be
// retained for manual review rather than silently dropped.
func Match(txns []Transaction, targets []Target, seen func(externalID string) bool) []Result {
	results := make([]Result, 0, len(txns))
	for _, txn := range txns {
		if seen != nil && seen(txn.ExternalID) {
			continue
		}
		results = append(results, matchOne(txn, targets))
	}
	return results
}

func matchOne(txn Transaction, targets []Target) Result {
	desc := normalize(txn.Description)

	// keyword pass first; tenant nickname is only a fallback
	hit, basis := bestCandidate(txn, targets, desc, false)
	if basis == BasisNone {
		hit, basis = bestCandidate(txn, targets, desc, true)
	}

	res := Result{Transaction: txn, Basis: basis}
	if basis == BasisKeyword || basis == BasisFallback {
		res.PropertyID = hit.PropertyID
		res.Partial = txn.Amount.LessThan(hit.RentAmount)
	}
	return res
}

// bestCandidate scans targets for the longest keyword (or nickname) present
// in the normalized description. An exact tie in length between different
// properties is ambiguous.
func bestCandidate(txn Transaction, targets []Target, desc string, nickname bool) (Target, Basis) {
	var (
		best      Target
		bestLen   int
		ambiguous bool
	)
	for _, t := range targets {
		term := t.Keyword
		if nickname {
			term = t.TenantNickname
		}
		term = normalize(term)
		if term == "" || !strings.Contains(desc, term) {
			continue
		}
		if !amountWithinTolerance(txn.Amount, t) {
			continue
		}
		switch {
		case len(term) > bestLen:
			best, bestLen, ambiguous = t, len(term), false
		case len(term) == bestLen && t.PropertyID != best.PropertyID:
			ambiguous = true
		}
	}
	switch {
	case bestLen == 0:
		return Target{}, BasisNone
	case ambiguous:
		return Target{}, BasisAmbiguous
	case nickname:
		return best, BasisFallback
	default:
		return best, BasisKeyword
	}
}

// amountWithinTolerance applies the target's typed tolerance rule. With a
// zero tolerance any amount is accepted (partial payments still count toward
// the balance, just flagged).
func amountWithinTolerance(amount decimal.Decimal, t Target) bool {
	if t.TolerancePercent.IsZero() {
		return true
	}
	limit := t.RentAmount.Mul(t.TolerancePercent).Div(decimal.NewFromInt(100))
	return amount.Sub(t.RentAmount).Abs().LessThanOrEqual(limit)
}

// normalize case-folds and collapses runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
