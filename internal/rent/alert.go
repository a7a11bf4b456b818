package rent

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationKind names an alert type; the de-duplication key is
// (property, cycle, kind).
type NotificationKind string

const (
	// KindMissedPayment fires when a cycle closed with the balance negative.
	KindMissedPayment NotificationKind = "missed_payment"
	// KindPaymentReceived fires when a full rent payment lands in a cycle.
	KindPaymentReceived NotificationKind = "payment_received"
)

// EvaluateAlert decides whether a missed-payment notification should fire for
// an elapsed cycle. It fires only when the cycle has fully elapsed plus a
// grace period (bank posting lag), the balance is negative, and no
// notification was already recorded for (property, cycle, kind). At most one
// alert fires per missed cycle; repeated evaluation before the next cycle is
// quiet.
func EvaluateAlert(c Cycle, balance decimal.Decimal, now time.Time, grace time.Duration, alreadySent bool) bool {
	if alreadySent {
		return false
	}
	if now.Before(c.End.Add(grace)) {
		return false
	}
	return balance.Sign() < 0
}
