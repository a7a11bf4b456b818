package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rentcheck/internal/rent"
)

// Message is one alert to deliver. The core treats delivery as
// fire-and-forget: senders log failures, nothing retries them.
type Message struct {
	Kind    rent.NotificationKind
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// PaymentReceived builds the confirmation sent when a full rent payment is
// matched to a property.
func PaymentReceived(to, propertyName string, amount decimal.Decimal, paidOn time.Time) Message {
	return Message{
		Kind:    rent.KindPaymentReceived,
		To:      to,
		Subject: fmt.Sprintf("Rent Received - %s", propertyName),
		Body: fmt.Sprintf(
			"A rent payment has been matched for %s.\n\n"+
				"Amount: $%s\n"+
				"Paid on: %s\n\n"+
				"No action is needed. This confirmation was generated automatically by Rent Check.\n",
			propertyName, amount.StringFixed(2), paidOn.Format("Mon, 2 Jan 2006"),
		),
	}
}

// MissedPayment builds the overdue-rent alert for a property whose cycle
// closed with the balance negative.
func MissedPayment(to, propertyName string, arrears decimal.Decimal, dueDate time.Time) Message {
	return Message{
		Kind:    rent.KindMissedPayment,
		To:      to,
		Subject: fmt.Sprintf("Rent Overdue - %s", propertyName),
		Body: fmt.Sprintf(
			"No rent payment has been detected for %s.\n\n"+
				"Amount owing: $%s\n"+
				"Rent was due: %s\n\n"+
				"Please check your bank account transactions and contact your tenant if necessary.\n"+
				"This alert was generated automatically by Rent Check. If you believe this is an\n"+
				"error, please check your bank account connection.\n",
			propertyName, arrears.StringFixed(2), dueDate.Format("Mon, 2 Jan 2006"),
		),
	}
}
