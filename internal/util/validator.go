package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail checks basic address shape.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidateRentAmount rejects non-positive and implausibly large rents.
func ValidateRentAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("rent amount must be positive, got %s", amount)
	}
	if amount.GreaterThanOrEqual(decimal.NewFromInt(100000)) {
		return fmt.Errorf("rent amount too large, got %s", amount)
	}
	return nil
}

// ValidateKeyword checks the payment keyword a tenant puts on transfers.
func ValidateKeyword(keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return fmt.Errorf("payment keyword is empty")
	}
	if len(keyword) > 64 {
		return fmt.Errorf("payment keyword too long, max 64 characters")
	}
	return nil
}
