package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"jo@example.com", "landlord+tag@mail.co.nz"}
	for _, e := range valid {
		if err := ValidateEmail(e); err != nil {
			t.Errorf("ValidateEmail(%q) error = %v, want nil", e, err)
		}
	}

	invalid := []string{"", "plain", "a@b", "two@@example.com", "a b@example.com"}
	for _, e := range invalid {
		if err := ValidateEmail(e); err == nil {
			t.Errorf("ValidateEmail(%q) error = nil, want error", e)
		}
	}
}

func TestValidateRentAmount(t *testing.T) {
	valid := []string{"0.01", "450", "1200.50", "99999.99"}
	for _, s := range valid {
		d, _ := decimal.NewFromString(s)
		if err := ValidateRentAmount(d); err != nil {
			t.Errorf("ValidateRentAmount(%s) error = %v, want nil", s, err)
		}
	}

	invalid := []string{"0", "-450", "100000"}
	for _, s := range invalid {
		d, _ := decimal.NewFromString(s)
		if err := ValidateRentAmount(d); err == nil {
			t.Errorf("ValidateRentAmount(%s) error = nil, want error", s)
		}
	}
}

func TestValidateKeyword(t *testing.T) {
	if err := ValidateKeyword("FLAT 2B"); err != nil {
		t.Errorf("ValidateKeyword error = %v, want nil", err)
	}
	if err := ValidateKeyword("   "); err == nil {
		t.Error("ValidateKeyword(blank) error = nil, want error")
	}
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateKeyword(string(long)); err == nil {
		t.Error("ValidateKeyword(65 chars) error = nil, want error")
	}
}
