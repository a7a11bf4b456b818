package bank

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MockClient serves canned data for development and demos, so the whole
// polling loop can run without Akahu credentials.
type MockClient struct{}

// NewMockClient returns a mock bank feed.
func NewMockClient() *MockClient { return &MockClient{} }

// Accounts implements Client.
func (m *MockClient) Accounts(ctx context.Context, token string) ([]Account, error) {
	return []Account{
		{ID: "acc_test_123", Name: "BNZ Everyday Account", Bank: "BNZ", Type: "CHECKING"},
		{ID: "acc_test_456", Name: "ASB Savings Account", Bank: "ASB", Type: "SAVINGS"},
	}, nil
}

// Transactions implements Client. One rent-looking credit per day in the
// requested range, deterministic ids so re-fetches dedupe naturally.
func (m *MockClient) Transactions(ctx context.Context, token string, since, until time.Time) ([]Transaction, error) {
	descriptions := []string{
		"Rent payment - Smith",
		"Weekly rent FLAT 2B",
		"Property rent - Jones",
		"Rental payment",
	}
	amounts := []string{"450.00", "520.00", "380.00", "450.00"}

	var txns []Transaction
	i := 0
	for day := since; !day.After(until); day = day.AddDate(0, 0, 1) {
		amount, _ := decimal.NewFromString(amounts[i%len(amounts)])
		txns = append(txns, Transaction{
			ID:          fmt.Sprintf("txn_mock_%s", day.Format("2006-01-02")),
			Date:        day,
			Amount:      amount,
			Description: descriptions[i%len(descriptions)],
		})
		i++
	}
	return txns, nil
}

// ExchangeCode implements Client.
func (m *MockClient) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	return "mock_access_token_12345", nil
}
