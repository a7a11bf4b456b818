package bank

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a linked bank account as reported by the provider.
type Account struct {
	ID   string
	Name string
	Bank string
	Type string
}

// Transaction is one record from the bank feed. Immutable once fetched.
type Transaction struct {
	ID          string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Client is the bank feed provider consumed by the sync engine.
type Client interface {
	// Accounts lists the accounts reachable with the user token. Used to
	// verify a token when the user connects their bank.
	Accounts(ctx context.Context, token string) ([]Account, error)

	// Transactions fetches credit transactions in [since, until]. Returns
	// ErrAuthFailed or ErrTransient per the error taxonomy.
	Transactions(ctx context.Context, token string, since, until time.Time) ([]Transaction, error)

	// ExchangeCode swaps an OAuth authorization code for a user token.
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
}
