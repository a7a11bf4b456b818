package bank

import "errors"

var (
	// ErrAuthFailed means the bank connection token is invalid or expired.
	// Surfaced to the user through the account flow, never retried here.
	ErrAuthFailed = errors.New("bank authorization failed")

	// ErrTransient covers network errors, timeouts and rate limits. Safe to
	// retry within the bounded budget; otherwise deferred to the next tick.
	ErrTransient = errors.New("transient bank error")
)
