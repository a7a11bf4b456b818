package rent

import "errors"

// Error taxonomy for the reconciliation engine. Handlers and the sync
// orchestrator branch on these with errors.Is.
var (
	// ErrInvalidConfiguration means a property's frequency/due-day pair is
	// out of range. Caught at property creation; sync never sees it for a
	// property that passed validation.
	ErrInvalidConfiguration = errors.New("invalid schedule configuration")

	// ErrAmbiguousMatch means two properties matched one transaction with
	// equal specificity. The transaction is left unmatched for manual review.
	ErrAmbiguousMatch = errors.New("ambiguous transaction match")
)
