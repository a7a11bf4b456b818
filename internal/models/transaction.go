package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one credit fetched from the bank feed. Rows are
// append-only and immutable once stored; (user_id, external_id) dedupes
// re-fetches of the same transaction. The batch belongs to the user's bank
// connection; PropertyID is filled in once a match record binds it.
type BankTransaction struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_txn_natural"`
	ExternalID  string    `gorm:"size:64;not null;uniqueIndex:idx_txn_natural"`
	PropertyID  *uint     `gorm:"index"`
	Date        time.Time `gorm:"index;not null"`
	Amount      decimal.Decimal
	Description string `gorm:"size:255"`
	CreatedAt   time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// MatchRecord links a bank transaction to a property, or records that no
// property matched. Created once per external id, never reassigned by the
// matcher; only the manual-review flow may bind an unmatched record.
type MatchRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     uint   `gorm:"not null;uniqueIndex:idx_match_natural"`
	ExternalID string `gorm:"size:64;not null;uniqueIndex:idx_match_natural"`
	PropertyID *uint  `gorm:"index"` // nil = unmatched, surfaced for review

	Basis   string `gorm:"size:16;not null"` // keyword / fallback / manual / none / ambiguous
	Partial bool
	Applied bool `gorm:"not null;default:false"` // folded into the property balance

	Amount      decimal.Decimal `gorm:"type:numeric;not null"`
	Date        time.Time       `gorm:"not null"`
	Description string          `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
