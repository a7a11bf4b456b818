package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RentCharge is the rent falling due for one closed cycle. Charges are
// accrued idempotently, at most one per (property, cycle), and debited into
// the property balance through the same apply mechanism as matched payments.
// A balance that goes negative after its charges means rent is in arrears.
type RentCharge struct {
	ID          string    `gorm:"primaryKey;size:36"`
	PropertyID  uint      `gorm:"not null;uniqueIndex:idx_charge_cycle"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_charge_cycle"`
	WindowEnd   time.Time `gorm:"not null"` // the charge falls due here

	Amount  decimal.Decimal `gorm:"type:numeric;not null"`
	Applied bool            `gorm:"not null;default:false"`

	CreatedAt time.Time

	Property Property `gorm:"constraint:OnDelete:CASCADE"`
}
