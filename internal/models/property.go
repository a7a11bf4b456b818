package models

import (
	"time"

	"github.com/shopspring/decimal"

	"rentcheck/internal/rent"
)

// Property is a rental being tracked. The running balance is derived solely
// from applied ledger lines (matched payments and accrued rent charges);
// nothing else may write it.
type Property struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"index;not null"`
	Name    string `gorm:"size:128;not null"`
	Address string `gorm:"size:255"`

	RentAmount decimal.Decimal `gorm:"type:numeric;not null"`
	Frequency  string          `gorm:"size:16;not null"` // weekly / fortnightly / monthly
	DueDay     int             `gorm:"not null"`         // 1-7 weekday or 1-31 day of month

	// Keyword is matched against transaction descriptions; TenantNickname is
	// the display label and the fallback match term.
	Keyword          string          `gorm:"size:64;not null"`
	TenantNickname   string          `gorm:"size:64"`
	TolerancePercent decimal.Decimal `gorm:"type:numeric;default:0"`

	Balance      decimal.Decimal `gorm:"type:numeric;default:0"`
	LastSyncedAt *time.Time
	LastAlertAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// Schedule builds the cycle-calculator input for this property. The creation
// time anchors fortnightly phase.
func (p *Property) Schedule() rent.Schedule {
	return rent.Schedule{
		Frequency: rent.Frequency(p.Frequency),
		DueDay:    p.DueDay,
		Anchor:    p.CreatedAt,
	}
}

// MatchTarget builds the matcher rule for this property.
func (p *Property) MatchTarget() rent.Target {
	return rent.Target{
		PropertyID:       p.ID,
		Keyword:          p.Keyword,
		TenantNickname:   p.TenantNickname,
		RentAmount:       p.RentAmount,
		TolerancePercent: p.TolerancePercent,
	}
}
