package models

import "time"

// NotificationRecord is the de-duplication row for alerts: at most one per
// (property, cycle, kind), enforced by the unique index.
type NotificationRecord struct {
	ID          uint      `gorm:"primaryKey"`
	PropertyID  uint      `gorm:"not null;uniqueIndex:idx_notice_cycle"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_notice_cycle"`
	Kind        string    `gorm:"size:32;not null;uniqueIndex:idx_notice_cycle"`

	Message string `gorm:"size:255"`
	SentAt  time.Time

	CreatedAt time.Time

	Property Property `gorm:"constraint:OnDelete:CASCADE"`
}
