package models

import "time"

// SyncAttempt records that an external bank poll was made for a
// (property, cycle) pair. The unique key on (property_id, window_start)
// enforces the at-most-one-call-per-cycle budget across ticks, restarts and
// concurrent workers.
type SyncAttempt struct {
	ID          string    `gorm:"primaryKey;size:36"`
	PropertyID  uint      `gorm:"not null;uniqueIndex:idx_attempt_cycle"`
	WindowStart time.Time `gorm:"not null;uniqueIndex:idx_attempt_cycle"`

	Status      string `gorm:"size:16;not null"` // pending / completed / failed
	StoredCount int    `gorm:"default:0"`
	ErrorCount  int    `gorm:"default:0"`
	LastError   string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Property Property `gorm:"constraint:OnDelete:CASCADE"`
}
