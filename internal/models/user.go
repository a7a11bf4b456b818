package models

import "time"

// User represents a landlord account.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	DisplayName  string `gorm:"size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	FailedLoginAttempts int        `gorm:"default:0"`
	LockedUntil         *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	LastLoginIP         string `gorm:"size:64"`

	// Akahu user token, AES-GCM encrypted and base64 encoded. Empty means no
	// bank connection; properties of this user are skipped by the sync loop.
	BankTokenEnc    string `gorm:"size:1024"`
	BankConnectedAt *time.Time
}

// BankConnected reports whether the user has a linked bank connection.
func (u *User) BankConnected() bool {
	return u.BankTokenEnc != ""
}
