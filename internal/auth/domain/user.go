package domain

import "time"

// User is the owning account whose mailbox gets synchronized. OAuth tokens
// for the mail provider live on the row; sync state is maintained by the
// sync engine.
type User struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-"` // Never return password in JSON
	Name     string `json:"name"`

	// Mail provider credentials. Empty AccessToken means the account is not
	// connected and is skipped by the scheduler.
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`

	// SyncInterval is minutes between scheduled syncs. 0 means manual-only.
	// The scheduler clamps non-zero values to [1, 60].
	SyncInterval int `json:"sync_interval"`

	LastEmailSyncAt *time.Time `json:"last_email_sync_at"`
	LastFullSyncAt  *time.Time `json:"last_full_sync_at"`

	// LastPushCursor is the updated-at watermark up to which local changes
	// have been pushed back to the provider.
	LastPushCursor time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}
