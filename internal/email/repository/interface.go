package repository

import (
	"time"

	emaildomain "mailsift-backend/internal/email/domain"
)

// EmailRepository is the dedup/upsert store for ingested emails.
type EmailRepository interface {
	// Upsert inserts the email or refreshes the stored record for the same
	// (account, provider message id) pair in a single atomic statement.
	// User-owned fields (is_read, categories) are written on insert only.
	// A duplicate-key conflict from a concurrent racer is treated as
	// success, never surfaced.
	Upsert(email *emaildomain.Email) error

	// ExistingProviderIDs returns which of the given provider message ids
	// are already stored for the account. Lookups are chunked internally;
	// every input id is accounted for across chunks.
	ExistingProviderIDs(accountID string, providerIDs []string) (map[string]struct{}, error)

	// ModifiedSince returns records whose updated_at is strictly after the
	// watermark, oldest first, for push-back reconciliation.
	ModifiedSince(accountID string, since time.Time, limit int) ([]*emaildomain.Email, error)

	CountByAccount(accountID string) (int64, error)
	GetByID(accountID, id string) (*emaildomain.Email, error)
	ListByAccount(accountID string, limit, offset int) ([]*emaildomain.Email, int64, error)

	// SetReadState flips the local read flag; updated_at moves so the next
	// push phase picks the change up.
	SetReadState(accountID, id string, read bool) error
	SetCategories(accountID, id string, categories []string) error
}
