package domain

import "time"

// EmailAddress is one parsed mailbox from an address header. Address may be
// empty for malformed headers; consumers must tolerate that.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Attachment describes one attachment part. The data itself stays at the
// provider and is fetched on demand via ProviderAttachmentID.
type Attachment struct {
	Filename             string `json:"filename"`
	ContentType          string `json:"content_type"`
	SizeBytes            int64  `json:"size_bytes"`
	ProviderAttachmentID string `json:"provider_attachment_id"`
}

// Email is one ingested message. Exactly one row exists per
// (AccountID, ProviderMessageID); the composite unique index is the backstop
// for concurrent upserts racing on the same message.
type Email struct {
	ID                string         `json:"id" gorm:"primaryKey"`
	AccountID         string         `json:"account_id" gorm:"uniqueIndex:idx_account_provider;not null"`
	ProviderMessageID string         `json:"provider_message_id" gorm:"uniqueIndex:idx_account_provider;not null"`
	ThreadID          string         `json:"thread_id" gorm:"index"`
	From              EmailAddress   `json:"from" gorm:"embedded;embeddedPrefix:from_"`
	Recipients        []EmailAddress `json:"recipients" gorm:"serializer:json"`
	Subject           string         `json:"subject"`
	BodyText          string         `json:"body_text"`
	BodyHTML          string         `json:"body_html"`
	Attachments       []Attachment   `json:"attachments" gorm:"serializer:json"`
	IsRead            bool           `json:"is_read"`
	ReceivedAt        time.Time      `json:"received_at" gorm:"index"`
	Categories        []string       `json:"categories" gorm:"serializer:json"`

	// MetadataOnly marks records built from a permission-degraded fetch:
	// headers were available but the body could not be retrieved. A quality
	// signal for the UI, not an error state.
	MetadataOnly bool `json:"metadata_only"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

func (Email) TableName() string {
	return "emails"
}

// HasAttachments reports whether any attachment was found in the part tree.
func (e *Email) HasAttachments() bool {
	return len(e.Attachments) > 0
}
