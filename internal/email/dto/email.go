package dto

import (
	"time"

	emaildomain "mailsift-backend/internal/email/domain"
)

// EmailSummary is the list-view projection of an email: headers and flags
// without the body or attachment payloads.
type EmailSummary struct {
	ID             string                   `json:"id"`
	ThreadID       string                   `json:"thread_id"`
	From           emaildomain.EmailAddress `json:"from"`
	Subject        string                   `json:"subject"`
	IsRead         bool                     `json:"is_read"`
	ReceivedAt     time.Time                `json:"received_at"`
	Categories     []string                 `json:"categories"`
	MetadataOnly   bool                     `json:"metadata_only"`
	HasAttachments bool                     `json:"has_attachments"`
}

// NewEmailSummary projects a stored email into its list-view shape.
func NewEmailSummary(email *emaildomain.Email) EmailSummary {
	return EmailSummary{
		ID:             email.ID,
		ThreadID:       email.ThreadID,
		From:           email.From,
		Subject:        email.Subject,
		IsRead:         email.IsRead,
		ReceivedAt:     email.ReceivedAt,
		Categories:     email.Categories,
		MetadataOnly:   email.MetadataOnly,
		HasAttachments: email.HasAttachments(),
	}
}

// EmailsResponse is a paginated email list
type EmailsResponse struct {
	Emails []EmailSummary `json:"emails"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Total  int64          `json:"total"`
}

// ReadStateRequest sets the local read flag on an email
type ReadStateRequest struct {
	IsRead *bool `json:"is_read" binding:"required"`
}

// CategoriesRequest replaces an email's category assignment
type CategoriesRequest struct {
	CategoryIDs []string `json:"category_ids"`
}

// TriggerSyncRequest starts a manual sync for the caller's account
type TriggerSyncRequest struct {
	FullSync bool `json:"full_sync"`
}
