package dto

import (
	"testing"
	"time"

	emaildomain "mailsift-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
)

func TestNewEmailSummary(t *testing.T) {
	received := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	email := &emaildomain.Email{
		ID:       "em-1",
		ThreadID: "th-1",
		From:     emaildomain.EmailAddress{Name: "Alice", Address: "alice@example.com"},
		Subject:  "Quarterly report",
		BodyText: "see attached",
		Attachments: []emaildomain.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf"},
		},
		IsRead:       true,
		ReceivedAt:   received,
		Categories:   []string{"cat-1"},
		MetadataOnly: false,
	}

	summary := NewEmailSummary(email)
	assert.Equal(t, "em-1", summary.ID)
	assert.Equal(t, "th-1", summary.ThreadID)
	assert.Equal(t, "alice@example.com", summary.From.Address)
	assert.Equal(t, "Quarterly report", summary.Subject)
	assert.True(t, summary.IsRead)
	assert.Equal(t, received, summary.ReceivedAt)
	assert.Equal(t, []string{"cat-1"}, summary.Categories)
	assert.True(t, summary.HasAttachments)
}

func TestNewEmailSummaryWithoutAttachments(t *testing.T) {
	summary := NewEmailSummary(&emaildomain.Email{ID: "em-2", MetadataOnly: true})
	assert.False(t, summary.HasAttachments)
	assert.True(t, summary.MetadataOnly)
}
