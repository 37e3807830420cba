package usecase

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	emaildomain "mailsift-backend/internal/email/domain"
)

const (
	// PlaceholderBody is stored when no body part could be decoded, which
	// happens for metadata-only fetches. The UI keys its "limited access"
	// badge off MetadataOnly, not off this string.
	PlaceholderBody = "(Content not available with current permissions)"

	// DefaultSubject substitutes for a missing Subject header.
	DefaultSubject = "(no subject)"
)

// addressPattern matches `"Display Name" <addr>`, `Display Name <addr>` and
// bare `addr`. Anything else is treated as an address verbatim.
var addressPattern = regexp.MustCompile(`^\s*(?:"?([^"<]*?)"?\s*)?<?([^<>\s]+@[^<>\s]+?)>?\s*$`)

// Normalize converts a raw provider message into a canonical Email. It is
// total: every missing or malformed field resolves to a documented default,
// never an error. No I/O happens here.
func Normalize(raw *emaildomain.RawMessage) *emaildomain.Email {
	subject := raw.Header("Subject")
	if subject == "" {
		subject = DefaultSubject
	}

	threadID := raw.ThreadID
	if threadID == "" {
		threadID = raw.ID
	}

	bodyText, bodyHTML := extractBody(raw.Payload)
	metadataOnly := false
	if bodyText == "" && bodyHTML == "" {
		metadataOnly = true
		bodyText = PlaceholderBody
	}

	var attachments []emaildomain.Attachment
	if raw.Payload != nil {
		collectAttachments(raw.Payload, &attachments)
	}

	return &emaildomain.Email{
		ProviderMessageID: raw.ID,
		ThreadID:          threadID,
		From:              parseAddress(raw.Header("From")),
		Recipients:        parseRecipients(raw.Header("To")),
		Subject:           subject,
		BodyText:          bodyText,
		BodyHTML:          bodyHTML,
		Attachments:       attachments,
		IsRead:            !raw.HasLabel("UNREAD"),
		ReceivedAt:        parseReceivedAt(raw),
		MetadataOnly:      metadataOnly,
	}
}

// parseAddress splits a From-style header into display name and address.
// If the pattern does not match, the whole string becomes the address.
func parseAddress(s string) emaildomain.EmailAddress {
	s = strings.TrimSpace(s)
	if s == "" {
		return emaildomain.EmailAddress{}
	}
	if m := addressPattern.FindStringSubmatch(s); m != nil {
		return emaildomain.EmailAddress{
			Name:    strings.TrimSpace(m[1]),
			Address: m[2],
		}
	}
	return emaildomain.EmailAddress{Address: s}
}

// parseRecipients splits a To header on commas and parses each entry. An
// empty header yields a single empty placeholder entry so downstream
// consumers can assume at least one recipient exists.
func parseRecipients(s string) []emaildomain.EmailAddress {
	s = strings.TrimSpace(s)
	if s == "" {
		return []emaildomain.EmailAddress{{}}
	}

	parts := strings.Split(s, ",")
	recipients := make([]emaildomain.EmailAddress, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		recipients = append(recipients, parseAddress(part))
	}
	if len(recipients) == 0 {
		return []emaildomain.EmailAddress{{}}
	}
	return recipients
}

// extractBody walks the part tree looking for text/plain and text/html
// leaves. The first decodable leaf of each type wins.
func extractBody(payload *emaildomain.Part) (string, string) {
	if payload == nil {
		return "", ""
	}

	var plainBody, htmlBody string

	var findBody func(part *emaildomain.Part)
	findBody = func(part *emaildomain.Part) {
		if part == nil {
			return
		}

		if part.Body != nil && part.Body.Data != "" {
			switch part.MimeType {
			case "text/plain":
				if plainBody == "" {
					plainBody = decodeBody(part.Body.Data)
				}
			case "text/html":
				if htmlBody == "" {
					htmlBody = decodeBody(part.Body.Data)
				}
			}
		}

		for _, child := range part.Parts {
			findBody(child)
		}
	}

	// A simple message carries its body directly on the payload part.
	if payload.Body != nil && payload.Body.Data != "" && len(payload.Parts) == 0 {
		decoded := decodeBody(payload.Body.Data)
		if payload.MimeType == "text/html" {
			return "", decoded
		}
		return decoded, ""
	}

	findBody(payload)
	return plainBody, htmlBody
}

func decodeBody(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

// collectAttachments records any part carrying a filename and a body
// descriptor. Nested multipart trees are walked to arbitrary depth; the
// tree is finite by construction.
func collectAttachments(part *emaildomain.Part, out *[]emaildomain.Attachment) {
	if part == nil {
		return
	}

	if part.Filename != "" && part.Body != nil {
		*out = append(*out, emaildomain.Attachment{
			Filename:             part.Filename,
			ContentType:          part.MimeType,
			SizeBytes:            part.Body.Size,
			ProviderAttachmentID: part.Body.AttachmentID,
		})
	}

	for _, child := range part.Parts {
		collectAttachments(child, out)
	}
}

// parseReceivedAt prefers the provider's internal timestamp, then the Date
// header, then ingestion time. Unparsable dates never propagate a failure.
func parseReceivedAt(raw *emaildomain.RawMessage) time.Time {
	if raw.InternalDate > 0 {
		return time.UnixMilli(raw.InternalDate)
	}

	if dateHeader := raw.Header("Date"); dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, dateHeader); err == nil {
			return t
		}
	}

	return time.Now()
}
