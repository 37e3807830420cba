package domain

import "strings"

// RawMessage is a provider message as delivered by the mailbox API, before
// normalization. Headers live on the payload part; the part tree is finite
// by construction of the upstream API.
type RawMessage struct {
	ID       string
	ThreadID string
	LabelIDs []string
	// InternalDate is the provider's receive timestamp in epoch milliseconds,
	// zero when the fetch format did not include it.
	InternalDate int64
	Payload      *Part
}

// Part is one node of the MIME tree: a leaf when Body carries data, a
// container when Parts is non-empty. A part can be both (leaf data plus
// nested parts); the walk handles either shape.
type Part struct {
	MimeType string
	Filename string
	Headers  []Header
	Body     *PartBody
	Parts    []*Part
}

// PartBody is a leaf body descriptor. Data is the provider's base64url
// payload; it may be empty for attachment stubs where only AttachmentID and
// Size are known.
type PartBody struct {
	Data         string
	Size         int64
	AttachmentID string
}

type Header struct {
	Name  string
	Value string
}

// Header returns the first header with the given name, matched
// case-insensitively. Empty string when missing or when there is no payload.
func (m *RawMessage) Header(name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HasLabel reports whether the provider attached the given label.
func (m *RawMessage) HasLabel(labelID string) bool {
	for _, l := range m.LabelIDs {
		if l == labelID {
			return true
		}
	}
	return false
}
