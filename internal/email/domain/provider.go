package domain

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is invoked when the provider transparently refreshes the
// account's OAuth token, so the new token can be persisted.
type TokenUpdateFunc func(token *oauth2.Token) error

// MessageFormat selects how much of a message a fetch retrieves.
type MessageFormat string

const (
	// FormatFull retrieves headers, body parts and attachments.
	FormatFull MessageFormat = "full"
	// FormatMetadata retrieves a fixed header subset only; the fallback for
	// credentials without body access.
	FormatMetadata MessageFormat = "metadata"
)

// ListOptions parameterizes one page-list call against the remote mailbox.
type ListOptions struct {
	LabelIDs  []string
	Query     string
	PageToken string
	PageSize  int64
}

// ListPage is one page of message ids plus the cursor for the next page.
// An empty NextPageToken means the listing is exhausted.
type ListPage struct {
	IDs           []string
	NextPageToken string
	SizeEstimate  int64
}

// MailboxSession is a live connection to one account's remote mailbox. All
// calls may fail with a *ScopeError (credential lacks access) or a
// *TransientError (retry next cycle); anything else is unexpected.
type MailboxSession interface {
	// HasFullScope probes whether the credential allows full-format access.
	// Called once per fetch session; a false result drops query and custom
	// label filters to the minimal safe subset proactively.
	HasFullScope(ctx context.Context) bool

	ListMessageIDs(ctx context.Context, opts ListOptions) (*ListPage, error)

	GetMessage(ctx context.Context, id string, format MessageFormat) (*RawMessage, error)

	// CanModifyRemote checks token scope for label mutation before the push
	// phase attempts any remote write.
	CanModifyRemote(ctx context.Context) bool

	// SetReadState adds or removes the remote unread marker. Setting the
	// same state twice is a remote no-op, so re-pushing is safe.
	SetReadState(ctx context.Context, id string, read bool) error
}

// MailProvider opens mailbox sessions from stored account credentials.
type MailProvider interface {
	Session(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (MailboxSession, error)
}

// CategoryGateway assigns category ids to a normalized email at ingestion.
// How it scores is its own business; the sync engine only awaits the result
// before the record counts as fully ingested.
type CategoryGateway interface {
	Categorize(ctx context.Context, accountID string, email *Email) ([]string, error)
}
