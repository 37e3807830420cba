package gmail

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	emaildomain "mailsift-backend/internal/email/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = emaildomain.TokenUpdateFunc

// modifyScopes are the token scopes that permit remote label changes.
var modifyScopes = []string{
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/gmail.modify",
}

// Service builds authenticated Gmail sessions for connected accounts.
type Service struct {
	clientID     string
	clientSecret string
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// Session opens an authenticated mailbox session. Refreshed tokens are
// reported through onTokenRefresh so callers can persist them.
func (s *Service) Session(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (emaildomain.MailboxSession, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	tokenSrv, err := oauth2api.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create token service: %v", err)
	}

	return &session{srv: srv, tokenSrv: tokenSrv}, nil
}

type session struct {
	srv      *gmail.Service
	tokenSrv *oauth2api.Service
}

const gmailUser = "me"

// HasFullScope probes whether the session's token grants full message
// access. The labels endpoint requires more than the metadata scope, so a
// successful call means queries and label filters will be accepted.
func (s *session) HasFullScope(ctx context.Context) bool {
	_, err := s.srv.Users.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		log.Printf("[Gmail] scope probe failed, assuming restricted token: %v", err)
		return false
	}
	return true
}

// ListMessageIDs lists one page of message ids matching the given options.
func (s *session) ListMessageIDs(ctx context.Context, opts emaildomain.ListOptions) (*emaildomain.ListPage, error) {
	call := s.srv.Users.Messages.List(gmailUser).
		MaxResults(opts.PageSize).
		IncludeSpamTrash(true).
		Context(ctx)

	if opts.Query != "" {
		call = call.Q(opts.Query)
	}
	if len(opts.LabelIDs) > 0 {
		call = call.LabelIds(opts.LabelIDs...)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classifyError("list messages", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}

	return &emaildomain.ListPage{
		IDs:           ids,
		NextPageToken: resp.NextPageToken,
		SizeEstimate:  resp.ResultSizeEstimate,
	}, nil
}

// GetMessage retrieves one message in the requested format. Metadata
// requests limit headers to the ones the normalizer consumes.
func (s *session) GetMessage(ctx context.Context, id string, format emaildomain.MessageFormat) (*emaildomain.RawMessage, error) {
	call := s.srv.Users.Messages.Get(gmailUser, id).
		Format(string(format)).
		Context(ctx)

	if format == emaildomain.FormatMetadata {
		call = call.MetadataHeaders("From", "To", "Subject", "Date")
	}

	msg, err := call.Do()
	if err != nil {
		return nil, classifyError("get message", err)
	}

	return toRawMessage(msg), nil
}

// CanModifyRemote checks the token's granted scopes via tokeninfo. Sync
// only pushes read-state changes when a modify-capable scope is present.
func (s *session) CanModifyRemote(ctx context.Context) bool {
	info, err := s.tokenSrv.Tokeninfo().Context(ctx).Do()
	if err != nil {
		log.Printf("[Gmail] tokeninfo check failed: %v", err)
		return false
	}

	granted := strings.Fields(info.Scope)
	for _, scope := range granted {
		for _, want := range modifyScopes {
			if scope == want {
				return true
			}
		}
	}
	return false
}

// SetReadState updates the UNREAD label on a remote message.
func (s *session) SetReadState(ctx context.Context, id string, isRead bool) error {
	modifyReq := &gmail.ModifyMessageRequest{}
	if isRead {
		modifyReq.RemoveLabelIds = []string{"UNREAD"}
	} else {
		modifyReq.AddLabelIds = []string{"UNREAD"}
	}

	_, err := s.srv.Users.Messages.Modify(gmailUser, id, modifyReq).Context(ctx).Do()
	if err != nil {
		return classifyError("modify message", err)
	}
	return nil
}

func toRawMessage(msg *gmail.Message) *emaildomain.RawMessage {
	return &emaildomain.RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		InternalDate: msg.InternalDate,
		Payload:      toPart(msg.Payload),
	}
}

func toPart(p *gmail.MessagePart) *emaildomain.Part {
	if p == nil {
		return nil
	}

	part := &emaildomain.Part{
		MimeType: p.MimeType,
		Filename: p.Filename,
	}

	for _, h := range p.Headers {
		part.Headers = append(part.Headers, emaildomain.Header{
			Name:  h.Name,
			Value: h.Value,
		})
	}

	if p.Body != nil {
		part.Body = &emaildomain.PartBody{
			Data:         p.Body.Data,
			Size:         p.Body.Size,
			AttachmentID: p.Body.AttachmentId,
		}
	}

	for _, child := range p.Parts {
		part.Parts = append(part.Parts, toPart(child))
	}

	return part
}

// classifyError maps Gmail API failures onto the sync error taxonomy.
// Permission problems become scope errors so callers can degrade to
// metadata access; rate limits and server errors become transient.
func classifyError(op string, err error) error {
	if strings.Contains(err.Error(), "Metadata scope") {
		return &emaildomain.ScopeError{Op: op, Err: err}
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return &emaildomain.ScopeError{Op: op, Err: err}
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return &emaildomain.TransientError{Op: op, Err: err}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
