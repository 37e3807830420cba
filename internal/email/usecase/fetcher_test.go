package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	emaildomain "mailsift-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession scripts a remote mailbox for fetch tests. It tracks how many
// list calls are in flight at once so tests can assert on cycle exclusion.
type fakeSession struct {
	mu sync.Mutex

	fullScope     bool
	pages         [][]string
	listErr       error
	listDelay     time.Duration
	listCalls     []emaildomain.ListOptions
	fullFormatErr error
	getCalls      int

	activeListCalls int
	peakListCalls   int
}

func (s *fakeSession) HasFullScope(ctx context.Context) bool {
	return s.fullScope
}

func (s *fakeSession) ListMessageIDs(ctx context.Context, opts emaildomain.ListOptions) (*emaildomain.ListPage, error) {
	s.mu.Lock()
	s.activeListCalls++
	if s.activeListCalls > s.peakListCalls {
		s.peakListCalls = s.activeListCalls
	}
	delay := s.listDelay

	s.listCalls = append(s.listCalls, opts)
	var page *emaildomain.ListPage
	var err error
	if s.listErr != nil {
		err = s.listErr
		s.listErr = nil // fail once, then recover
	} else {
		pageIdx := 0
		if opts.PageToken != "" {
			fmt.Sscanf(opts.PageToken, "page-%d", &pageIdx)
		}
		page = &emaildomain.ListPage{}
		if pageIdx < len(s.pages) {
			page.IDs = s.pages[pageIdx]
			if pageIdx+1 < len(s.pages) {
				page.NextPageToken = fmt.Sprintf("page-%d", pageIdx+1)
			}
		}
	}
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.activeListCalls--
	s.mu.Unlock()

	return page, err
}

func (s *fakeSession) GetMessage(ctx context.Context, id string, format emaildomain.MessageFormat) (*emaildomain.RawMessage, error) {
	s.mu.Lock()
	s.getCalls++
	s.mu.Unlock()

	if format == emaildomain.FormatFull && s.fullFormatErr != nil {
		return nil, s.fullFormatErr
	}

	raw := &emaildomain.RawMessage{
		ID:       id,
		ThreadID: "thread-" + id,
		Payload: &emaildomain.Part{
			MimeType: "text/plain",
			Headers: []emaildomain.Header{
				{Name: "From", Value: "sender@example.com"},
				{Name: "Subject", Value: "subject " + id},
			},
		},
		InternalDate: time.Now().UnixMilli(),
	}
	if format == emaildomain.FormatFull {
		raw.Payload.Body = &emaildomain.PartBody{Data: encode("body of " + id)}
	}
	return raw, nil
}

func (s *fakeSession) CanModifyRemote(ctx context.Context) bool { return s.fullScope }

func (s *fakeSession) SetReadState(ctx context.Context, id string, read bool) error { return nil }

// memoryEmailRepo is an in-memory stand-in for the persistent store.
type memoryEmailRepo struct {
	mu     sync.Mutex
	emails map[string]*emaildomain.Email // keyed by account/provider id
}

func newMemoryEmailRepo() *memoryEmailRepo {
	return &memoryEmailRepo{emails: make(map[string]*emaildomain.Email)}
}

func (r *memoryEmailRepo) key(accountID, providerID string) string {
	return accountID + "/" + providerID
}

func (r *memoryEmailRepo) Upsert(email *emaildomain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails[r.key(email.AccountID, email.ProviderMessageID)] = email
	return nil
}

func (r *memoryEmailRepo) ExistingProviderIDs(accountID string, providerIDs []string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := make(map[string]struct{})
	for _, id := range providerIDs {
		if _, ok := r.emails[r.key(accountID, id)]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (r *memoryEmailRepo) ModifiedSince(accountID string, since time.Time, limit int) ([]*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*emaildomain.Email
	for _, e := range r.emails {
		if e.AccountID == accountID && e.UpdatedAt.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEmailRepo) CountByAccount(accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.emails {
		if e.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (r *memoryEmailRepo) GetByID(accountID, id string) (*emaildomain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emails {
		if e.AccountID == accountID && e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memoryEmailRepo) ListByAccount(accountID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*emaildomain.Email
	for _, e := range r.emails {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryEmailRepo) SetReadState(accountID, id string, read bool) error { return nil }

func (r *memoryEmailRepo) SetCategories(accountID, id string, categories []string) error { return nil }

func (r *memoryEmailRepo) stored(accountID, providerID string) *emaildomain.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emails[r.key(accountID, providerID)]
}

func newTestFetcher(repo *memoryEmailRepo) *Fetcher {
	f := NewFetcher(repo, nil)
	f.batchDelay = 0
	f.batchDelayLarge = 0
	return f
}

func TestFetchAndProcessIngestsNewMessages(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope: true,
		pages:     [][]string{{"a", "b", "c"}},
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{MaxResults: 10})

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NotNil(t, repo.stored("acct", "a"))
	assert.NotNil(t, repo.stored("acct", "b"))
	assert.NotNil(t, repo.stored("acct", "c"))
}

func TestFetchAndProcessSkipsExisting(t *testing.T) {
	repo := newMemoryEmailRepo()
	require.NoError(t, repo.Upsert(&emaildomain.Email{AccountID: "acct", ProviderMessageID: "a"}))

	session := &fakeSession{
		fullScope: true,
		pages:     [][]string{{"a", "b"}},
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{MaxResults: 10})

	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the unseen id is ingested")
}

func TestFetchAndProcessMaxResultsTruncates(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope: true,
		pages:     [][]string{{"a", "b", "c", "d", "e"}},
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{MaxResults: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFetchAndProcessPaginates(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope: true,
		pages:     [][]string{{"a", "b"}, {"c", "d"}, {"e"}},
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{FetchAll: true})

	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestRestrictedScopeDropsCustomFilters(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope: false,
		pages:     [][]string{{"a"}},
	}

	_, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{
		Query:    "is:unread",
		LabelIDs: []string{"INBOX", "Label_custom"},
	})

	require.NoError(t, err)
	require.NotEmpty(t, session.listCalls)
	assert.Empty(t, session.listCalls[0].Query, "query dropped under restricted scope")
	assert.Equal(t, []string{"INBOX"}, session.listCalls[0].LabelIDs, "custom label dropped, safe label kept")
}

func TestListScopeErrorRetriesConservatively(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope: true,
		pages:     [][]string{{"a"}},
		listErr:   &emaildomain.ScopeError{Op: "list messages", Err: fmt.Errorf("Metadata scope does not support q")},
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{
		Query:    "is:unread",
		LabelIDs: []string{"INBOX"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, session.listCalls, 2)
	retry := session.listCalls[1]
	assert.Empty(t, retry.Query)
	assert.Equal(t, int64(100), retry.PageSize)
}

func TestFullFormatScopeFallsBackToMetadata(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope:     true,
		pages:         [][]string{{"a"}},
		fullFormatErr: &emaildomain.ScopeError{Op: "get message", Err: fmt.Errorf("insufficient scope")},
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{MaxResults: 1})

	require.NoError(t, err, "metadata fallback is a success, not a scope failure")
	assert.Equal(t, 1, count)

	stored := repo.stored("acct", "a")
	require.NotNil(t, stored)
	assert.True(t, stored.MetadataOnly)
	assert.Equal(t, PlaceholderBody, stored.BodyText)
}

func TestNonScopeGetErrorIsIsolated(t *testing.T) {
	repo := newMemoryEmailRepo()
	session := &fakeSession{
		fullScope:     true,
		pages:         [][]string{{"a"}},
		fullFormatErr: fmt.Errorf("network down"),
	}

	count, err := newTestFetcher(repo).FetchAndProcess(context.Background(), session, "acct", FetchOptions{MaxResults: 1})

	// The batch absorbs the failure; the run itself still completes.
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Nil(t, repo.stored("acct", "a"))
}

func TestAdaptiveBatchSize(t *testing.T) {
	cases := []struct {
		total int
		want  int
	}{
		{10, 30},
		{50, 30},
		{51, 25},
		{500, 25},
		{501, 20},
		{1000, 20},
		{1001, 15},
		{5000, 15},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, adaptiveBatchSize(tc.total), "total %d", tc.total)
	}
}

func TestBatchSizeForPrefersProviderEstimate(t *testing.T) {
	cases := []struct {
		pageNew  int
		estimate int
		want     int
	}{
		{10, 0, 30},    // no estimate, page volume decides
		{10, 2000, 15}, // big mailbox, small batches from page one
		{40, 600, 20},  // mid-size estimate dominates a small page
		{600, 550, 20}, // page larger than estimate, page decides
		{500, 500, 25}, // equal, no change
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, batchSizeFor(tc.pageNew, tc.estimate), "page %d estimate %d", tc.pageNew, tc.estimate)
	}
}
