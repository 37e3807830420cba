package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	authdomain "mailsift-backend/internal/auth/domain"
	emaildomain "mailsift-backend/internal/email/domain"
	"mailsift-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryUserRepo holds accounts in memory for scheduler tests.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*authdomain.User
}

func newMemoryUserRepo(users ...*authdomain.User) *memoryUserRepo {
	r := &memoryUserRepo{users: make(map[string]*authdomain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryUserRepo) Create(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByID(id string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memoryUserRepo) FindConnected() ([]*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*authdomain.User
	for _, u := range r.users {
		if u.AccessToken != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryUserRepo) Update(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) SaveRefreshToken(token *authdomain.RefreshToken) error { return nil }

func (r *memoryUserRepo) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	return nil, nil
}

func (r *memoryUserRepo) DeleteRefreshToken(token string) error { return nil }

// fakeProvider hands the same scripted session to every account and counts
// how many sessions were opened.
type fakeProvider struct {
	mu       sync.Mutex
	session  *fakeSession
	sessions int
}

func (p *fakeProvider) Session(ctx context.Context, accessToken, refreshToken string, onTokenRefresh emaildomain.TokenUpdateFunc) (emaildomain.MailboxSession, error) {
	p.mu.Lock()
	p.sessions++
	p.mu.Unlock()
	return p.session, nil
}

func (p *fakeProvider) sessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

func newTestSyncService(userRepo *memoryUserRepo, emailRepo *memoryEmailRepo, provider emaildomain.MailProvider) *SyncService {
	cfg := &config.Config{SyncIntervalMin: 10}
	s := NewSyncService(userRepo, emailRepo, newTestFetcher(emailRepo), provider, cfg)
	s.partitionDelay = 0
	return s
}

func connectedUser(id string) *authdomain.User {
	return &authdomain.User{
		ID:           id,
		Email:        id + "@example.com",
		AccessToken:  "token-" + id,
		SyncInterval: 10,
	}
}

// jobStatus polls a job's status through the public snapshot accessor.
func jobStatus(s *SyncService, id string) JobStatus {
	j := s.GetJob(id)
	if j == nil {
		return ""
	}
	return j.Status
}

func TestClampSyncInterval(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 0}, // manual-only is preserved
		{-5, 1},
		{1, 1},
		{30, 30},
		{60, 60},
		{120, 60},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClampSyncInterval(tc.in), "input %d", tc.in)
	}
}

func TestScheduledCycleSyncsDueAccounts(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"), connectedUser("u2"))
	emailRepo := newMemoryEmailRepo()
	provider := &fakeProvider{session: &fakeSession{fullScope: true, pages: [][]string{{"a", "b"}}}}

	s := newTestSyncService(userRepo, emailRepo, provider)
	s.runScheduledCycle(context.Background())

	assert.Equal(t, 2, provider.sessionCount())
	count, err := emailRepo.CountByAccount("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestScheduledCycleSkipsManualOnlyAccounts(t *testing.T) {
	manual := connectedUser("manual")
	manual.SyncInterval = 0

	userRepo := newMemoryUserRepo(manual)
	emailRepo := newMemoryEmailRepo()
	provider := &fakeProvider{session: &fakeSession{fullScope: true, pages: [][]string{{"a"}}}}

	s := newTestSyncService(userRepo, emailRepo, provider)
	s.runScheduledCycle(context.Background())

	assert.Equal(t, 0, provider.sessionCount())
}

func TestScheduledCycleRespectsInterval(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"))
	emailRepo := newMemoryEmailRepo()
	provider := &fakeProvider{session: &fakeSession{fullScope: true, pages: [][]string{{"a"}}}}

	s := newTestSyncService(userRepo, emailRepo, provider)

	s.runScheduledCycle(context.Background())
	require.Equal(t, 1, provider.sessionCount())

	// Immediately re-running finds nothing due.
	s.runScheduledCycle(context.Background())
	assert.Equal(t, 1, provider.sessionCount())
}

func TestCycleMutualExclusion(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"))
	emailRepo := newMemoryEmailRepo()
	provider := &fakeProvider{session: &fakeSession{fullScope: true, pages: [][]string{{"a"}}}}

	s := newTestSyncService(userRepo, emailRepo, provider)

	// While a cycle holds the flag, another trigger is skipped outright.
	require.True(t, s.tryBeginCycle())
	s.runScheduledCycle(context.Background())
	assert.Equal(t, 0, provider.sessionCount(), "overlapping cycle must be skipped, not queued")
	s.endCycle()

	s.runScheduledCycle(context.Background())
	assert.Equal(t, 1, provider.sessionCount())
}

func TestTriggerFetchRunsJobToCompletion(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"))
	emailRepo := newMemoryEmailRepo()
	provider := &fakeProvider{session: &fakeSession{fullScope: true, pages: [][]string{{"a", "b", "c"}}}}

	s := newTestSyncService(userRepo, emailRepo, provider)
	s.Start()
	defer s.Stop()

	job, err := s.TriggerFetch("u1", false)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		st := jobStatus(s, job.ID)
		return st == JobCompleted || st == JobFailed
	}, 5*time.Second, 10*time.Millisecond)

	done := s.GetJob(job.ID)
	assert.Equal(t, JobCompleted, done.Status)
	assert.Equal(t, 3, done.Count)
	require.NotNil(t, done.DoneAt)

	user, err := userRepo.FindByID("u1")
	require.NoError(t, err)
	assert.NotNil(t, user.LastEmailSyncAt)
}

func TestJobHandlesAreSnapshotsSafeToMarshal(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"))
	emailRepo := newMemoryEmailRepo()
	session := &fakeSession{fullScope: true, pages: [][]string{{"a", "b"}}, listDelay: 5 * time.Millisecond}
	provider := &fakeProvider{session: session}

	s := newTestSyncService(userRepo, emailRepo, provider)
	s.Start()
	defer s.Stop()

	job, err := s.TriggerFetch("u1", false)
	require.NoError(t, err)

	// Marshal the handle and fresh lookups while the worker is advancing the
	// job. Under -race this fails if either path hands out the live job.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err := json.Marshal(job)
		require.NoError(t, err)
		polled := s.GetJob(job.ID)
		require.NotNil(t, polled)
		_, err = json.Marshal(polled)
		require.NoError(t, err)
		if polled.Status == JobCompleted || polled.Status == JobFailed {
			break
		}
	}

	done := s.GetJob(job.ID)
	require.NotNil(t, done)
	assert.Equal(t, JobCompleted, done.Status)
	assert.Equal(t, JobQueued, job.Status, "the trigger handle is a point-in-time copy")
}

func TestOverlappingTriggersNeverRunConcurrently(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"), connectedUser("u2"))
	emailRepo := newMemoryEmailRepo()
	session := &fakeSession{fullScope: true, pages: [][]string{{"a"}}, listDelay: 20 * time.Millisecond}
	provider := &fakeProvider{session: session}

	s := newTestSyncService(userRepo, emailRepo, provider)
	s.Start()
	defer s.Stop()

	job1, err := s.TriggerFetch("u1", false)
	require.NoError(t, err)
	job2, err := s.TriggerFetch("u2", false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return jobStatus(s, job1.ID) == JobCompleted && jobStatus(s, job2.ID) == JobCompleted
	}, 10*time.Second, 10*time.Millisecond)

	session.mu.Lock()
	peak := session.peakListCalls
	session.mu.Unlock()
	assert.Equal(t, 1, peak, "at most one sync cycle may be active at a time")
}

func TestTriggerFetchRejectsUnknownOrDisconnected(t *testing.T) {
	disconnected := connectedUser("u1")
	disconnected.AccessToken = ""

	s := newTestSyncService(newMemoryUserRepo(disconnected), newMemoryEmailRepo(), &fakeProvider{session: &fakeSession{}})

	_, err := s.TriggerFetch("missing", false)
	assert.Error(t, err)

	_, err = s.TriggerFetch("u1", false)
	assert.Error(t, err)
}

func TestFullSyncSweepsPartitionsAndSetsWatermark(t *testing.T) {
	userRepo := newMemoryUserRepo(connectedUser("u1"))
	emailRepo := newMemoryEmailRepo()
	session := &fakeSession{fullScope: true, pages: [][]string{{"a"}}}
	provider := &fakeProvider{session: session}

	s := newTestSyncService(userRepo, emailRepo, provider)
	s.Start()
	defer s.Stop()

	job, err := s.TriggerFetch("u1", true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return jobStatus(s, job.ID) == JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	user, err := userRepo.FindByID("u1")
	require.NoError(t, err)
	assert.NotNil(t, user.LastFullSyncAt)

	// Unread pass, every query pass and every label partition issue at
	// least one list call each.
	session.mu.Lock()
	listCalls := len(session.listCalls)
	session.mu.Unlock()
	assert.GreaterOrEqual(t, listCalls, 1+len(fullSyncQueryPasses)+len(fullSyncPartitions))
}

func TestPushPhaseAdvancesWatermark(t *testing.T) {
	user := connectedUser("u1")
	userRepo := newMemoryUserRepo(user)
	emailRepo := newMemoryEmailRepo()

	modified := &emaildomain.Email{
		ID:                "e1",
		AccountID:         "u1",
		ProviderMessageID: "msg-1",
		IsRead:            true,
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, emailRepo.Upsert(modified))

	s := newTestSyncService(userRepo, emailRepo, &fakeProvider{})
	session := &fakeSession{fullScope: true}

	pushed, err := s.pushLocalChanges(context.Background(), session, user)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed)
	assert.Equal(t, modified.UpdatedAt, user.LastPushCursor)

	// Nothing newer than the watermark means nothing to push next cycle.
	pushed, err = s.pushLocalChanges(context.Background(), session, user)
	require.NoError(t, err)
	assert.Equal(t, 0, pushed)
}

func TestPushPhaseInsufficientScopeCountsAsHandled(t *testing.T) {
	user := connectedUser("u1")
	userRepo := newMemoryUserRepo(user)
	emailRepo := newMemoryEmailRepo()

	require.NoError(t, emailRepo.Upsert(&emaildomain.Email{
		ID:                "e1",
		AccountID:         "u1",
		ProviderMessageID: "msg-1",
		UpdatedAt:         time.Now(),
	}))

	s := newTestSyncService(userRepo, emailRepo, &fakeProvider{})
	// fullScope false makes CanModifyRemote report no modify grant.
	session := &fakeSession{fullScope: false}

	pushed, err := s.pushLocalChanges(context.Background(), session, user)
	require.NoError(t, err)
	assert.Equal(t, 1, pushed, "scope-limited push is handled, not failed")
	assert.False(t, user.LastPushCursor.IsZero(), "watermark still advances")
}
