package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	authdomain "mailsift-backend/internal/auth/domain"
	authrepo "mailsift-backend/internal/auth/repository"
	emaildomain "mailsift-backend/internal/email/domain"
	"mailsift-backend/internal/email/repository"
	"mailsift-backend/pkg/config"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// Per-account sync intervals are clamped to this range regardless of
	// stored configuration. Zero stays zero (manual-only).
	minSyncIntervalMin = 1
	maxSyncIntervalMin = 60

	schedulerTick = 1 * time.Minute

	pushBatchSize = 20
)

// JobStatus is the lifecycle state of a queued sync job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// SyncJob is the handle returned by TriggerFetch. Manual syncs run on a
// background worker; callers poll the job by id. Handles handed out are
// point-in-time copies, safe to read and marshal while the worker advances
// the underlying job.
type SyncJob struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	FullSync  bool       `json:"full_sync"`
	Status    JobStatus  `json:"status"`
	Count     int        `json:"count"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// SyncStatus is the per-account view exposed to handlers.
type SyncStatus struct {
	LastSync     *time.Time `json:"last_sync"`
	LastFullSync *time.Time `json:"last_full_sync"`
	EmailCount   int64      `json:"email_count"`
	InProgress   bool       `json:"in_progress"`
}

// fullSyncQueryPasses are the exhaustive query sweeps of a full historical
// sync. Deliberately overlapping: the provider has no single reliable
// "everything" enumeration, so coverage comes from redundant passes and the
// upsert invariant makes the overlap free of duplicates.
var fullSyncQueryPasses = []string{"", "in:anywhere", "is:unread", "is:read"}

// fullSyncPartitions are the label partitions swept after the query passes,
// catching mail excluded from general queries.
var fullSyncPartitions = []string{
	"CATEGORY_PERSONAL",
	"CATEGORY_SOCIAL",
	"CATEGORY_PROMOTIONS",
	"CATEGORY_UPDATES",
	"CATEGORY_FORUMS",
	"SENT",
	"IMPORTANT",
	"CHAT",
	"SPAM",
	"TRASH",
	"DRAFT",
	"STARRED",
}

// SyncService owns the background sync lifecycle: the timer-driven
// scheduler, the manual-trigger job queue, the global cycle exclusion flag
// and the per-account push watermarks. Constructed once per process.
type SyncService struct {
	userRepo  authrepo.UserRepository
	emailRepo repository.EmailRepository
	fetcher   *Fetcher
	provider  emaildomain.MailProvider
	cfg       *config.Config

	mu           sync.Mutex
	cycleRunning bool
	lastSyncTime map[string]time.Time
	pushCursor   map[string]time.Time

	jobsMu   sync.RWMutex
	jobs     map[string]*SyncJob
	jobQueue chan *SyncJob

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// partitionDelay paces the label sweeps of a full sync; tests set it
	// to zero.
	partitionDelay time.Duration
}

// NewSyncService creates the sync scheduler. Call Start to run it.
func NewSyncService(userRepo authrepo.UserRepository, emailRepo repository.EmailRepository, fetcher *Fetcher, provider emaildomain.MailProvider, cfg *config.Config) *SyncService {
	return &SyncService{
		userRepo:       userRepo,
		emailRepo:      emailRepo,
		fetcher:        fetcher,
		provider:       provider,
		cfg:            cfg,
		lastSyncTime:   make(map[string]time.Time),
		pushCursor:     make(map[string]time.Time),
		jobs:           make(map[string]*SyncJob),
		jobQueue:       make(chan *SyncJob, 100),
		stopChan:       make(chan struct{}),
		partitionDelay: 1 * time.Second,
	}
}

// Start launches the scheduler loop and the manual-job worker.
func (s *SyncService) Start() {
	log.Printf("[SyncService] starting (default interval: %d minutes)", s.cfg.SyncIntervalMin)

	s.wg.Add(2)
	go s.scheduleLoop()
	go s.jobWorker()
}

// Stop shuts the scheduler down and waits for in-flight work to finish.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	log.Println("[SyncService] stopped")
}

func (s *SyncService) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runScheduledCycle(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// tryBeginCycle acquires the process-wide cycle flag. Only one sync cycle
// runs at a time.
func (s *SyncService) tryBeginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycleRunning {
		return false
	}
	s.cycleRunning = true
	return true
}

func (s *SyncService) endCycle() {
	s.mu.Lock()
	s.cycleRunning = false
	s.mu.Unlock()
}

// runScheduledCycle syncs every connected account whose interval has
// elapsed. A trigger arriving while a cycle is in flight is skipped, not
// queued: cycles can be more frequent than their own duration under load,
// and re-entrant scheduling would compound backlog.
func (s *SyncService) runScheduledCycle(ctx context.Context) {
	if !s.tryBeginCycle() {
		log.Println("[SyncService] sync already in progress, skipping scheduled cycle")
		return
	}
	defer s.endCycle()

	users, err := s.userRepo.FindConnected()
	if err != nil {
		log.Printf("[SyncService] error finding accounts to sync: %v", err)
		return
	}

	now := time.Now()
	for _, user := range users {
		if user.SyncInterval == 0 {
			continue // manual-only
		}
		interval := time.Duration(ClampSyncInterval(user.SyncInterval)) * time.Minute
		if now.Sub(s.lastSync(user.ID)) < interval {
			continue
		}

		if _, err := s.syncAccount(ctx, user, false); err != nil {
			// One account's failure never aborts another's processing.
			log.Printf("[SyncService] sync failed for account %s: %v", user.ID, err)
		}
		s.setLastSync(user.ID, time.Now())
	}
}

// TriggerFetch enqueues a manual sync for one account and returns a job
// handle. The job respects the same global exclusion as scheduled cycles:
// the worker waits for the flag instead of running concurrently.
func (s *SyncService) TriggerFetch(accountID string, fullSync bool) (*SyncJob, error) {
	user, err := s.userRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	if user.AccessToken == "" {
		return nil, fmt.Errorf("account %s has no connected mailbox", accountID)
	}

	job := &SyncJob{
		ID:        uuid.New().String(),
		AccountID: accountID,
		FullSync:  fullSync,
		Status:    JobQueued,
		CreatedAt: time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	select {
	case s.jobQueue <- job:
		snapshot := *job
		return &snapshot, nil
	default:
		s.jobsMu.Lock()
		delete(s.jobs, job.ID)
		s.jobsMu.Unlock()
		return nil, emaildomain.ErrSyncInProgress
	}
}

// GetJob returns a copy of a previously enqueued job by id, nil when
// unknown. The worker keeps mutating the stored job, so callers only ever
// see a snapshot taken under the lock.
func (s *SyncService) GetJob(id string) *SyncJob {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// GetSyncStatus reports sync state for one account.
func (s *SyncService) GetSyncStatus(accountID string) (*SyncStatus, error) {
	user, err := s.userRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}

	count, err := s.emailRepo.CountByAccount(accountID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	inProgress := s.cycleRunning
	s.mu.Unlock()

	return &SyncStatus{
		LastSync:     user.LastEmailSyncAt,
		LastFullSync: user.LastFullSyncAt,
		EmailCount:   count,
		InProgress:   inProgress,
	}, nil
}

func (s *SyncService) jobWorker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.jobQueue:
			s.runJob(job)
		case <-s.stopChan:
			return
		}
	}
}

func (s *SyncService) runJob(job *SyncJob) {
	// Wait for the cycle flag rather than running alongside a scheduled
	// cycle; manual jobs are rare enough that waiting beats dropping.
	for !s.tryBeginCycle() {
		select {
		case <-s.stopChan:
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
	defer s.endCycle()

	s.setJobStatus(job, JobRunning, 0, nil)

	user, err := s.userRepo.FindByID(job.AccountID)
	if err == nil && user == nil {
		err = fmt.Errorf("account %s not found", job.AccountID)
	}

	var count int
	if err == nil {
		count, err = s.syncAccount(context.Background(), user, job.FullSync)
		s.setLastSync(job.AccountID, time.Now())
	}

	if err != nil {
		s.setJobStatus(job, JobFailed, count, err)
		log.Printf("[SyncService] job %s failed: %v", job.ID, err)
		return
	}
	s.setJobStatus(job, JobCompleted, count, nil)
}

func (s *SyncService) setJobStatus(job *SyncJob, status JobStatus, count int, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job.Status = status
	job.Count = count
	if err != nil {
		job.Error = err.Error()
	}
	if status == JobCompleted || status == JobFailed {
		now := time.Now()
		job.DoneAt = &now
	}
}

// syncAccount runs one bidirectional sync: pull changes from the mailbox,
// then push local read-state changes back. Push failures never fail the
// cycle; only pull-level scope errors propagate.
func (s *SyncService) syncAccount(ctx context.Context, user *authdomain.User, fullSync bool) (int, error) {
	log.Printf("[SyncService] syncing account %s (full: %v)", user.Email, fullSync)

	session, err := s.provider.Session(ctx, user.AccessToken, user.RefreshToken, s.tokenUpdateCallback(user.ID))
	if err != nil {
		return 0, fmt.Errorf("open mailbox session: %w", err)
	}

	if fullSync {
		// Reset the pull watermark so the incremental date filter drops out
		// and history is re-enumerated from the beginning of time.
		user.LastEmailSyncAt = nil
	}

	count, pullErr := s.pullFromMailbox(ctx, session, user, fullSync)

	if pushed, err := s.pushLocalChanges(ctx, session, user); err != nil {
		log.Printf("[SyncService] push phase failed for %s: %v", user.Email, err)
	} else if pushed > 0 {
		log.Printf("[SyncService] pushed %d local changes for %s", pushed, user.Email)
	}

	now := time.Now()
	user.LastEmailSyncAt = &now
	if fullSync && pullErr == nil {
		user.LastFullSyncAt = &now
	}
	if err := s.userRepo.Update(user); err != nil {
		log.Printf("[SyncService] failed to persist sync state for %s: %v", user.Email, err)
	}

	if pullErr != nil {
		return count, pullErr
	}
	log.Printf("[SyncService] completed bidirectional sync for %s: %d emails processed", user.Email, count)
	return count, nil
}

// pullFromMailbox fetches unread mail first (cheap, high-value), then, for
// a full sync, sweeps every partition exhaustively. The sweeps overlap by
// design; idempotent upserts absorb the redundancy.
func (s *SyncService) pullFromMailbox(ctx context.Context, session emaildomain.MailboxSession, user *authdomain.User, fullSync bool) (int, error) {
	incrementalQuery := ""
	if !fullSync && user.LastEmailSyncAt != nil {
		incrementalQuery = " after:" + user.LastEmailSyncAt.Format("2006/01/02")
	}

	total, err := s.fetcher.FetchAndProcess(ctx, session, user.ID, FetchOptions{
		MaxResults: defaultMaxResults,
		LabelIDs:   []string{"INBOX"},
		Query:      "is:unread" + incrementalQuery,
	})
	if err != nil {
		if emaildomain.IsScopeError(err) {
			return total, err
		}
		log.Printf("[SyncService] unread fetch failed for %s: %v", user.Email, err)
	}

	if !fullSync {
		return total, nil
	}

	for _, query := range fullSyncQueryPasses {
		n, err := s.fetcher.FetchAndProcess(ctx, session, user.ID, FetchOptions{
			Query:     query,
			FetchAll:  true,
			FinalPass: true,
		})
		total += n
		if err != nil {
			if emaildomain.IsScopeError(err) {
				return total, err
			}
			log.Printf("[SyncService] query pass %q failed for %s: %v", query, user.Email, err)
		}
	}

	for _, label := range fullSyncPartitions {
		n, err := s.fetcher.FetchAndProcess(ctx, session, user.ID, FetchOptions{
			LabelIDs: []string{label},
			FetchAll: true,
		})
		total += n
		if err != nil {
			if emaildomain.IsScopeError(err) {
				return total, err
			}
			log.Printf("[SyncService] partition %s failed for %s: %v", label, user.Email, err)
		}

		if s.partitionDelay > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(s.partitionDelay):
			}
		}
	}

	return total, nil
}

// pushLocalChanges propagates read-state changes made locally since the
// last push watermark. Best-effort throughout: a failed remote update for
// one record does not block others, and insufficient scope counts every
// record as handled rather than failing the cycle.
func (s *SyncService) pushLocalChanges(ctx context.Context, session emaildomain.MailboxSession, user *authdomain.User) (int, error) {
	watermark := s.loadPushCursor(user)

	modified, err := s.emailRepo.ModifiedSince(user.ID, watermark, 0)
	if err != nil {
		return 0, err
	}
	if len(modified) == 0 {
		return 0, nil
	}

	canModify := session.CanModifyRemote(ctx)
	if !canModify {
		log.Printf("[SyncService] insufficient scope to push changes for %s, skipping", user.Email)
	}

	pushed := 0
	latest := watermark

	for start := 0; start < len(modified); start += pushBatchSize {
		end := start + pushBatchSize
		if end > len(modified) {
			end = len(modified)
		}
		batch := modified[start:end]

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, email := range batch {
			if email.UpdatedAt.After(latest) {
				latest = email.UpdatedAt
			}
			if !canModify {
				pushed++ // handled, not failed
				continue
			}

			wg.Add(1)
			go func(e *emaildomain.Email) {
				defer wg.Done()
				if err := session.SetReadState(ctx, e.ProviderMessageID, e.IsRead); err != nil {
					log.Printf("[SyncService] failed to push read state for %s: %v", e.ProviderMessageID, err)
					return
				}
				mu.Lock()
				pushed++
				mu.Unlock()
			}(email)
		}
		wg.Wait()
	}

	// Advance the watermark past everything considered this cycle. A crash
	// before this point re-pushes the same changes next cycle, which the
	// remote end treats as a no-op.
	s.storePushCursor(user, latest)

	return pushed, nil
}

func (s *SyncService) loadPushCursor(user *authdomain.User) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pushCursor[user.ID]; ok {
		return t
	}
	return user.LastPushCursor
}

func (s *SyncService) storePushCursor(user *authdomain.User, t time.Time) {
	s.mu.Lock()
	s.pushCursor[user.ID] = t
	s.mu.Unlock()
	user.LastPushCursor = t
}

func (s *SyncService) lastSync(accountID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncTime[accountID]
}

func (s *SyncService) setLastSync(accountID string, t time.Time) {
	s.mu.Lock()
	s.lastSyncTime[accountID] = t
	s.mu.Unlock()
}

func (s *SyncService) tokenUpdateCallback(accountID string) emaildomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		user, err := s.userRepo.FindByID(accountID)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}

		user.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			user.RefreshToken = token.RefreshToken
		}
		user.TokenExpiry = token.Expiry

		return s.userRepo.Update(user)
	}
}

// ClampSyncInterval normalizes a sync interval in minutes. Zero means
// manual-only and is preserved; anything else is clamped to [1, 60].
func ClampSyncInterval(minutes int) int {
	if minutes == 0 {
		return 0
	}
	if minutes < minSyncIntervalMin {
		return minSyncIntervalMin
	}
	if minutes > maxSyncIntervalMin {
		return maxSyncIntervalMin
	}
	return minutes
}
