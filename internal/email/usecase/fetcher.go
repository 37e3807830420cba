package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	emaildomain "mailsift-backend/internal/email/domain"
	"mailsift-backend/internal/email/repository"
)

const (
	// Page ceilings guarantee termination even under FetchAll with a
	// misbehaving cursor.
	maxPages          = 500
	maxPagesFinalPass = 1000

	listPageSize         = 500 // provider-imposed ceiling per list call
	conservativePageSize = 100

	defaultMaxResults = 100
)

// safeLabels are the system labels that work under metadata-only scope.
// Custom labels and query filters are dropped to this subset when the
// capability probe reports restricted access.
var safeLabels = map[string]bool{
	"INBOX":  true,
	"SPAM":   true,
	"TRASH":  true,
	"UNREAD": true,
	"SENT":   true,
}

// FetchOptions parameterizes one fetch-and-process run.
type FetchOptions struct {
	MaxResults int
	LabelIDs   []string
	Query      string
	// FetchAll keeps paging until the cursor is exhausted, ignoring
	// MaxResults. The page ceiling still applies.
	FetchAll bool
	// FinalPass raises the page ceiling for the exhaustive passes of a
	// full historical sync.
	FinalPass bool
}

// Fetcher drives pagination, existence filtering and bounded-parallel
// ingestion of new messages for one account at a time.
type Fetcher struct {
	emailRepo repository.EmailRepository
	gateway   emaildomain.CategoryGateway

	// Inter-batch throttle delays; overridable for tests.
	batchDelay      time.Duration
	batchDelayLarge time.Duration
}

// NewFetcher creates a new Fetcher.
func NewFetcher(emailRepo repository.EmailRepository, gateway emaildomain.CategoryGateway) *Fetcher {
	return &Fetcher{
		emailRepo:       emailRepo,
		gateway:         gateway,
		batchDelay:      500 * time.Millisecond,
		batchDelayLarge: 200 * time.Millisecond,
	}
}

// adaptiveBatchSize picks the per-batch concurrency for a given total
// volume. Larger volumes get smaller batches to bound worst-case memory and
// time per batch; small volumes get larger batches to save round trips.
func adaptiveBatchSize(total int) int {
	switch {
	case total > 1000:
		return 15
	case total > 500:
		return 20
	case total <= 50:
		return 30
	default:
		return 25
	}
}

// FetchAndProcess pages through the remote mailbox, ingesting messages not
// yet stored for the account. It returns the number ingested. A returned
// error never discards the accumulated count; callers decide whether a
// *ScopeError warrants prompting the user to reconnect.
func (f *Fetcher) FetchAndProcess(ctx context.Context, session emaildomain.MailboxSession, accountID string, opts FetchOptions) (int, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	pageCeiling := maxPages
	if opts.FinalPass {
		pageCeiling = maxPagesFinalPass
	}

	// Capability probe, once per fetch session. Restricted access drops
	// query and non-safe label filters proactively instead of failing on
	// unsupported parameter combinations later.
	fullScope := session.HasFullScope(ctx)
	query := opts.Query
	labelIDs := opts.LabelIDs
	if !fullScope {
		query = ""
		labelIDs = filterSafeLabels(labelIDs)
		log.Printf("[Fetcher] restricted access for account %s, dropping custom filters", accountID)
	}

	var (
		processed int
		pageToken string
		pages     int
	)

	for {
		pages++
		if pages > pageCeiling {
			log.Printf("[Fetcher] reached page ceiling (%d) for account %s", pageCeiling, accountID)
			break
		}

		page, err := f.listPage(ctx, session, emaildomain.ListOptions{
			LabelIDs:  labelIDs,
			Query:     query,
			PageToken: pageToken,
			PageSize:  listPageSize,
		})
		if err != nil {
			return processed, err
		}

		ids := page.IDs
		if len(ids) == 0 {
			break
		}

		if !opts.FetchAll && processed+len(ids) > maxResults {
			ids = ids[:maxResults-processed]
		}

		n, err := f.processPage(ctx, session, accountID, ids, int(page.SizeEstimate))
		processed += n
		if err != nil {
			return processed, err
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
		if !opts.FetchAll && processed >= maxResults {
			break
		}
	}

	log.Printf("[Fetcher] account %s: processed %d emails over %d pages", accountID, processed, pages)
	return processed, nil
}

// listPage lists one page of ids. A scope failure gets a single
// conservative retry (small page, basic filters) before surfacing; this is
// the correctness backstop behind the proactive probe.
func (f *Fetcher) listPage(ctx context.Context, session emaildomain.MailboxSession, opts emaildomain.ListOptions) (*emaildomain.ListPage, error) {
	page, err := session.ListMessageIDs(ctx, opts)
	if err == nil {
		return page, nil
	}
	if !emaildomain.IsScopeError(err) {
		return nil, err
	}

	log.Printf("[Fetcher] list hit scope limitation, retrying with conservative parameters")
	basic := emaildomain.ListOptions{
		PageToken: opts.PageToken,
		PageSize:  conservativePageSize,
	}
	for _, l := range opts.LabelIDs {
		if l == "INBOX" {
			basic.LabelIDs = []string{"INBOX"}
			break
		}
	}
	return session.ListMessageIDs(ctx, basic)
}

// batchSizeFor sizes a page's parallel batches. The provider's estimate of
// total matches, when it exceeds the page itself, stands in for the sync's
// volume so large syncs start with small batches from the first page on.
func batchSizeFor(pageNew, totalEstimate int) int {
	if totalEstimate > pageNew {
		return adaptiveBatchSize(totalEstimate)
	}
	return adaptiveBatchSize(pageNew)
}

// processPage filters out already-stored ids, then ingests the remainder in
// adaptively-sized parallel batches. Per-message failures are isolated;
// only successes count.
func (f *Fetcher) processPage(ctx context.Context, session emaildomain.MailboxSession, accountID string, ids []string, totalEstimate int) (int, error) {
	existing, err := f.emailRepo.ExistingProviderIDs(accountID, ids)
	if err != nil {
		return 0, err
	}

	newIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}
	if len(newIDs) == 0 {
		return 0, nil
	}

	batchSize := batchSizeFor(len(newIDs), totalEstimate)
	totalBatches := (len(newIDs) + batchSize - 1) / batchSize
	log.Printf("[Fetcher] account %s: %d existing, ingesting %d new in batches of %d", accountID, len(existing), len(newIDs), batchSize)

	processed := 0
	for start := 0; start < len(newIDs); start += batchSize {
		end := start + batchSize
		if end > len(newIDs) {
			end = len(newIDs)
		}
		batch := newIDs[start:end]

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for _, id := range batch {
			wg.Add(1)
			go func(messageID string) {
				defer wg.Done()
				if err := f.processMessage(ctx, session, accountID, messageID); err != nil {
					log.Printf("[Fetcher] message %s failed: %v", messageID, err)
					return
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}(id)
		}
		wg.Wait()
		processed += succeeded

		// Throttle between batches; once paging has reached steady state
		// the delay shrinks to favor throughput.
		if end < len(newIDs) {
			delay := f.batchDelay
			if totalBatches > 100 {
				delay = f.batchDelayLarge
			}
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return processed, nil
}

// processMessage fetches, normalizes, categorizes and upserts one message.
// A full-format scope refusal falls back to a metadata-only fetch; the
// record is then stored with MetadataOnly set, which is a success.
func (f *Fetcher) processMessage(ctx context.Context, session emaildomain.MailboxSession, accountID, messageID string) error {
	raw, err := session.GetMessage(ctx, messageID, emaildomain.FormatFull)
	if err != nil {
		if !emaildomain.IsScopeError(err) {
			return err
		}
		raw, err = session.GetMessage(ctx, messageID, emaildomain.FormatMetadata)
		if err != nil {
			return err
		}
	}

	email := Normalize(raw)
	email.AccountID = accountID

	if f.gateway != nil {
		categories, err := f.gateway.Categorize(ctx, accountID, email)
		if err != nil {
			// Categorization failure degrades to an uncategorized record.
			log.Printf("[Fetcher] categorize %s failed: %v", messageID, err)
		} else {
			email.Categories = categories
		}
	}

	return f.emailRepo.Upsert(email)
}

func filterSafeLabels(labelIDs []string) []string {
	var filtered []string
	for _, l := range labelIDs {
		if safeLabels[l] {
			filtered = append(filtered, l)
		}
	}
	return filtered
}
