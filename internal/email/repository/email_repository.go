package repository

import (
	"errors"
	"time"

	emaildomain "mailsift-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// existenceChunkSize bounds the number of ids per existence query; backing
// stores limit IN-clause sizes, so larger inputs are split.
const existenceChunkSize = 1000

// emailRepository implements EmailRepository interface
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{
		db: db,
	}
}

// refreshedOnUpsert are the columns a re-ingestion of the same provider
// message may overwrite. is_read and categories are user-owned after first
// ingestion and deliberately absent.
var refreshedOnUpsert = []string{
	"thread_id",
	"from_name",
	"from_address",
	"recipients",
	"subject",
	"body_text",
	"body_html",
	"attachments",
	"received_at",
	"metadata_only",
	"updated_at",
}

func (r *emailRepository) Upsert(email *emaildomain.Email) error {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "provider_message_id"},
		},
		DoUpdates: clause.AssignmentColumns(refreshedOnUpsert),
	}).Create(email).Error

	// A concurrent upsert for the same pair may still trip the unique index
	// in stores without native conflict targets. The record exists with the
	// same identity, so the race is not an error.
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *emailRepository) ExistingProviderIDs(accountID string, providerIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(providerIDs))

	for start := 0; start < len(providerIDs); start += existenceChunkSize {
		end := start + existenceChunkSize
		if end > len(providerIDs) {
			end = len(providerIDs)
		}

		var found []string
		err := r.db.Model(&emaildomain.Email{}).
			Where("account_id = ? AND provider_message_id IN ?", accountID, providerIDs[start:end]).
			Pluck("provider_message_id", &found).Error
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}

	return existing, nil
}

func (r *emailRepository) ModifiedSince(accountID string, since time.Time, limit int) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	q := r.db.Where("account_id = ? AND updated_at > ?", accountID, since).
		Order("updated_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) CountByAccount(accountID string) (int64, error) {
	var count int64
	err := r.db.Model(&emaildomain.Email{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

func (r *emailRepository) GetByID(accountID, id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("account_id = ? AND id = ?", accountID, id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ListByAccount(accountID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	var total int64
	if err := r.db.Model(&emaildomain.Email{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var emails []*emaildomain.Email
	err := r.db.Where("account_id = ?", accountID).
		Order("received_at desc").
		Limit(limit).Offset(offset).
		Find(&emails).Error
	if err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

func (r *emailRepository) SetReadState(accountID, id string, read bool) error {
	return r.db.Model(&emaildomain.Email{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Updates(map[string]interface{}{
			"is_read":    read,
			"updated_at": time.Now(),
		}).Error
}

func (r *emailRepository) SetCategories(accountID, id string, categories []string) error {
	email, err := r.GetByID(accountID, id)
	if err != nil {
		return err
	}
	if email == nil {
		return gorm.ErrRecordNotFound
	}
	email.Categories = categories
	email.UpdatedAt = time.Now()
	return r.db.Save(email).Error
}
