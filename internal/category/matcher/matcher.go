package matcher

import (
	"context"
	"strings"

	"mailsift-backend/internal/category/repository"
	emaildomain "mailsift-backend/internal/email/domain"
)

// KeywordMatcher assigns categories to incoming mail by case-insensitive
// keyword containment. It implements the ingestion-time category gateway.
type KeywordMatcher struct {
	categoryRepo repository.CategoryRepository
}

func NewKeywordMatcher(categoryRepo repository.CategoryRepository) *KeywordMatcher {
	return &KeywordMatcher{categoryRepo: categoryRepo}
}

// Categorize returns the ids of every category whose keywords appear in the
// email. Metadata-only records carry a placeholder body, so those are
// matched on subject and sender alone.
func (m *KeywordMatcher) Categorize(ctx context.Context, accountID string, email *emaildomain.Email) ([]string, error) {
	categories, err := m.categoryRepo.FindByUser(accountID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}

	haystack := strings.ToLower(email.Subject) + "\n" + strings.ToLower(email.From.Address)
	if !email.MetadataOnly {
		haystack += "\n" + strings.ToLower(email.BodyText)
	}

	var matched []string
	for _, category := range categories {
		for _, keyword := range category.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(haystack, keyword) {
				matched = append(matched, category.ID)
				break
			}
		}
	}

	return matched, nil
}
