package repository

import (
	"time"

	categorydomain "mailsift-backend/internal/category/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// categoryRepository implements CategoryRepository interface
type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new instance of categoryRepository
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{
		db: db,
	}
}

func (r *categoryRepository) Create(category *categorydomain.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	category.CreatedAt = time.Now()
	category.UpdatedAt = time.Now()

	if category.Keywords == nil {
		category.Keywords = []string{}
	}

	return r.db.Create(category).Error
}

func (r *categoryRepository) FindByUser(userID string) ([]*categorydomain.Category, error) {
	var categories []*categorydomain.Category
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) FindByID(userID, id string) (*categorydomain.Category, error) {
	var category categorydomain.Category
	err := r.db.Where("user_id = ? AND id = ?", userID, id).First(&category).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) Update(category *categorydomain.Category) error {
	category.UpdatedAt = time.Now()

	if category.Keywords == nil {
		category.Keywords = []string{}
	}

	return r.db.Save(category).Error
}

func (r *categoryRepository) Delete(userID, id string) error {
	return r.db.Where("user_id = ? AND id = ?", userID, id).Delete(&categorydomain.Category{}).Error
}
