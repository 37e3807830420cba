package repository

import (
	categorydomain "mailsift-backend/internal/category/domain"
)

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(category *categorydomain.Category) error
	FindByUser(userID string) ([]*categorydomain.Category, error)
	FindByID(userID, id string) (*categorydomain.Category, error)
	Update(category *categorydomain.Category) error
	Delete(userID, id string) error
}
