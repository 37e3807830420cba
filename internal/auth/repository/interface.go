package repository

import (
	authdomain "mailsift-backend/internal/auth/domain"
)

// UserRepository defines the interface for account persistence.
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByEmail(email string) (*authdomain.User, error)
	FindByID(id string) (*authdomain.User, error)
	// FindConnected returns accounts with mail provider credentials, the
	// population the scheduler considers each cycle.
	FindConnected() ([]*authdomain.User, error)
	Update(user *authdomain.User) error

	SaveRefreshToken(token *authdomain.RefreshToken) error
	FindRefreshToken(token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(token string) error
}
