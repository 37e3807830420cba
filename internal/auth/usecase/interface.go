package usecase

import (
	authdomain "mailsift-backend/internal/auth/domain"
	authdto "mailsift-backend/internal/auth/dto"
)

// AuthUsecase defines the interface for authentication business logic
type AuthUsecase interface {
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*authdomain.User, error)
	ConnectMailbox(userID string, req *authdto.ConnectMailboxRequest) error
	UpdateSyncInterval(userID string, minutes int) (*authdomain.User, error)
}
