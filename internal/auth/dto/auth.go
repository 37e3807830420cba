package dto

import (
	authdomain "mailsift-backend/internal/auth/domain"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// RefreshTokenRequest represents a token refresh request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse represents authentication tokens
type TokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         *authdomain.User `json:"user"`
}

// ConnectMailboxRequest carries the OAuth tokens granted for the mailbox.
type ConnectMailboxRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
}

// SyncIntervalRequest updates how often the account is synced, in minutes.
// Zero disables scheduled sync for the account.
type SyncIntervalRequest struct {
	Minutes int `json:"minutes" binding:"min=0"`
}
