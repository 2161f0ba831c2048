// Package domain holds the core types of the authentication service.
package domain

import (
	"time"
)

// User represents a registered account.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PhoneNumber       string    `json:"phoneNumber"`
	PasswordHash      string    `json:"-"`
	FullName          string    `json:"fullName"`
	Role              string    `json:"userType"`
	PreferredLanguage string    `json:"preferredLanguage"`
	IsActive          bool      `json:"isActive"`
	IsVerified        bool      `json:"isVerified"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"-"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
