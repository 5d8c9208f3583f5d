package models

import "time"

// Account is a dashboard login configured by the operators.
type Account struct {
	Email        string `yaml:"email" json:"email"`
	Name         string `yaml:"name" json:"name,omitempty"`
	PasswordHash string `yaml:"password_hash" json:"-"` // не отдаём наружу
	RoleID       int    `yaml:"role_id" json:"role_id"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Session is what a successful sign-in produces. AccessToken authorizes both
// gateway calls and the upstream task API.
type Session struct {
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	RoleID      int       `json:"role_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
