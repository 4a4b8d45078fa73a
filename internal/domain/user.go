package domain

import "time"

// User represents an authenticated user with a credit balance. One credit
// pays for one file at indexing admission time.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	Name      string    `json:"name"       db:"name"`
	AvatarURL string    `json:"avatar_url" db:"avatar_url"`
	Credits   int       `json:"credits"    db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreditTransaction records one credit purchase received via the payment
// webhook.
type CreditTransaction struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Credits   int       `json:"credits"    db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
