package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUserNotFound        = errors.New("user not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrInvalidRepoURL      = errors.New("invalid repository url")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)
