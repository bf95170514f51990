package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrAPIKeyAlreadyExists indicates that the exchange API key is bound to another user
	ErrAPIKeyAlreadyExists = errors.New("api key already exists")

	// ErrSessionNotFound indicates that session was not found by token hash
	ErrSessionNotFound = errors.New("session not found")

	// ErrWalletNotFound indicates that owner has no wallet
	ErrWalletNotFound = errors.New("wallet not found")
)
