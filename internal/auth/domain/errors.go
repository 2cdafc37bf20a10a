package domain

import "errors"

var (
	ErrNotAuthenticated = errors.New("no authenticated session")
	ErrProfileNotFound  = errors.New("user profile not found")

	ErrCredentialsUnverified = errors.New("credentials could not be verified")
)
