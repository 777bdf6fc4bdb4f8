package storage

import "errors"

var (
	// ErrAccountNotFound is returned when an account does not exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientBalance is returned when a debit would make the balance negative
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTierChanged is returned when a refresh raced with a plan change
	ErrTierChanged = errors.New("account tier changed concurrently")

	// ErrAPIKeyNotFound is returned when an API key is not found
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrDuplicateEmail is returned when an account with the same email exists
	ErrDuplicateEmail = errors.New("account email already exists")
)
