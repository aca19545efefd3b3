package model

import "errors"

// Sentinel errors shared across repositories and services.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrTemplateNotFound is returned when an interpretation template
	// cannot be resolved by id or custom key.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrUserNotFound is returned when a profile row does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrItemNotClaimable is returned when a queue item cannot move to
	// processing because another worker already claimed it or it is in a
	// terminal status.
	ErrItemNotClaimable = errors.New("queue item is not claimable")

	// ErrInvalidInput is returned on malformed request data.
	ErrInvalidInput = errors.New("invalid input data")
)
