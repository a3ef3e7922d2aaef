package payam_errors

import (
	"errors"
)

// Common errors
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateHandle     = errors.New("phone number already registered")
	ErrDuplicateMembership = errors.New("already a member")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrEmptyContent        = errors.New("message content is empty")
	ErrContentTooLong      = errors.New("message content too long")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyExists       = errors.New("already exists")
	ErrTooLarge            = errors.New("file too large")
	ErrRateLimited         = errors.New("rate limited")
)
