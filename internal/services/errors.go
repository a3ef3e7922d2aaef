package services

import (
	"errors"
	"net/http"

	payam_errors "payam-chat/pkg/errors"
)

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, payam_errors.ErrInvalidInput),
		errors.Is(err, payam_errors.ErrEmptyContent),
		errors.Is(err, payam_errors.ErrContentTooLong),
		errors.Is(err, payam_errors.ErrInvalidParticipants):
		return http.StatusBadRequest
	case errors.Is(err, payam_errors.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, payam_errors.ErrUnauthorized), errors.Is(err, payam_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, payam_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payam_errors.ErrDuplicateHandle),
		errors.Is(err, payam_errors.ErrDuplicateMembership),
		errors.Is(err, payam_errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, payam_errors.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, payam_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine-readable code placed in error responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, payam_errors.ErrEmptyContent):
		return "EMPTY_CONTENT"
	case errors.Is(err, payam_errors.ErrContentTooLong):
		return "CONTENT_TOO_LONG"
	case errors.Is(err, payam_errors.ErrInvalidParticipants):
		return "INVALID_PARTICIPANTS"
	case errors.Is(err, payam_errors.ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, payam_errors.ErrInvalidCredential):
		return "INVALID_CREDENTIAL"
	case errors.Is(err, payam_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, payam_errors.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, payam_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, payam_errors.ErrDuplicateHandle):
		return "DUPLICATE_HANDLE"
	case errors.Is(err, payam_errors.ErrDuplicateMembership):
		return "DUPLICATE_MEMBERSHIP"
	case errors.Is(err, payam_errors.ErrAlreadyExists):
		return "ALREADY_EXISTS"
	case errors.Is(err, payam_errors.ErrTooLarge):
		return "TOO_LARGE"
	case errors.Is(err, payam_errors.ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}
