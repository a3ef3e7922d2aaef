package message

import (
	"strings"
	"unicode/utf8"

	payam_errors "payam-chat/pkg/errors"
)

// MaxContentLength is the limit for text messages, counted in characters.
const MaxContentLength = 1000

// PrepareContent validates the body of a new message and returns what is stored.
// Attachment messages ignore the supplied text and store the type label.
func PrepareContent(t Type, content string, attachment *Attachment) (string, error) {
	if t.IsAttachment() {
		if attachment == nil || attachment.Path == "" {
			return "", payam_errors.ErrInvalidInput
		}
		return t.Label(), nil
	}
	if t != TypeText {
		return "", payam_errors.ErrInvalidInput
	}
	if attachment != nil {
		return "", payam_errors.ErrInvalidInput
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", payam_errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", payam_errors.ErrContentTooLong
	}
	return trimmed, nil
}

// Preview shortens content for conversation listings.
func Preview(content string, max int) string {
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max]) + "..."
}
