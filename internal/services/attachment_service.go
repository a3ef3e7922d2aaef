package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"payam-chat/internal/domain/message"
	payam_errors "payam-chat/pkg/errors"
	"payam-chat/pkg/logger"
)

const (
	DefaultMaxUploadBytes int64 = 10 << 20
	maxStoredNameLength         = 100
)

// BlobStore is the object storage behind attachments. storage.Client
// implements it over S3.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, size int64, body io.Reader) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type AttachmentService struct {
	store    BlobStore
	maxBytes int64
	log      *logger.Logger
}

func NewAttachmentService(store BlobStore, maxBytes int64, log *logger.Logger) *AttachmentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &AttachmentService{store: store, maxBytes: maxBytes, log: log}
}

func (s *AttachmentService) MaxBytes() int64 {
	return s.maxBytes
}

// Store uploads one attachment and returns the reference saved with the message.
func (s *AttachmentService) Store(ctx context.Context, ownerID, fileName, contentType string, size int64, body io.Reader) (message.Attachment, error) {
	if s.store == nil {
		return message.Attachment{}, fmt.Errorf("attachment storage is not configured")
	}
	if size <= 0 || body == nil {
		return message.Attachment{}, payam_errors.ErrInvalidInput
	}
	if size > s.maxBytes {
		return message.Attachment{}, payam_errors.ErrTooLarge
	}

	token := make([]byte, 8)
	if _, err := rand.Read(token); err != nil {
		return message.Attachment{}, fmt.Errorf("generate object key: %w", err)
	}
	original := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	key := fmt.Sprintf("attachments/%s_%s", hex.EncodeToString(token), SanitizeFileName(original))

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Put(ctx, key, contentType, size, io.LimitReader(body, size)); err != nil {
		return message.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	s.log.WithContext(ctx).Infof("Stored attachment %s for %s (%d bytes)", key, ownerID, size)

	return message.Attachment{Path: key, OriginalName: original, SizeBytes: size}, nil
}

func (s *AttachmentService) URL(ctx context.Context, key string) (string, error) {
	if s.store == nil || key == "" {
		return "", payam_errors.ErrNotFound
	}
	return s.store.URL(ctx, key)
}

// Discard removes an object whose message was never saved. Failures are
// logged with the key so the object can be cleaned up by hand.
func (s *AttachmentService) Discard(ctx context.Context, key string) {
	if s.store == nil || key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.WithContext(ctx).Warnf("Orphaned attachment %s: %v", key, err)
	}
}

// SanitizeFileName keeps letters, digits, dot, dash and underscore.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > maxStoredNameLength {
		out = out[len(out)-maxStoredNameLength:]
	}
	return out
}

// TypeFor infers the message type from an upload's content type.
func TypeFor(contentType string) message.Type {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return message.TypeImage
	case strings.HasPrefix(ct, "audio/"):
		return message.TypeAudio
	default:
		return message.TypeFile
	}
}
