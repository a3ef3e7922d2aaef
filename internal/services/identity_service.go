package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"payam-chat/internal/domain/user"
	"payam-chat/internal/repository"
	payam_errors "payam-chat/pkg/errors"
	"payam-chat/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

const (
	MaxDisplayNameLength = 100
	MinSearchQueryLength = 2
	DefaultSearchLimit   = 10

	maxPublicIDAttempts = 5
)

// PresenceTracker mirrors presence into the fast store. Failures there are
// logged and never fail the request.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string, at time.Time) error
	SetOffline(ctx context.Context, userID string, at time.Time) error
}

type RegisterInput struct {
	DisplayName string
	PhoneNumber string
	Password    string
}

// IdentityService owns user registration, authentication, presence and the
// directory.
type IdentityService struct {
	db       repository.DBTX
	repos    repository.Manager
	presence PresenceTracker
	clock    Clock
	log      *logger.Logger
	hashCost int
}

func NewIdentityService(db repository.DBTX, repos repository.Manager, presence PresenceTracker, clock Clock, log *logger.Logger) *IdentityService {
	return &IdentityService{
		db:       db,
		repos:    repos,
		presence: presence,
		clock:    clock,
		log:      log,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register returns the existing user for a known phone number and creates
// one otherwise. Racing registrations of the same number converge on one row.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	name := strings.TrimSpace(in.DisplayName)
	phone := user.NormalizePhone(in.PhoneNumber)
	if name == "" || phone == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return user.User{}, payam_errors.ErrInvalidInput
	}

	users := s.repos.Users(s.db)
	existing, err := users.GetByPhoneNumber(ctx, phone)
	if err == nil {
		return s.reuse(existing, in.Password)
	}
	if !errors.Is(err, payam_errors.ErrNotFound) {
		return user.User{}, err
	}

	var hash sql.NullString
	if in.Password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
		if err != nil {
			return user.User{}, fmt.Errorf("hash credential: %w", err)
		}
		hash = sql.NullString{String: string(h), Valid: true}
	}

	createdAt := now(ctx, s.clock)
	for attempt := 0; attempt < maxPublicIDAttempts; attempt++ {
		publicID, err := newPublicID()
		if err != nil {
			return user.User{}, err
		}
		u := user.User{
			PublicID:     publicID,
			DisplayName:  name,
			PhoneNumber:  phone,
			PasswordHash: hash,
			CreatedAt:    createdAt,
			IsActive:     true,
		}
		err = users.Create(ctx, &u)
		switch {
		case err == nil:
			s.log.WithContext(ctx).Infof("Registered user %s", u.PublicID)
			return u, nil
		case errors.Is(err, payam_errors.ErrAlreadyExists):
			continue
		case errors.Is(err, payam_errors.ErrDuplicateHandle):
			existing, err := users.GetByPhoneNumber(ctx, phone)
			if err != nil {
				return user.User{}, err
			}
			return s.reuse(existing, in.Password)
		default:
			return user.User{}, err
		}
	}
	return user.User{}, fmt.Errorf("allocate public id: %w", payam_errors.ErrAlreadyExists)
}

func (s *IdentityService) reuse(existing user.User, password string) (user.User, error) {
	if !existing.IsActive {
		return user.User{}, payam_errors.ErrForbidden
	}
	if existing.HasCredential() {
		if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash.String), []byte(password)) != nil {
			return user.User{}, payam_errors.ErrDuplicateHandle
		}
	}
	return existing, nil
}

// Authenticate resolves a phone number and credential to a user. Accounts
// created without a credential sign in by phone number alone.
func (s *IdentityService) Authenticate(ctx context.Context, phone, password string) (user.User, error) {
	phone = user.NormalizePhone(phone)
	if phone == "" {
		return user.User{}, payam_errors.ErrInvalidInput
	}
	u, err := s.repos.Users(s.db).GetByPhoneNumber(ctx, phone)
	if err != nil {
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, payam_errors.ErrForbidden
	}
	if u.HasCredential() {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash.String), []byte(password)) != nil {
			return user.User{}, payam_errors.ErrInvalidCredential
		}
	}
	return u, nil
}

func (s *IdentityService) GetByPublicID(ctx context.Context, publicID string) (user.User, error) {
	if !user.IsValidPublicID(publicID) {
		return user.User{}, payam_errors.ErrNotFound
	}
	return s.repos.Users(s.db).GetByPublicID(ctx, publicID)
}

// TouchPresence records that userID is active now.
func (s *IdentityService) TouchPresence(ctx context.Context, userID string) error {
	at := now(ctx, s.clock)
	if err := s.repos.Users(s.db).TouchPresence(ctx, userID, at); err != nil {
		return err
	}
	if s.presence != nil {
		if err := s.presence.SetOnline(ctx, userID, at); err != nil {
			s.log.WithContext(ctx).Warnf("Failed to update presence for %s: %v", userID, err)
		}
	}
	return nil
}

func (s *IdentityService) MarkOffline(ctx context.Context, userID string) error {
	if err := s.repos.Users(s.db).SetOffline(ctx, userID); err != nil {
		return err
	}
	if s.presence != nil {
		if err := s.presence.SetOffline(ctx, userID, now(ctx, s.clock)); err != nil {
			s.log.WithContext(ctx).Warnf("Failed to clear presence for %s: %v", userID, err)
		}
	}
	return nil
}

// Search is the directory lookup. Queries shorter than two characters return
// nothing without touching storage.
func (s *IdentityService) Search(ctx context.Context, query, excludeUserID string, limit int) ([]user.User, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchQueryLength {
		return []user.User{}, nil
	}
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}
	return s.repos.Users(s.db).Search(ctx, query, excludeUserID, limit)
}

// newPublicID draws 40 random bits rendered as ten upper-case hex characters.
func newPublicID() (string, error) {
	buf := make([]byte, user.PublicIDLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate public id: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
