package services

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/repository"
	payam_errors "payam-chat/pkg/errors"
	"payam-chat/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage bounds the OFFSET computed from (page-1)*limit.
	MaxPage = 1_000_000
)

// AdminReader is the dashboard read model. repository.AdminRepository
// implements it.
type AdminReader interface {
	Stats(ctx context.Context, since time.Time) (repository.AdminStats, error)
	ListUsers(ctx context.Context, limit, offset int) ([]repository.AdminUserRow, error)
	ListMessageLog(ctx context.Context, limit, offset int) ([]message.LogEntry, error)
}

type AdminCredentials struct {
	Username string
	// Password is either a bcrypt hash or the plain value.
	Password string
}

type AdminService struct {
	db       repository.DBTX
	repos    repository.Manager
	reader   AdminReader
	presence PresenceTracker
	tokens   *TokenService
	creds    AdminCredentials
	clock    Clock
	log      *logger.Logger
}

func NewAdminService(db repository.DBTX, repos repository.Manager, reader AdminReader, presence PresenceTracker, tokens *TokenService, creds AdminCredentials, clock Clock, log *logger.Logger) *AdminService {
	return &AdminService{
		db:       db,
		repos:    repos,
		reader:   reader,
		presence: presence,
		tokens:   tokens,
		creds:    creds,
		clock:    clock,
		log:      log,
	}
}

// Authenticate checks the configured admin credentials and issues an admin token.
func (s *AdminService) Authenticate(ctx context.Context, username, password string) (string, int64, error) {
	if s.creds.Username == "" || s.creds.Password == "" {
		return "", 0, payam_errors.ErrForbidden
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) == 1
	var passOK bool
	if strings.HasPrefix(s.creds.Password, "$2") {
		passOK = bcrypt.CompareHashAndPassword([]byte(s.creds.Password), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.Password)) == 1
	}
	if !userOK || !passOK {
		s.log.WithContext(ctx).Warnf("Rejected admin login for %q", username)
		return "", 0, payam_errors.ErrInvalidCredential
	}
	return s.tokens.IssueAdminToken(s.creds.Username)
}

// Stats counts "today" from midnight UTC.
func (s *AdminService) Stats(ctx context.Context) (repository.AdminStats, error) {
	t := now(ctx, s.clock).UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return s.reader.Stats(ctx, midnight)
}

func (s *AdminService) Users(ctx context.Context, page, limit int) ([]repository.AdminUserRow, error) {
	limit, offset, err := paginate(page, limit)
	if err != nil {
		return nil, err
	}
	return s.reader.ListUsers(ctx, limit, offset)
}

func (s *AdminService) MessageLog(ctx context.Context, page, limit int) ([]message.LogEntry, error) {
	limit, offset, err := paginate(page, limit)
	if err != nil {
		return nil, err
	}
	return s.reader.ListMessageLog(ctx, limit, offset)
}

// DeactivateUser hides the user from search and login. Their messages stay.
func (s *AdminService) DeactivateUser(ctx context.Context, userID string) error {
	if err := s.repos.Users(s.db).Deactivate(ctx, userID); err != nil {
		return err
	}
	s.clearPresence(ctx, userID)
	s.log.WithContext(ctx).Infof("Deactivated user %s", userID)
	return nil
}

// DeactivateUsers deactivates every id or none of them.
func (s *AdminService) DeactivateUsers(ctx context.Context, userIDs []string) (int64, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return 0, payam_errors.ErrInvalidInput
	}
	var n int64
	err := repository.WithTx(ctx, s.db, func(tx repository.DBTX) error {
		affected, err := s.repos.Users(tx).DeactivateMany(ctx, ids)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return payam_errors.ErrNotFound
		}
		n = affected
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.clearPresence(ctx, id)
	}
	s.log.WithContext(ctx).Infof("Deactivated %d users", n)
	return n, nil
}

func (s *AdminService) DeleteMessage(ctx context.Context, messageID int64) error {
	if messageID <= 0 {
		return payam_errors.ErrInvalidInput
	}
	return s.repos.Messages(s.db).Delete(ctx, messageID)
}

func (s *AdminService) clearPresence(ctx context.Context, userID string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetOffline(ctx, userID, now(ctx, s.clock)); err != nil {
		s.log.WithContext(ctx).Warnf("Failed to clear presence for %s: %v", userID, err)
	}
}

func paginate(page, limit int) (int, int, error) {
	if page > MaxPage {
		return 0, 0, payam_errors.ErrInvalidInput
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
