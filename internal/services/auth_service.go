package services

import (
	"time"

	payam_errors "payam-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type AccessClaims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens for users and the admin.
type TokenService struct {
	jwtSecret []byte
	accessTTL time.Duration
}

func NewTokenService(secret string, accessTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &TokenService{jwtSecret: []byte(secret), accessTTL: accessTTL}
}

func (s *TokenService) IssueUserToken(publicID string) (string, int64, error) {
	return s.issue(publicID, RoleUser)
}

func (s *TokenService) IssueAdminToken(username string) (string, int64, error) {
	return s.issue(username, RoleAdmin)
}

func (s *TokenService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, payam_errors.ErrInvalidCredential
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, payam_errors.ErrInvalidCredential
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, payam_errors.ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return AccessClaims{}, payam_errors.ErrInvalidCredential
	}

	return *claims, nil
}

func (s *TokenService) issue(subject, role string) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessClaims{
		UserID: subject,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}
