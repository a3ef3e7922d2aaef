package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"payam-chat/internal/domain/user"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	payam_errors "payam-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(identities *fakeIdentities, tokens *services.TokenService) *gin.Engine {
	h := NewAuthHandler(identities, tokens)
	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	identities := &fakeIdentities{user: user.User{PublicID: ali, DisplayName: "Ali", PhoneNumber: "09120000000", CreatedAt: testNow, IsActive: true}}
	r := newAuthRouter(identities, tokens)

	w := doJSON(r, http.MethodPost, "/register", httpdto.RegisterRequest{DisplayName: "Ali", PhoneNumber: "0912 000 0000"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[httpdto.AuthResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, ali, resp.Data.User.PublicID)
	assert.Equal(t, int64(3600), resp.Data.ExpiresIn)
	assert.NotContains(t, w.Body.String(), "09120000000")

	claims, err := tokens.ParseAccessToken(resp.Data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, ali, claims.UserID)
	assert.Equal(t, services.RoleUser, claims.Role)

	require.Len(t, identities.registered, 1)
	assert.Equal(t, "0912 000 0000", identities.registered[0].PhoneNumber)
}

func TestAuthHandler_RegisterErrors(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)

	r := newAuthRouter(&fakeIdentities{}, tokens)
	w := doJSON(r, http.MethodPost, "/register", map[string]string{"display_name": "Ali"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode[any](t, w).Code)

	r = newAuthRouter(&fakeIdentities{err: payam_errors.ErrDuplicateHandle}, tokens)
	w = doJSON(r, http.MethodPost, "/register", httpdto.RegisterRequest{DisplayName: "Ali", PhoneNumber: "09120000000"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_HANDLE", decode[any](t, w).Code)
}

func TestAuthHandler_Login(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)

	r := newAuthRouter(&fakeIdentities{err: payam_errors.ErrInvalidCredential}, tokens)
	w := doJSON(r, http.MethodPost, "/login", httpdto.LoginRequest{PhoneNumber: "09120000000", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIAL", decode[any](t, w).Code)

	r = newAuthRouter(&fakeIdentities{user: user.User{PublicID: sara, DisplayName: "Sara"}}, tokens)
	w = doJSON(r, http.MethodPost, "/login", httpdto.LoginRequest{PhoneNumber: "09130000000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, sara, decode[httpdto.AuthResponse](t, w).Data.User.PublicID)
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	r := newAuthRouter(&fakeIdentities{err: errors.New("pq: connection refused")}, services.NewTokenService("secret", time.Hour))

	w := doJSON(r, http.MethodPost, "/login", httpdto.LoginRequest{PhoneNumber: "09120000000"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[any](t, w)
	assert.Equal(t, "internal error", resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
