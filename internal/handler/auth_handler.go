package handler

import (
	"context"
	"net/http"

	"payam-chat/internal/domain/user"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// Identities is the part of the identity registry the auth endpoints need.
type Identities interface {
	Register(ctx context.Context, in services.RegisterInput) (user.User, error)
	Authenticate(ctx context.Context, phone, password string) (user.User, error)
}

type TokenIssuer interface {
	IssueUserToken(publicID string) (string, int64, error)
}

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	identities Identities
	tokens     TokenIssuer
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(identities Identities, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{identities: identities, tokens: tokens}
}

// Register handles user registration. Registering an existing phone number
// with the same display name returns the existing identity.
func (h *AuthHandler) Register(c *gin.Context) {
	var req httpdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	u, err := h.identities.Register(c.Request.Context(), services.RegisterInput{
		DisplayName: req.DisplayName,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondWithToken(c, u)
}

// Login handles user authentication.
func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	u, err := h.identities.Authenticate(c.Request.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondWithToken(c, u)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, u user.User) {
	token, expiresIn, err := h.tokens.IssueUserToken(u.PublicID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AuthResponse{
		User:        httpdto.FromUser(u),
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}))
}
