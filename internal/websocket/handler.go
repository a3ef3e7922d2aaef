package websocket

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/events"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	payam_errors "payam-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errInvalidFrame = fmt.Errorf("invalid frame: %w", payam_errors.ErrInvalidInput)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type TokenParser interface {
	ParseAccessToken(token string) (services.AccessClaims, error)
}

// PresenceRecorder is implemented by services.IdentityService.
type PresenceRecorder interface {
	TouchPresence(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// ReadMarker is implemented by services.DeliveryTracker.
type ReadMarker interface {
	OpenConversation(ctx context.Context, conversationID uuid.UUID, viewerID string) ([]message.Message, error)
	MarkReadForUser(ctx context.Context, groupID uuid.UUID, userID string) (int64, error)
}

type Handler struct {
	tokens     TokenParser
	presence   PresenceRecorder
	reads      ReadMarker
	authorizer *ChannelAuthorizer
	hub        *Hub
	log        *Logger
}

func NewHandler(tokens TokenParser, presence PresenceRecorder, reads ReadMarker, authorizer *ChannelAuthorizer, hub *Hub, log *Logger) *Handler {
	return &Handler{tokens: tokens, presence: presence, reads: reads, authorizer: authorizer, hub: hub, log: log}
}

// Connect upgrades an authenticated request and serves the connection until
// the peer leaves. Every connection follows its user's channel.
func (h *Handler) Connect(c *gin.Context) {
	token := extractToken(c)
	claims, err := h.tokens.ParseAccessToken(token)
	if err != nil || claims.Role == services.RoleAdmin {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "INVALID_CREDENTIAL"))
		return
	}
	userID := strings.TrimSpace(claims.UserID)

	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), userID))
	defer cancel()

	// deactivated users keep valid tokens until expiry
	if h.presence != nil {
		if err := h.presence.TouchPresence(ctx, userID); err != nil {
			h.log.Warn("rejected connection", userID, "", zap.Error(err))
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "INVALID_CREDENTIAL"))
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("upgrade failed", userID, "", err)
		return
	}

	client := NewClient(conn, userID)
	h.hub.Register(client)
	h.hub.Subscribe(client, events.UserChannel(userID))
	h.log.Info("connected", userID, client.ID)

	go client.WritePump()
	client.ReadPump(ctx, h.log, h.handleFrame)

	h.hub.Unregister(client)
	h.log.Info("disconnected", userID, client.ID)
	if h.presence != nil && h.hub.ConnectionsFor(userID) == 0 {
		if err := h.presence.MarkOffline(ctx, userID); err != nil {
			h.log.Warn("presence clear failed", userID, client.ID, zap.Error(err))
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, c *Client, f ClientFrame) {
	switch f.Type {
	case FramePing:
		c.sendFrame(ServerFrame{Type: "pong"})

	case FrameSubscribe:
		ok, err := h.authorizer.CanSubscribe(ctx, c.UserID, f.Channel)
		if err != nil {
			h.log.Error("authorize subscription failed", c.UserID, c.ID, err, zap.String("channel", f.Channel))
		}
		if !ok {
			c.sendFrame(ServerFrame{Type: "error", Channel: f.Channel, Error: "forbidden"})
			return
		}
		h.hub.Subscribe(c, f.Channel)
		c.sendFrame(ServerFrame{Type: "subscribed", Channel: f.Channel})

	case FrameUnsubscribe:
		if f.Channel == events.UserChannel(c.UserID) {
			c.sendFrame(ServerFrame{Type: "error", Channel: f.Channel, Error: "forbidden"})
			return
		}
		h.hub.Unsubscribe(c, f.Channel)
		c.sendFrame(ServerFrame{Type: "unsubscribed", Channel: f.Channel})

	case FrameRead:
		if err := h.markRead(ctx, c.UserID, f); err != nil {
			c.sendFrame(ServerFrame{Type: "error", Error: services.ErrorCode(err)})
			return
		}
		c.sendFrame(ServerFrame{Type: "read"})
	}
}

func (h *Handler) markRead(ctx context.Context, userID string, f ClientFrame) error {
	if h.reads == nil {
		return nil
	}
	if f.GroupID != "" {
		groupID, err := uuid.Parse(f.GroupID)
		if err != nil {
			return errInvalidFrame
		}
		_, err = h.reads.MarkReadForUser(ctx, groupID, userID)
		return err
	}
	convID, err := uuid.Parse(f.ConversationID)
	if err != nil {
		return errInvalidFrame
	}
	_, err = h.reads.OpenConversation(ctx, convID, userID)
	return err
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
