package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	payam_errors "payam-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is allowed on top of the attachment limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

type MessageAppender interface {
	Append(ctx context.Context, in services.AppendInput) (message.Message, error)
}

// Deliveries reads messages and moves their delivery state as a side effect.
type Deliveries interface {
	OpenConversation(ctx context.Context, conversationID uuid.UUID, viewerID string) ([]message.Message, error)
	Poll(ctx context.Context, conversationID uuid.UUID, viewerID string, afterSeq int64) ([]message.Message, error)
	PollUnread(ctx context.Context, viewerID string) ([]message.Message, error)
	UnreadCount(ctx context.Context, conversationID uuid.UUID, forUserID string) (int, error)
}

type Attachments interface {
	AttachmentLinker
	MaxBytes() int64
	Store(ctx context.Context, ownerID, fileName, contentType string, size int64, body io.Reader) (message.Attachment, error)
	Discard(ctx context.Context, key string)
}

type MessageHandler struct {
	messages      MessageAppender
	deliveries    Deliveries
	conversations Conversations
	attachments   Attachments
}

func NewMessageHandler(messages MessageAppender, deliveries Deliveries, conversations Conversations, attachments Attachments) *MessageHandler {
	return &MessageHandler{messages: messages, deliveries: deliveries, conversations: conversations, attachments: attachments}
}

// List opens the conversation for the caller: everything addressed to them
// becomes delivered and read. With after_seq only newer messages are returned.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	afterSeq, err := parseInt64(c.Query("after_seq"))
	if err != nil || afterSeq < 0 {
		badRequest(c, "invalid after_seq")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var msgs []message.Message
	if afterSeq > 0 {
		msgs, err = h.deliveries.Poll(ctx, conversationID, userID, afterSeq)
	} else {
		msgs, err = h.deliveries.OpenConversation(ctx, conversationID, userID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessageSlice(msgs, userID, h.resolver(ctx))))
}

func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	msgType, valid := message.ParseType(req.Type)
	if !valid || msgType.IsAttachment() {
		badRequest(c, "invalid type")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	m, err := h.messages.Append(c.Request.Context(), services.AppendInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Type:           msgType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m, userID, nil)))
}

// Upload stores the multipart "file" field and appends it as an attachment
// message. The caller must be a participant before anything is uploaded.
func (h *MessageHandler) Upload(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.attachments == nil {
		writeError(c, payam_errors.ErrForbidden)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.conversations.Get(ctx, conversationID, userID); err != nil {
		writeError(c, err)
		return
	}

	att, ok := storeMultipart(c, h.attachments, userID)
	if !ok {
		return
	}

	m, err := h.messages.Append(ctx, services.AppendInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Type:           services.TypeFor(att.contentType),
		Attachment:     &att.Attachment,
	})
	if err != nil {
		h.attachments.Discard(ctx, att.Path)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m, userID, h.resolver(ctx))))
}

// Unread reports how many messages in the conversation the caller has not read.
func (h *MessageHandler) Unread(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.deliveries.UnreadCount(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{
		ConversationID: conversationID.String(),
		Unread:         n,
	}))
}

// PollUnread returns every unread message across the caller's conversations.
func (h *MessageHandler) PollUnread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msgs, err := h.deliveries.PollUnread(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessageSlice(msgs, userID, h.resolver(ctx))))
}

func (h *MessageHandler) resolver(ctx context.Context) httpdto.URLResolver {
	if h.attachments == nil {
		return nil
	}
	return urlResolver(ctx, h.attachments)
}

type storedUpload struct {
	message.Attachment
	contentType string
}

// storeMultipart reads the "file" form field into the blob store. It writes
// the error response itself and reports whether the caller may continue.
func storeMultipart(c *gin.Context, attachments Attachments, userID string) (storedUpload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, attachments.MaxBytes()+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, payam_errors.ErrTooLarge)
			return storedUpload{}, false
		}
		badRequest(c, "file is required")
		return storedUpload{}, false
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, err)
		return storedUpload{}, false
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	att, err := attachments.Store(c.Request.Context(), userID, header.Filename, contentType, header.Size, file)
	if err != nil {
		writeError(c, err)
		return storedUpload{}, false
	}
	return storedUpload{Attachment: att, contentType: contentType}, true
}
