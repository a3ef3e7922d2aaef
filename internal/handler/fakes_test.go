package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
	"payam-chat/internal/domain/user"
	"payam-chat/internal/repository"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	ali  = "A1A1A1A1A1"
	sara = "B2B2B2B2B2"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser stands in for AuthMiddleware.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), userID))
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) httpdto.Response[T] {
	t.Helper()
	var resp httpdto.Response[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

type fakeIdentities struct {
	registered []services.RegisterInput
	user       user.User
	err        error
}

func (f *fakeIdentities) Register(_ context.Context, in services.RegisterInput) (user.User, error) {
	f.registered = append(f.registered, in)
	return f.user, f.err
}

func (f *fakeIdentities) Authenticate(_ context.Context, phone, password string) (user.User, error) {
	return f.user, f.err
}

type fakeDirectory struct {
	users   []user.User
	err     error
	query   string
	exclude string
	limit   int
}

func (f *fakeDirectory) GetByPublicID(_ context.Context, publicID string) (user.User, error) {
	for _, u := range f.users {
		if u.PublicID == publicID {
			return u, nil
		}
	}
	return user.User{}, f.err
}

func (f *fakeDirectory) Search(_ context.Context, query, excludeUserID string, limit int) ([]user.User, error) {
	f.query, f.exclude, f.limit = query, excludeUserID, limit
	return f.users, f.err
}

type fakeConversations struct {
	conv      conversation.Conversation
	summaries []conversation.Summary
	err       error
	resolved  [][2]string
}

func (f *fakeConversations) ResolveOrCreate(_ context.Context, userA, userB string) (conversation.Conversation, error) {
	f.resolved = append(f.resolved, [2]string{userA, userB})
	return f.conv, f.err
}

func (f *fakeConversations) ListForUser(context.Context, string) ([]conversation.Summary, error) {
	return f.summaries, f.err
}

func (f *fakeConversations) Get(context.Context, uuid.UUID, string) (conversation.Conversation, error) {
	return f.conv, f.err
}

type fakeAppender struct {
	inputs []services.AppendInput
	err    error
}

func (f *fakeAppender) Append(_ context.Context, in services.AppendInput) (message.Message, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return message.Message{}, f.err
	}
	content := in.Content
	if in.Type.IsAttachment() {
		content = in.Type.Label()
	}
	return message.Message{
		ID:             int64(len(f.inputs)),
		ConversationID: in.ConversationID,
		Seq:            int64(len(f.inputs)),
		SenderID:       in.SenderID,
		SenderName:     "Ali",
		Content:        content,
		Type:           in.Type,
		Attachment:     in.Attachment,
		CreatedAt:      testNow,
	}, nil
}

type fakeDeliveries struct {
	msgs     []message.Message
	err      error
	calls    []string
	afterSeq int64
	unread   int
}

func (f *fakeDeliveries) OpenConversation(context.Context, uuid.UUID, string) ([]message.Message, error) {
	f.calls = append(f.calls, "open")
	return f.msgs, f.err
}

func (f *fakeDeliveries) Poll(_ context.Context, _ uuid.UUID, _ string, afterSeq int64) ([]message.Message, error) {
	f.calls = append(f.calls, "poll")
	f.afterSeq = afterSeq
	return f.msgs, f.err
}

func (f *fakeDeliveries) PollUnread(context.Context, string) ([]message.Message, error) {
	f.calls = append(f.calls, "poll-unread")
	return f.msgs, f.err
}

func (f *fakeDeliveries) UnreadCount(context.Context, uuid.UUID, string) (int, error) {
	return f.unread, f.err
}

type fakeAttachments struct {
	max       int64
	stored    []string
	discarded []string
	err       error
}

func (f *fakeAttachments) Discard(_ context.Context, key string) {
	f.discarded = append(f.discarded, key)
}

func (f *fakeAttachments) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (f *fakeAttachments) MaxBytes() int64 { return f.max }

func (f *fakeAttachments) Store(_ context.Context, _ string, fileName, _ string, size int64, body io.Reader) (message.Attachment, error) {
	if f.err != nil {
		return message.Attachment{}, f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return message.Attachment{}, err
	}
	f.stored = append(f.stored, string(data))
	return message.Attachment{Path: "attachments/0011_" + fileName, OriginalName: fileName, SizeBytes: size}, nil
}

type fakeGroups struct {
	group   group.Group
	members []group.Membership
	msgs    []message.GroupMessage
	err     error
	sendErr error
	sent    []services.GroupAppendInput
	added   [][2]string
}

func (f *fakeGroups) Create(_ context.Context, creatorID, name, description string) (group.Group, error) {
	if f.err != nil {
		return group.Group{}, f.err
	}
	g := f.group
	g.Name, g.Description, g.CreatorID = name, description, creatorID
	return g, nil
}

func (f *fakeGroups) AddMember(_ context.Context, groupID uuid.UUID, actorID, userID string) (group.Membership, error) {
	f.added = append(f.added, [2]string{actorID, userID})
	return group.Membership{GroupID: groupID, UserID: userID, JoinedAt: testNow}, f.err
}

func (f *fakeGroups) Join(context.Context, string, string) (group.Group, error) {
	return f.group, f.err
}

func (f *fakeGroups) Leave(context.Context, uuid.UUID, string) error {
	return f.err
}

func (f *fakeGroups) ListForUser(context.Context, string) ([]group.Summary, error) {
	return []group.Summary{{Group: f.group}}, f.err
}

func (f *fakeGroups) Members(context.Context, uuid.UUID, string) ([]group.Membership, error) {
	return f.members, f.err
}

func (f *fakeGroups) Messages(context.Context, uuid.UUID, string) ([]message.GroupMessage, error) {
	return f.msgs, f.err
}

func (f *fakeGroups) Send(_ context.Context, in services.GroupAppendInput) (message.GroupMessage, error) {
	f.sent = append(f.sent, in)
	if f.err != nil {
		return message.GroupMessage{}, f.err
	}
	if f.sendErr != nil {
		return message.GroupMessage{}, f.sendErr
	}
	return message.GroupMessage{
		ID:         1,
		GroupID:    in.GroupID,
		Seq:        int64(len(f.sent)),
		SenderID:   in.SenderID,
		Content:    in.Content,
		Type:       in.Type,
		Attachment: in.Attachment,
		CreatedAt:  testNow,
	}, nil
}

type fakeAdmin struct {
	err         error
	page, limit int
	deactivated []string
}

func (f *fakeAdmin) Authenticate(_ context.Context, username, password string) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return "admin-token", 3600, nil
}

func (f *fakeAdmin) Stats(context.Context) (repository.AdminStats, error) {
	return repository.AdminStats{TotalUsers: 2, RegisteredToday: 1}, f.err
}

func (f *fakeAdmin) Users(_ context.Context, page, limit int) ([]repository.AdminUserRow, error) {
	f.page, f.limit = page, limit
	return []repository.AdminUserRow{{PublicID: ali, DisplayName: "Ali", CreatedAt: testNow, IsActive: true}}, f.err
}

func (f *fakeAdmin) MessageLog(_ context.Context, page, limit int) ([]message.LogEntry, error) {
	f.page, f.limit = page, limit
	return []message.LogEntry{{ID: 1, Kind: message.LogKindPrivate, Content: "salam", CreatedAt: testNow}}, f.err
}

func (f *fakeAdmin) DeactivateUser(_ context.Context, userID string) error {
	f.deactivated = append(f.deactivated, userID)
	return f.err
}

func (f *fakeAdmin) DeactivateUsers(_ context.Context, userIDs []string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.deactivated = append(f.deactivated, userIDs...)
	return int64(len(userIDs)), nil
}

func (f *fakeAdmin) DeleteMessage(context.Context, int64) error {
	return f.err
}
