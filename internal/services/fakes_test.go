package services

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
	"payam-chat/internal/domain/user"
	"payam-chat/internal/proxy"
	"payam-chat/internal/repository"
	payam_errors "payam-chat/pkg/errors"
	"payam-chat/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for postgres. Every repository vended by
// memManager shares it and ignores the DBTX it was bound to.
type memStore struct {
	mu sync.Mutex

	users      map[string]*user.User
	nextUserID int64

	convs     map[uuid.UUID]*conversation.Conversation
	messages  []*message.Message
	nextMsgID int64

	groups       map[uuid.UUID]*group.Group
	members      map[uuid.UUID][]group.Membership
	groupMsgs    []*message.GroupMessage
	receipts     map[int64]map[string]*receipt
	nextGroupMsg int64

	logs []message.LogEntry

	// afterUnreadList runs once ListUnreadForUser has taken its snapshot.
	afterUnreadList func()
}

type receipt struct {
	deliveredAt time.Time
	readAt      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*user.User{},
		convs:    map[uuid.UUID]*conversation.Conversation{},
		groups:   map[uuid.UUID]*group.Group{},
		members:  map[uuid.UUID][]group.Membership{},
		receipts: map[int64]map[string]*receipt{},
	}
}

type memManager struct{ s *memStore }

func (m memManager) Users(repository.DBTX) repository.UserRepository { return memUsers{m.s} }
func (m memManager) Conversations(repository.DBTX) repository.ConversationRepository {
	return memConversations{m.s}
}
func (m memManager) Messages(repository.DBTX) repository.MessageRepository { return memMessages{m.s} }
func (m memManager) Groups(repository.DBTX) repository.GroupRepository     { return memGroups{m.s} }
func (m memManager) GroupMessages(repository.DBTX) repository.GroupMessageRepository {
	return memGroupMessages{m.s}
}
func (m memManager) MessageLogs(repository.DBTX) repository.MessageLogRepository {
	return memLogs{m.s}
}

// users

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.PhoneNumber == u.PhoneNumber {
			return payam_errors.ErrDuplicateHandle
		}
	}
	if _, ok := r.s.users[u.PublicID]; ok {
		return payam_errors.ErrAlreadyExists
	}
	r.s.nextUserID++
	u.ID = r.s.nextUserID
	cp := *u
	r.s.users[u.PublicID] = &cp
	return nil
}

func (r memUsers) GetByPublicID(_ context.Context, publicID string) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[publicID]
	if !ok {
		return user.User{}, payam_errors.ErrNotFound
	}
	return *u, nil
}

func (r memUsers) GetByPhoneNumber(_ context.Context, phone string) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.PhoneNumber == phone {
			return *u, nil
		}
	}
	return user.User{}, payam_errors.ErrNotFound
}

func (r memUsers) Search(_ context.Context, query, exclude string, limit int) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []user.User{}
	for _, u := range r.s.users {
		if u.PublicID == exclude || !u.IsActive {
			continue
		}
		if strings.Contains(u.PublicID, query) || strings.Contains(u.DisplayName, query) {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, b user.User) int {
		if c := strings.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memUsers) update(publicID string, fn func(u *user.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[publicID]
	if !ok {
		return payam_errors.ErrNotFound
	}
	fn(u)
	return nil
}

func (r memUsers) TouchPresence(_ context.Context, publicID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[publicID]
	if !ok || !u.IsActive {
		return payam_errors.ErrNotFound
	}
	u.LastSeenAt = sql.NullTime{Time: at, Valid: true}
	u.IsOnline = true
	return nil
}

func (r memUsers) SetOffline(_ context.Context, publicID string) error {
	return r.update(publicID, func(u *user.User) { u.IsOnline = false })
}

func (r memUsers) Deactivate(_ context.Context, publicID string) error {
	return r.update(publicID, func(u *user.User) {
		u.IsActive = false
		u.IsOnline = false
	})
}

func (r memUsers) DeactivateMany(ctx context.Context, publicIDs []string) (int64, error) {
	var n int64
	for _, id := range publicIDs {
		if err := r.Deactivate(ctx, id); err == nil {
			n++
		}
	}
	return n, nil
}

// conversations

type memConversations struct{ s *memStore }

func (r memConversations) Create(_ context.Context, c *conversation.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.convs {
		if existing.ParticipantLow == c.ParticipantLow && existing.ParticipantHigh == c.ParticipantHigh {
			return payam_errors.ErrAlreadyExists
		}
	}
	cp := *c
	r.s.convs[c.ID] = &cp
	return nil
}

func (r memConversations) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[id]
	if !ok {
		return conversation.Conversation{}, payam_errors.ErrNotFound
	}
	return *c, nil
}

func (r memConversations) GetByPair(_ context.Context, low, high string) (conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.convs {
		if c.ParticipantLow == low && c.ParticipantHigh == high {
			return *c, nil
		}
	}
	return conversation.Conversation{}, payam_errors.ErrNotFound
}

func (r memConversations) ListSummaries(_ context.Context, userID string) ([]conversation.Summary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []conversation.Summary{}
	for _, c := range r.s.convs {
		if !c.HasParticipant(userID) {
			continue
		}
		s := conversation.Summary{Conversation: *c}
		if u, ok := r.s.users[c.Counterpart(userID)]; ok {
			s.Counterpart = *u
		}
		for _, m := range r.s.messages {
			if m.ConversationID != c.ID {
				continue
			}
			if s.LastMessage == nil || m.Seq > s.LastMessage.Seq {
				cp := *m
				s.LastMessage = &cp
			}
			if m.SenderID != userID && !m.Read {
				s.UnreadCount++
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (r memConversations) NextSeq(_ context.Context, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.convs[id]
	if !ok {
		return 0, payam_errors.ErrNotFound
	}
	c.LastSeq++
	return c.LastSeq, nil
}

// messages

type memMessages struct{ s *memStore }

func (r memMessages) Create(_ context.Context, m *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextMsgID++
	m.ID = r.s.nextMsgID
	cp := *m
	r.s.messages = append(r.s.messages, &cp)
	return nil
}

func (r memMessages) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, m := range r.s.messages {
		if m.ID == id {
			r.s.messages = slices.Delete(r.s.messages, i, i+1)
			return nil
		}
	}
	return payam_errors.ErrNotFound
}

func (r memMessages) filter(keep func(m *message.Message) bool) []message.Message {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []message.Message{}
	for _, m := range r.s.messages {
		if keep(m) {
			out = append(out, *m)
		}
	}
	slices.SortStableFunc(out, func(a, b message.Message) int { return int(a.ID - b.ID) })
	return out
}

func (r memMessages) ListByConversation(_ context.Context, convID uuid.UUID) ([]message.Message, error) {
	return r.filter(func(m *message.Message) bool { return m.ConversationID == convID }), nil
}

func (r memMessages) ListAfterSeq(_ context.Context, convID uuid.UUID, afterSeq int64) ([]message.Message, error) {
	return r.filter(func(m *message.Message) bool { return m.ConversationID == convID && m.Seq > afterSeq }), nil
}

func (r memMessages) ListUnread(_ context.Context, convID uuid.UUID, forUserID string) ([]message.Message, error) {
	return r.filter(func(m *message.Message) bool {
		return m.ConversationID == convID && m.SenderID != forUserID && !m.Read
	}), nil
}

func (r memMessages) CountUnread(ctx context.Context, convID uuid.UUID, forUserID string) (int, error) {
	msgs, _ := r.ListUnread(ctx, convID, forUserID)
	return len(msgs), nil
}

func (r memMessages) ListUnreadForUser(_ context.Context, userID string) ([]message.Message, error) {
	r.s.mu.Lock()
	mine := map[uuid.UUID]bool{}
	for id, c := range r.s.convs {
		mine[id] = c.HasParticipant(userID)
	}
	r.s.mu.Unlock()
	out := r.filter(func(m *message.Message) bool {
		return mine[m.ConversationID] && m.SenderID != userID && !m.Read
	})
	if r.s.afterUnreadList != nil {
		r.s.afterUnreadList()
	}
	return out, nil
}

func (r memMessages) MarkDelivered(_ context.Context, convID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		if m.ConversationID == convID && !m.Delivered {
			m.Delivered = true
			n++
		}
	}
	return n, nil
}

func (r memMessages) MarkRead(_ context.Context, convID uuid.UUID, viewerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		if m.ConversationID == convID && m.SenderID != viewerID && !m.Read {
			m.Delivered = true
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (r memMessages) MarkReadByIDs(_ context.Context, viewerID string, ids []int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages {
		if slices.Contains(ids, m.ID) && m.SenderID != viewerID && !m.Read {
			m.Delivered = true
			m.Read = true
			n++
		}
	}
	return n, nil
}

// groups

type memGroups struct{ s *memStore }

func (r memGroups) Create(_ context.Context, g *group.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.groups {
		if existing.PublicID == g.PublicID {
			return payam_errors.ErrAlreadyExists
		}
	}
	cp := *g
	r.s.groups[g.ID] = &cp
	return nil
}

func (r memGroups) GetByID(_ context.Context, id uuid.UUID) (group.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return group.Group{}, payam_errors.ErrNotFound
	}
	return *g, nil
}

func (r memGroups) GetByPublicID(_ context.Context, publicID string) (group.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.PublicID == publicID {
			return *g, nil
		}
	}
	return group.Group{}, payam_errors.ErrNotFound
}

func (r memGroups) ListSummaries(_ context.Context, userID string) ([]group.Summary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []group.Summary{}
	for id, members := range r.s.members {
		idx := slices.IndexFunc(members, func(m group.Membership) bool { return m.UserID == userID })
		if idx < 0 {
			continue
		}
		s := group.Summary{Group: *r.s.groups[id], IsAdmin: members[idx].IsAdmin}
		for _, m := range r.s.groupMsgs {
			if m.GroupID != id {
				continue
			}
			if s.LastMessage == nil || m.Seq > s.LastMessage.Seq {
				cp := *m
				s.LastMessage = &cp
			}
			if rc := r.s.receipts[m.ID][userID]; m.SenderID != userID && (rc == nil || rc.readAt.IsZero()) {
				s.UnreadCount++
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (r memGroups) NextSeq(_ context.Context, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return 0, payam_errors.ErrNotFound
	}
	g.LastSeq++
	return g.LastSeq, nil
}

func (r memGroups) AddMember(_ context.Context, m *group.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.members[m.GroupID] {
		if existing.UserID == m.UserID {
			return payam_errors.ErrDuplicateMembership
		}
	}
	r.s.members[m.GroupID] = append(r.s.members[m.GroupID], *m)
	return nil
}

func (r memGroups) RemoveMember(_ context.Context, groupID uuid.UUID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members := r.s.members[groupID]
	idx := slices.IndexFunc(members, func(m group.Membership) bool { return m.UserID == userID })
	if idx < 0 {
		return payam_errors.ErrNotFound
	}
	r.s.members[groupID] = slices.Delete(members, idx, idx+1)
	return nil
}

func (r memGroups) PromoteOldestMember(_ context.Context, groupID uuid.UUID) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members := r.s.members[groupID]
	if len(members) == 0 || slices.ContainsFunc(members, func(m group.Membership) bool { return m.IsAdmin }) {
		return "", payam_errors.ErrNotFound
	}
	oldest := 0
	for i, m := range members {
		if m.JoinedAt.Before(members[oldest].JoinedAt) {
			oldest = i
		}
	}
	members[oldest].IsAdmin = true
	return members[oldest].UserID, nil
}

func (r memGroups) GetMember(_ context.Context, groupID uuid.UUID, userID string) (group.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members[groupID] {
		if m.UserID == userID {
			return m, nil
		}
	}
	return group.Membership{}, payam_errors.ErrNotFound
}

func (r memGroups) ListMembers(_ context.Context, groupID uuid.UUID) ([]group.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.members[groupID]), nil
}

// group messages

type memGroupMessages struct{ s *memStore }

func (r memGroupMessages) Create(_ context.Context, m *message.GroupMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextGroupMsg++
	m.ID = r.s.nextGroupMsg
	cp := *m
	r.s.groupMsgs = append(r.s.groupMsgs, &cp)
	return nil
}

func (r memGroupMessages) ListByGroup(_ context.Context, groupID uuid.UUID) ([]message.GroupMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []message.GroupMessage{}
	for _, m := range r.s.groupMsgs {
		if m.GroupID != groupID {
			continue
		}
		cp := *m
		cp.DeliveredTo, cp.ReadBy = []string{}, []string{}
		for userID, rc := range r.s.receipts[m.ID] {
			cp.DeliveredTo = append(cp.DeliveredTo, userID)
			if !rc.readAt.IsZero() {
				cp.ReadBy = append(cp.ReadBy, userID)
			}
		}
		slices.Sort(cp.DeliveredTo)
		slices.Sort(cp.ReadBy)
		out = append(out, cp)
	}
	return out, nil
}

func (r memGroupMessages) CountUnread(_ context.Context, groupID uuid.UUID, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.groupMsgs {
		if m.GroupID != groupID || m.SenderID == userID {
			continue
		}
		if rc := r.s.receipts[m.ID][userID]; rc == nil || rc.readAt.IsZero() {
			n++
		}
	}
	return n, nil
}

func (r memGroupMessages) mark(groupID uuid.UUID, userID string, at time.Time, read bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.groupMsgs {
		if m.GroupID != groupID || m.SenderID == userID {
			continue
		}
		if r.s.receipts[m.ID] == nil {
			r.s.receipts[m.ID] = map[string]*receipt{}
		}
		rc := r.s.receipts[m.ID][userID]
		switch {
		case rc == nil:
			rc = &receipt{deliveredAt: at}
			if read {
				rc.readAt = at
			}
			r.s.receipts[m.ID][userID] = rc
			n++
		case read && rc.readAt.IsZero():
			rc.readAt = at
			n++
		}
	}
	return n
}

func (r memGroupMessages) MarkDeliveredForUser(_ context.Context, groupID uuid.UUID, userID string, at time.Time) (int64, error) {
	return r.mark(groupID, userID, at, false), nil
}

func (r memGroupMessages) MarkReadForUser(_ context.Context, groupID uuid.UUID, userID string, at time.Time) (int64, error) {
	return r.mark(groupID, userID, at, true), nil
}

// message log

type memLogs struct{ s *memStore }

func (r memLogs) Append(_ context.Context, e *message.LogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = int64(len(r.s.logs) + 1)
	r.s.logs = append(r.s.logs, *e)
	return nil
}

// publisher and presence

type recordedEvent struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{channel: channel, payload: payload})
	return nil
}

func (p *fakePublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.channel)
	}
	return out
}

type fakePresence struct {
	mu      sync.Mutex
	online  map[string]bool
	offline []string
}

func (p *fakePresence) SetOnline(_ context.Context, userID string, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online == nil {
		p.online = map[string]bool{}
	}
	p.online[userID] = true
	return nil
}

func (p *fakePresence) SetOffline(_ context.Context, userID string, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	p.offline = append(p.offline, userID)
	return nil
}

// fixture wires every service over one memStore. Operations that open a
// transaction need txDB expectations registered on mock first.
type fixture struct {
	store     *memStore
	db        *sql.DB
	mock      sqlmock.Sqlmock
	pub       *fakePublisher
	presence  *fakePresence
	clock     *fakeClock
	identity  *IdentityService
	convs     *ConversationService
	messages  *MessageService
	tracker   *DeliveryTracker
	groups    *GroupService
	access    *proxy.AccessControl
	eventsPub *EventPublisher
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := newMemStore()
	repos := memManager{store}
	log := logger.NewNop()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	pub := &fakePublisher{}
	presence := &fakePresence{}

	access := proxy.NewAccessControl(memConversations{store}, memGroups{store})
	eventsPub := NewEventPublisher(pub, log)
	identity := NewIdentityService(db, repos, presence, clock.Now, log)
	identity.hashCost = bcryptMinCost
	tracker := NewDeliveryTracker(db, repos, access, eventsPub, clock.Now, log)

	return &fixture{
		store:     store,
		db:        db,
		mock:      mock,
		pub:       pub,
		presence:  presence,
		clock:     clock,
		identity:  identity,
		convs:     NewConversationService(db, repos, access, clock.Now, log),
		messages:  NewMessageService(db, repos, access, eventsPub, clock.Now, log),
		tracker:   tracker,
		groups:    NewGroupService(db, repos, access, tracker, eventsPub, clock.Now, log),
		access:    access,
		eventsPub: eventsPub,
	}
}

// txs registers n successful transactions.
func (f *fixture) txs(n int) {
	for i := 0; i < n; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}
}

func (f *fixture) register(t *testing.T, name, phone string) user.User {
	t.Helper()
	u, err := f.identity.Register(context.Background(), RegisterInput{DisplayName: name, PhoneNumber: phone})
	require.NoError(t, err)
	return u
}

func (f *fixture) send(t *testing.T, convID uuid.UUID, senderID, content string) message.Message {
	t.Helper()
	f.txs(1)
	m, err := f.messages.Append(context.Background(), AppendInput{ConversationID: convID, SenderID: senderID, Content: content})
	require.NoError(t, err)
	return m
}
