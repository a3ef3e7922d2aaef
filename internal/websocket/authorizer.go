package websocket

import (
	"context"
	"strings"

	"payam-chat/internal/events"
)

// ConversationChecker reports whether two users share a private conversation.
// proxy.AccessControl implements it.
type ConversationChecker interface {
	SharesConversation(ctx context.Context, userA, userB string) (bool, error)
}

// ChannelAuthorizer decides which redis channels a connection may follow.
type ChannelAuthorizer struct {
	conversations ConversationChecker
}

func NewChannelAuthorizer(conversations ConversationChecker) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversations: conversations}
}

// CanSubscribe allows a user's own channels and the presence channel of
// anyone they share a conversation with. Everything else is denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID, channel string) (bool, error) {
	if channel == events.UserChannel(userID) || channel == events.PresenceChannel(userID) {
		return true, nil
	}

	if target, ok := strings.CutPrefix(channel, events.ChannelPrefixPresence); ok {
		if target == "" || a.conversations == nil {
			return false, nil
		}
		return a.conversations.SharesConversation(ctx, userID, target)
	}

	return false, nil
}
