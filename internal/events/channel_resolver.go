package events

import "strings"

// Redis channel prefixes
const (
	ChannelPrefixUser     = "channel:user:"
	ChannelPrefixPresence = "channel:presence:"
)

// Patterns the websocket bridge listens on.
var BridgePatterns = []string{ChannelPrefixUser + "*", ChannelPrefixPresence + "*"}

func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}

func PresenceChannel(userID string) string {
	return ChannelPrefixPresence + userID
}

// UserFromChannel extracts the public id from a user or presence channel.
func UserFromChannel(channel string) (string, bool) {
	for _, prefix := range []string{ChannelPrefixUser, ChannelPrefixPresence} {
		if id, ok := strings.CutPrefix(channel, prefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
