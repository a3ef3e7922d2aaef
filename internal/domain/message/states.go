package message

import "slices"

// Deliverable is the delivery view shared by private and group messages.
// A private message keeps one delivered flag and one read flag for its only
// recipient; a group message keeps a set of member ids for each.
type Deliverable interface {
	AuthorID() string
	Sequence() int64
	IsDeliveredTo(userID string) bool
	IsReadBy(userID string) bool
}

func (m Message) AuthorID() string { return m.SenderID }
func (m Message) Sequence() int64  { return m.Seq }

func (m Message) IsDeliveredTo(userID string) bool {
	return userID == m.SenderID || m.Delivered
}

func (m Message) IsReadBy(userID string) bool {
	return userID == m.SenderID || m.Read
}

func (m GroupMessage) AuthorID() string { return m.SenderID }
func (m GroupMessage) Sequence() int64  { return m.Seq }

func (m GroupMessage) IsDeliveredTo(userID string) bool {
	return userID == m.SenderID || slices.Contains(m.DeliveredTo, userID)
}

func (m GroupMessage) IsReadBy(userID string) bool {
	return userID == m.SenderID || slices.Contains(m.ReadBy, userID)
}

// IsUnreadFor is true for messages written by someone else that userID has not read.
func IsUnreadFor(d Deliverable, userID string) bool {
	return d.AuthorID() != userID && !d.IsReadBy(userID)
}

func CountUnread[T Deliverable](items []T, userID string) int {
	n := 0
	for _, item := range items {
		if IsUnreadFor(item, userID) {
			n++
		}
	}
	return n
}

// LastSeq returns the highest sequence number in items, or 0.
func LastSeq[T Deliverable](items []T) int64 {
	var last int64
	for _, item := range items {
		if s := item.Sequence(); s > last {
			last = s
		}
	}
	return last
}
