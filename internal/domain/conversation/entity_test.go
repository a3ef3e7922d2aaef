package conversation

import (
	"testing"
	"time"

	"payam-chat/internal/domain/message"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	low, high := CanonicalPair("BBBBBBBBBB", "AAAAAAAAAA")
	assert.Equal(t, "AAAAAAAAAA", low)
	assert.Equal(t, "BBBBBBBBBB", high)

	low2, high2 := CanonicalPair("AAAAAAAAAA", "BBBBBBBBBB")
	assert.Equal(t, low, low2)
	assert.Equal(t, high, high2)
}

func TestCounterpart(t *testing.T) {
	c := Conversation{ParticipantLow: "AAAAAAAAAA", ParticipantHigh: "BBBBBBBBBB"}
	assert.Equal(t, "BBBBBBBBBB", c.Counterpart("AAAAAAAAAA"))
	assert.Equal(t, "AAAAAAAAAA", c.Counterpart("BBBBBBBBBB"))
	assert.True(t, c.HasParticipant("AAAAAAAAAA"))
	assert.False(t, c.HasParticipant("CCCCCCCCCC"))
}

func TestSummaryPreview(t *testing.T) {
	empty := Summary{}
	assert.Equal(t, NoMessagesPreview, empty.Preview())
	assert.True(t, empty.LastActivity().IsZero())

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := Summary{LastMessage: &message.Message{Content: "hello", CreatedAt: at}}
	assert.Equal(t, "hello", s.Preview())
	assert.Equal(t, at, s.LastActivity())
}
