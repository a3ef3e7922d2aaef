package message

import (
	"strings"
	"testing"

	payam_errors "payam-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareContent(t *testing.T) {
	got, err := PrepareContent(TypeText, "  hello  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = PrepareContent(TypeText, "   ", nil)
	assert.ErrorIs(t, err, payam_errors.ErrEmptyContent)

	_, err = PrepareContent(TypeText, strings.Repeat("a", MaxContentLength+1), nil)
	assert.ErrorIs(t, err, payam_errors.ErrContentTooLong)

	// the limit counts characters, not bytes
	got, err = PrepareContent(TypeText, strings.Repeat("س", MaxContentLength), nil)
	require.NoError(t, err)
	assert.Len(t, []rune(got), MaxContentLength)
}

func TestPrepareContent_Attachments(t *testing.T) {
	att := &Attachment{Path: "attachments/ab_photo.png", OriginalName: "photo.png", SizeBytes: 10}

	got, err := PrepareContent(TypeImage, strings.Repeat("x", 5000), att)
	require.NoError(t, err)
	assert.Equal(t, "[image]", got)

	_, err = PrepareContent(TypeFile, "", nil)
	assert.ErrorIs(t, err, payam_errors.ErrInvalidInput)

	_, err = PrepareContent(TypeText, "hi", att)
	assert.ErrorIs(t, err, payam_errors.ErrInvalidInput)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("")
	assert.True(t, ok)
	assert.Equal(t, TypeText, typ)

	typ, ok = ParseType("audio")
	assert.True(t, ok)
	assert.Equal(t, TypeAudio, typ)

	_, ok = ParseType("video")
	assert.False(t, ok)
}

func TestDeliverable_PrivateAndGroup(t *testing.T) {
	private := []Message{
		{Seq: 1, SenderID: "AAAAAAAAAA"},
		{Seq: 2, SenderID: "BBBBBBBBBB"},
		{Seq: 3, SenderID: "BBBBBBBBBB", Delivered: true, Read: true},
	}
	assert.Equal(t, 1, CountUnread(private, "AAAAAAAAAA"))
	assert.Equal(t, 1, CountUnread(private, "BBBBBBBBBB"))
	assert.Equal(t, int64(3), LastSeq(private))

	group := []GroupMessage{
		{Seq: 1, SenderID: "AAAAAAAAAA", DeliveredTo: []string{"BBBBBBBBBB"}, ReadBy: []string{"BBBBBBBBBB"}},
		{Seq: 2, SenderID: "AAAAAAAAAA", DeliveredTo: []string{"CCCCCCCCCC"}},
	}
	assert.Equal(t, 1, CountUnread(group, "BBBBBBBBBB"))
	assert.Equal(t, 2, CountUnread(group, "CCCCCCCCCC"))
	assert.Equal(t, 0, CountUnread(group, "AAAAAAAAAA"))
	assert.True(t, group[1].IsDeliveredTo("CCCCCCCCCC"))
	assert.False(t, group[1].IsReadBy("CCCCCCCCCC"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("hello", 10))
	assert.Equal(t, "hel...", Preview("hello", 3))
}
