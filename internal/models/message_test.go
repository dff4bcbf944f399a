package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	cases := []struct {
		name    string
		msgType string
		content string
		want    string
	}{
		{
			name:    "short text passes through",
			msgType: MessageTypeText,
			content: "sounds good",
			want:    "sounds good",
		},
		{
			name:    "long text is cut with a marker",
			msgType: MessageTypeText,
			content: strings.Repeat("a", 40),
			want:    strings.Repeat("a", 30) + "...",
		},
		{
			name:    "text at the limit is untouched",
			msgType: MessageTypeText,
			content: strings.Repeat("a", 30),
			want:    strings.Repeat("a", 30),
		},
		{
			name:    "image uses a fixed placeholder",
			msgType: MessageTypeImage,
			content: "https://cdn.tradepost.local/item.jpg",
			want:    "Sent a photo",
		},
		{
			name:    "link carries a prefixed url preview",
			msgType: MessageTypeLink,
			content: "https://example.com/listings/vintage-road-bike-54cm",
			want:    "Shared a link: https://example.com/listings/v...",
		},
		{
			name:    "short link is not cut",
			msgType: MessageTypeLink,
			content: "https://example.com",
			want:    "Shared a link: https://example.com",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Message{Content: tc.content, Type: tc.msgType}
			assert.Equal(t, tc.want, m.Summary())
		})
	}
}

func TestValidMessageType(t *testing.T) {
	assert.True(t, ValidMessageType(MessageTypeText))
	assert.True(t, ValidMessageType(MessageTypeImage))
	assert.True(t, ValidMessageType(MessageTypeLink))
	assert.False(t, ValidMessageType(""))
	assert.False(t, ValidMessageType("gif"))
}
