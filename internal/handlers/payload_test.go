package handlers

import (
	"testing"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSendPayload(t *testing.T) {
	p, err := parseSendPayload(map[string]interface{}{
		"receiverId": "bob",
		"content":    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", p.ReceiverID)
	assert.Equal(t, "hello", p.Content)
	assert.Equal(t, models.TypeText, p.MessageType, "type defaults to text")
	assert.Nil(t, p.ReplyToID)
}

func TestParseSendPayloadAttachment(t *testing.T) {
	p, err := parseSendPayload(map[string]interface{}{
		"receiverId":  "bob",
		"content":     "report attached",
		"messageType": "file",
		"fileUrl":     "https://cdn.example.com/report.pdf",
		"fileName":    "report.pdf",
		"fileSize":    float64(2048), // JSON numbers decode as float64
		"fileType":    "application/pdf",
		"replyToId":   "m42",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TypeFile, p.MessageType)
	assert.EqualValues(t, 2048, p.FileSize)
	require.NotNil(t, p.ReplyToID)
	assert.Equal(t, "m42", *p.ReplyToID)
}

func TestParseSendPayloadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data map[string]interface{}
	}{
		{"missing receiver", map[string]interface{}{"content": "hi"}},
		{"missing content", map[string]interface{}{"receiverId": "bob"}},
		{"wrong value types", map[string]interface{}{"receiverId": 42, "content": true}},
		{"unknown message type", map[string]interface{}{"receiverId": "bob", "content": "hi", "messageType": "video"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseSendPayload(tc.data)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
		})
	}
}

func TestParseEditPayload(t *testing.T) {
	p, err := parseEditPayload(map[string]interface{}{"messageId": "m1", "content": "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "m1", p.MessageID)
	assert.Equal(t, "fixed", p.Content)

	_, err = parseEditPayload(map[string]interface{}{"messageId": "m1"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestParseDeletePayload(t *testing.T) {
	p, err := parseDeletePayload(map[string]interface{}{"messageId": "m1", "deleteForEveryone": true})
	require.NoError(t, err)
	assert.True(t, p.DeleteForEveryone)

	p, err = parseDeletePayload(map[string]interface{}{"messageId": "m1"})
	require.NoError(t, err)
	assert.False(t, p.DeleteForEveryone, "flag defaults to per-viewer delete")

	_, err = parseDeletePayload(map[string]interface{}{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestParseReadPayload(t *testing.T) {
	p, err := parseReadPayload(map[string]interface{}{"messageId": "m1", "senderId": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "m1", p.MessageID)
	assert.Equal(t, "alice", p.SenderID)

	_, err = parseReadPayload(map[string]interface{}{"senderId": "alice"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestParseTypingPayload(t *testing.T) {
	p, err := parseTypingPayload(map[string]interface{}{"receiverId": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", p.ReceiverID)

	_, err = parseTypingPayload(map[string]interface{}{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}
