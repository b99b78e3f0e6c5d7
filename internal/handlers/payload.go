package handlers

import (
	"github.com/Code-Sangam/Sangam-6704/internal/models"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
)

// Socket.io delivers payloads as loosely-typed maps. Each event decodes
// into a typed payload here, before anything touches the store.

type sendPayload struct {
	ReceiverID  string
	Content     string
	MessageType models.MessageType
	FileURL     string
	FileName    string
	FileSize    int64
	FileType    string
	ReplyToID   *string
}

type editPayload struct {
	MessageID string
	Content   string
}

type deletePayload struct {
	MessageID         string
	DeleteForEveryone bool
}

type readPayload struct {
	MessageID string
	SenderID  string
}

type typingPayload struct {
	ReceiverID string
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func boolField(data map[string]interface{}, key string) bool {
	v, _ := data[key].(bool)
	return v
}

func numberField(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func parseSendPayload(data map[string]interface{}) (sendPayload, error) {
	p := sendPayload{
		ReceiverID:  stringField(data, "receiverId"),
		Content:     stringField(data, "content"),
		MessageType: models.MessageType(stringField(data, "messageType")),
		FileURL:     stringField(data, "fileUrl"),
		FileName:    stringField(data, "fileName"),
		FileSize:    numberField(data, "fileSize"),
		FileType:    stringField(data, "fileType"),
	}
	if p.MessageType == "" {
		p.MessageType = models.TypeText
	}
	if replyTo := stringField(data, "replyToId"); replyTo != "" {
		p.ReplyToID = &replyTo
	}

	if p.ReceiverID == "" {
		return p, apperrors.Validation("receiverId is required")
	}
	if p.Content == "" {
		return p, apperrors.Validation("message content cannot be empty")
	}
	if !models.ValidMessageType(p.MessageType) {
		return p, apperrors.Validation("message type must be one of: text, image, file, system")
	}
	return p, nil
}

func parseEditPayload(data map[string]interface{}) (editPayload, error) {
	p := editPayload{
		MessageID: stringField(data, "messageId"),
		Content:   stringField(data, "content"),
	}
	if p.MessageID == "" || p.Content == "" {
		return p, apperrors.Validation("messageId and content are required")
	}
	return p, nil
}

func parseDeletePayload(data map[string]interface{}) (deletePayload, error) {
	p := deletePayload{
		MessageID:         stringField(data, "messageId"),
		DeleteForEveryone: boolField(data, "deleteForEveryone"),
	}
	if p.MessageID == "" {
		return p, apperrors.Validation("messageId is required")
	}
	return p, nil
}

func parseReadPayload(data map[string]interface{}) (readPayload, error) {
	p := readPayload{
		MessageID: stringField(data, "messageId"),
		SenderID:  stringField(data, "senderId"),
	}
	if p.MessageID == "" {
		return p, apperrors.Validation("messageId is required")
	}
	return p, nil
}

func parseTypingPayload(data map[string]interface{}) (typingPayload, error) {
	p := typingPayload{ReceiverID: stringField(data, "receiverId")}
	if p.ReceiverID == "" {
		return p, apperrors.Validation("receiverId is required")
	}
	return p, nil
}
