package services

import (
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
)

// WireMessage is the message shape shared by every socket event and
// REST response. Field names are part of the client contract.
type WireMessage struct {
	ID          string             `json:"id"`
	SenderID    string             `json:"senderId"`
	ReceiverID  string             `json:"receiverId"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"messageType"`
	Timestamp   time.Time          `json:"timestamp"`
	ReadAt      *time.Time         `json:"readAt"`
	IsEdited    bool               `json:"isEdited"`
	EditedAt    *time.Time         `json:"editedAt,omitempty"`
	IsDeleted   bool               `json:"isDeleted"`
	DeletedAt   *time.Time         `json:"deletedAt,omitempty"`
	ThreadID    string             `json:"threadId,omitempty"`
	ReplyToID   *string            `json:"replyToId,omitempty"`

	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty"`

	IsOwnMessage bool `json:"isOwnMessage"`
	CanEdit      bool `json:"canEdit"`
	CanDelete    bool `json:"canDelete"`

	Sender   *models.PublicUser `json:"sender,omitempty"`
	Receiver *models.PublicUser `json:"receiver,omitempty"`
}

// FormatMessage converts a stored message into its wire shape for a
// given viewer. Tombstoned messages carry the placeholder content.
func FormatMessage(msg *models.Message, viewerID string) WireMessage {
	content := msg.Content
	if msg.IsDeleted {
		content = models.DeletedPlaceholder
	}

	own := viewerID != "" && msg.SenderID == viewerID

	w := WireMessage{
		ID:           msg.ID,
		SenderID:     msg.SenderID,
		ReceiverID:   msg.ReceiverID,
		Content:      content,
		MessageType:  msg.MessageType,
		Timestamp:    msg.CreatedAt,
		ReadAt:       msg.ReadAt,
		IsEdited:     msg.IsEdited,
		EditedAt:     msg.EditedAt,
		IsDeleted:    msg.IsDeleted,
		DeletedAt:    msg.DeletedAt,
		ThreadID:     msg.ThreadID,
		ReplyToID:    msg.ReplyToID,
		FileURL:      msg.FileURL,
		FileName:     msg.FileName,
		FileSize:     msg.FileSize,
		FileType:     msg.FileType,
		IsOwnMessage: own,
		CanEdit:      own && msg.CanBeEditedBy(viewerID, time.Now()),
		CanDelete:    viewerID != "" && msg.IsParticipant(viewerID) && !msg.IsDeleted,
	}

	if msg.Sender.ID != "" {
		sender := msg.Sender.Public()
		w.Sender = &sender
	}
	if msg.Receiver.ID != "" {
		receiver := msg.Receiver.Public()
		w.Receiver = &receiver
	}

	return w
}

// FormatMessages maps a slice of stored messages for one viewer.
func FormatMessages(msgs []models.Message, viewerID string) []WireMessage {
	out := make([]WireMessage, 0, len(msgs))
	for i := range msgs {
		out = append(out, FormatMessage(&msgs[i], viewerID))
	}
	return out
}
