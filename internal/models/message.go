package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageType string

const (
	TypeText   MessageType = "text"
	TypeImage  MessageType = "image"
	TypeFile   MessageType = "file"
	TypeSystem MessageType = "system"
)

// Message content limits
const (
	MinContentLength = 1
	MaxContentLength = 5000
	MaxFileSize      = 50 * 1024 * 1024 // 50MB
)

// EditWindow bounds both edits and delete-for-everyone.
const EditWindow = 15 * time.Minute

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "[This message was deleted]"

// Message is a direct message between exactly two users.
type Message struct {
	ID string `gorm:"primaryKey;type:text" json:"id"`

	SenderID   string `gorm:"index;type:text;not null" json:"senderId"`
	ReceiverID string `gorm:"index;type:text;not null" json:"receiverId"`

	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"type:text;default:'text';not null" json:"messageType"`

	// Attachment fields, set together for image/file messages
	FileURL  string `gorm:"type:text" json:"fileUrl,omitempty"`
	FileName string `gorm:"type:text" json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	FileType string `gorm:"type:text" json:"fileType,omitempty"`

	// Lifecycle markers
	DeliveredAt *time.Time `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`
	IsEdited    bool       `gorm:"default:false" json:"isEdited"`
	EditedAt    *time.Time `json:"editedAt"`

	// IsDeleted means deleted for everyone (content tombstoned).
	// A per-viewer delete only records DeletedBy/DeletedAt and leaves
	// IsDeleted false, so the counterpart's copy stays intact.
	IsDeleted bool       `gorm:"default:false;index" json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	DeletedBy *string    `gorm:"type:text" json:"deletedBy,omitempty"`

	// Threading
	ThreadID  string  `gorm:"index;type:text" json:"threadId"`
	ReplyToID *string `gorm:"index;type:text" json:"replyToId,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// ThreadIDFor derives the conversation id from the sorted participant
// pair, so both directions of a DM land in the same thread.
func ThreadIDFor(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("thread_%s_%s", userA, userB)
}

// ValidMessageType reports whether t is one of the supported types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeSystem:
		return true
	}
	return false
}

// PrepareForSend normalizes a message before persistence: trims the
// content, stamps delivery and derives the thread id. Kept as a plain
// function (not an ORM hook) so the rules are testable without a DB.
func (m *Message) PrepareForSend(now time.Time) {
	m.Content = strings.TrimSpace(m.Content)
	if m.MessageType == "" {
		m.MessageType = TypeText
	}
	if m.DeliveredAt == nil {
		t := now
		m.DeliveredAt = &t
	}
	if m.ThreadID == "" {
		m.ThreadID = ThreadIDFor(m.SenderID, m.ReceiverID)
	}
}

// ValidateForSend checks the invariants a new message must satisfy.
func (m *Message) ValidateForSend() error {
	if m.SenderID == "" || m.ReceiverID == "" {
		return apperrors.Validation("sender and receiver are required")
	}
	if m.SenderID == m.ReceiverID {
		return apperrors.Validation("cannot send a message to yourself")
	}

	content := strings.TrimSpace(m.Content)
	if utf8.RuneCountInString(content) < MinContentLength {
		return apperrors.Validation("message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperrors.Validation("message content must be between 1 and 5000 characters")
	}

	if !ValidMessageType(m.MessageType) {
		return apperrors.Validation("message type must be one of: text, image, file, system")
	}

	if m.MessageType == TypeImage || m.MessageType == TypeFile {
		if m.FileURL == "" || m.FileName == "" || m.FileType == "" {
			return apperrors.Validation("file url, name and type are required for file/image messages")
		}
		if m.FileSize < 0 || m.FileSize > MaxFileSize {
			return apperrors.Validation("file size cannot exceed 50MB")
		}
	}

	return nil
}

// CanBeEditedBy reports whether userID may still edit this message:
// sender only, text only, not deleted, inside the edit window.
func (m *Message) CanBeEditedBy(userID string, now time.Time) bool {
	return m.SenderID == userID &&
		m.MessageType == TypeText &&
		!m.IsDeleted &&
		now.Sub(m.CreatedAt) <= EditWindow
}

// CanBeDeletedForEveryoneBy reports whether userID may tombstone this
// message for both parties.
func (m *Message) CanBeDeletedForEveryoneBy(userID string, now time.Time) bool {
	return m.SenderID == userID && now.Sub(m.CreatedAt) <= EditWindow
}

// IsParticipant reports whether userID is one of the two parties.
func (m *Message) IsParticipant(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// HiddenFor reports whether the message was removed from userID's view
// by a per-viewer delete.
func (m *Message) HiddenFor(userID string) bool {
	return !m.IsDeleted && m.DeletedBy != nil && *m.DeletedBy == userID
}

// DisplayContent returns the content readers should see.
func (m *Message) DisplayContent() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	switch m.MessageType {
	case TypeImage:
		return "[Image]"
	case TypeFile:
		return fmt.Sprintf("[File: %s]", m.FileName)
	default:
		return m.Content
	}
}
