package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"gorm.io/gorm"
)

// Store is the persistence surface for messages. All mutations use
// conditional updates so racing edit/delete/read requests on the same
// message cannot lose each other's writes.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateInput carries a validated-at-the-boundary send request.
type CreateInput struct {
	SenderID    string
	ReceiverID  string
	Content     string
	MessageType models.MessageType
	FileURL     string
	FileName    string
	FileSize    int64
	FileType    string
	ReplyToID   *string
}

// Create validates and persists a new message. DeliveredAt is stamped
// at creation; offline receivers pick the message up at rest.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Message, error) {
	msg := &models.Message{
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     in.Content,
		MessageType: in.MessageType,
		FileURL:     in.FileURL,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		FileType:    in.FileType,
		ReplyToID:   in.ReplyToID,
	}
	msg.PrepareForSend(time.Now())

	if err := msg.ValidateForSend(); err != nil {
		return nil, err
	}

	var receiver models.User
	if err := s.db.WithContext(ctx).Select("id").First(&receiver, "id = ?", in.ReceiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("receiver not found")
		}
		return nil, apperrors.Persistence("failed to look up receiver")
	}

	if in.ReplyToID != nil {
		var parent models.Message
		if err := s.db.WithContext(ctx).Select("id", "thread_id").First(&parent, "id = ?", *in.ReplyToID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NotFound("reply target not found")
			}
			return nil, apperrors.Persistence("failed to look up reply target")
		}
		if parent.ThreadID != msg.ThreadID {
			return nil, apperrors.Validation("can only reply to a message in the same conversation")
		}
	}

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, apperrors.Persistence("failed to save message")
	}

	return s.Get(ctx, msg.ID)
}

// Get loads a message with both participants preloaded.
func (s *Store) Get(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").Preload("Receiver").
		First(&msg, "id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, apperrors.Persistence("failed to load message")
	}
	return &msg, nil
}

// MarkRead sets ReadAt once. Only the receiver may mark a message read;
// marking an already-read message is a no-op. The conditional update on
// read_at IS NULL keeps racing readers from moving the timestamp.
func (s *Store) MarkRead(ctx context.Context, messageID, readerID string) (*models.Message, error) {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if msg.ReceiverID != readerID {
		return nil, apperrors.Authorization("only the message receiver can mark it as read")
	}

	if msg.ReadAt != nil {
		return msg, nil
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND read_at IS NULL", messageID).
		Update("read_at", now)
	if res.Error != nil {
		return nil, apperrors.Persistence("failed to mark message as read")
	}

	return s.Get(ctx, messageID)
}

// MarkConversationRead marks every unread message from peerID to userID
// as read and returns how many rows changed.
func (s *Store) MarkConversationRead(ctx context.Context, userID, peerID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read_at IS NULL", peerID, userID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return 0, apperrors.Persistence("failed to mark conversation as read")
	}
	return res.RowsAffected, nil
}

// Edit rewrites a text message's content. Sender only, within the
// 15-minute window, and never after a delete.
func (s *Store) Edit(ctx context.Context, messageID, editorID, content string) (*models.Message, error) {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if msg.SenderID != editorID {
		return nil, apperrors.Authorization("you can only edit your own messages")
	}
	if msg.IsDeleted || msg.DeletedBy != nil {
		return nil, apperrors.InvalidState("deleted messages cannot be edited")
	}
	if msg.MessageType != models.TypeText {
		return nil, apperrors.Validation("only text messages can be edited")
	}

	now := time.Now()
	if now.Sub(msg.CreatedAt) > models.EditWindow {
		return nil, apperrors.EditWindowExpired("messages can only be edited within 15 minutes")
	}

	trimmed := strings.TrimSpace(content)
	check := models.Message{
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Content:     trimmed,
		MessageType: msg.MessageType,
	}
	if err := check.ValidateForSend(); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND is_deleted = ?", messageID, false).
		Updates(map[string]interface{}{
			"content":   trimmed,
			"is_edited": true,
			"edited_at": now,
		})
	if res.Error != nil {
		return nil, apperrors.Persistence("failed to edit message")
	}
	if res.RowsAffected == 0 {
		// Lost the race against a concurrent delete.
		return nil, apperrors.InvalidState("deleted messages cannot be edited")
	}

	return s.Get(ctx, messageID)
}

// Delete removes a message from view. With forEveryone the sender may
// tombstone the content for both parties within the 15-minute window;
// an expired forEveryone request fails rather than silently downgrading.
// Otherwise the delete is per-viewer: the counterpart's copy is untouched.
//
// The per-viewer marker is a single column, so when both participants
// delete the same message for themselves the second write replaces the
// first and the message reappears for the first deleter.
func (s *Store) Delete(ctx context.Context, messageID, requesterID string, forEveryone bool) (*models.Message, error) {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if !msg.IsParticipant(requesterID) {
		return nil, apperrors.Authorization("you can only delete your own messages")
	}

	if msg.IsDeleted {
		return msg, nil
	}

	now := time.Now()

	if forEveryone {
		if msg.SenderID != requesterID {
			return nil, apperrors.Authorization("only the sender can delete a message for everyone")
		}
		if now.Sub(msg.CreatedAt) > models.EditWindow {
			return nil, apperrors.DeleteWindowExpired("messages can only be deleted for everyone within 15 minutes")
		}

		res := s.db.WithContext(ctx).Model(&models.Message{}).
			Where("id = ? AND is_deleted = ?", messageID, false).
			Updates(map[string]interface{}{
				"content":    models.DeletedPlaceholder,
				"is_deleted": true,
				"deleted_at": now,
				"deleted_by": requesterID,
			})
		if res.Error != nil {
			return nil, apperrors.Persistence("failed to delete message")
		}
	} else {
		res := s.db.WithContext(ctx).Model(&models.Message{}).
			Where("id = ? AND is_deleted = ?", messageID, false).
			Updates(map[string]interface{}{
				"deleted_at": now,
				"deleted_by": requesterID,
			})
		if res.Error != nil {
			return nil, apperrors.Persistence("failed to delete message")
		}
	}

	return s.Get(ctx, messageID)
}

// UnreadCount counts unread messages addressed to userID, optionally
// restricted to a single sender.
func (s *Store) UnreadCount(ctx context.Context, userID, fromID string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL AND is_deleted = ?", userID, false)
	if fromID != "" {
		q = q.Where("sender_id = ?", fromID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, apperrors.Persistence("failed to count unread messages")
	}
	return count, nil
}
