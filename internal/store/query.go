package store

import (
	"context"
	"errors"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"github.com/Code-Sangam/Sangam-6704/pkg/utils"
	"gorm.io/gorm"
)

// Page carries offset-pagination metadata mirrored by the REST surface.
type Page struct {
	CurrentPage   int   `json:"currentPage"`
	TotalPages    int   `json:"totalPages"`
	TotalMessages int64 `json:"totalMessages"`
	HasNext       bool  `json:"hasNext"`
	HasPrev       bool  `json:"hasPrev"`
}

// ConversationQuery filters a two-party message listing.
type ConversationQuery struct {
	Page        int
	Limit       int
	Search      string
	MessageType models.MessageType
	DateFrom    *time.Time
	DateTo      *time.Time
	UnreadOnly  bool
}

// HistoryQuery drives cursor pagination over a conversation. Before and
// After are createdAt cursors; AroundID loads a window centered on one
// message. At most one of the three is honored, in that order.
type HistoryQuery struct {
	Limit    int
	Before   *time.Time
	After    *time.Time
	AroundID string
}

// SearchQuery filters a cross-conversation content search.
type SearchQuery struct {
	Page        int
	Limit       int
	MessageType models.MessageType
	PeerID      string
	DateFrom    *time.Time
	DateTo      *time.Time
}

func normalizePage(page, limit, defLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func buildPage(page, limit int, total int64, fetched int) Page {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	offset := (page - 1) * limit
	return Page{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalMessages: total,
		HasNext:       int64(offset+fetched) < total,
		HasPrev:       page > 1,
	}
}

// betweenUsers scopes a query to the two directions of one conversation.
func betweenUsers(db *gorm.DB, userA, userB string) *gorm.DB {
	return db.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userA, userB, userB, userA,
	)
}

// visibleTo drops rows the viewer removed with a per-viewer delete.
// Tombstoned (deleted-for-everyone) rows stay visible to both parties.
func visibleTo(db *gorm.DB, viewerID string) *gorm.DB {
	return db.Where(
		"deleted_by IS NULL OR is_deleted = ? OR deleted_by <> ?",
		true, viewerID,
	)
}

// Conversation returns messages between viewer and peer, ascending by
// creation time, with offset pagination and optional filters.
func (s *Store) Conversation(ctx context.Context, viewerID, peerID string, q ConversationQuery) ([]models.Message, Page, error) {
	page, limit := normalizePage(q.Page, q.Limit, 50, 100)

	base := s.db.WithContext(ctx).Model(&models.Message{})
	base = betweenUsers(base, viewerID, peerID)
	base = visibleTo(base, viewerID)

	if q.Search != "" {
		base = base.Where("LOWER(content) LIKE LOWER(?)", utils.SanitizeSearchQuery(q.Search))
	}
	if q.MessageType != "" {
		base = base.Where("message_type = ?", q.MessageType)
	}
	if q.DateFrom != nil {
		base = base.Where("created_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		base = base.Where("created_at <= ?", *q.DateTo)
	}
	if q.UnreadOnly {
		base = base.Where("receiver_id = ? AND read_at IS NULL", viewerID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, Page{}, apperrors.Persistence("failed to count messages")
	}

	var messages []models.Message
	err := base.
		Preload("Sender").Preload("Receiver").
		Order("created_at asc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, Page{}, apperrors.Persistence("failed to fetch messages")
	}

	return messages, buildPage(page, limit, total, len(messages)), nil
}

// History returns a cursor-paginated slice of a conversation, always
// ascending by creation time regardless of scroll direction.
func (s *Store) History(ctx context.Context, viewerID, peerID string, q HistoryQuery) ([]models.Message, error) {
	_, limit := normalizePage(1, q.Limit, 50, 100)

	base := s.db.WithContext(ctx).Model(&models.Message{})
	base = betweenUsers(base, viewerID, peerID)
	base = visibleTo(base, viewerID)

	switch {
	case q.Before != nil:
		var messages []models.Message
		err := base.Where("created_at < ?", *q.Before).
			Preload("Sender").Preload("Receiver").
			Order("created_at desc").
			Limit(limit).
			Find(&messages).Error
		if err != nil {
			return nil, apperrors.Persistence("failed to fetch message history")
		}
		reverseMessages(messages)
		return messages, nil

	case q.After != nil:
		var messages []models.Message
		err := base.Where("created_at > ?", *q.After).
			Preload("Sender").Preload("Receiver").
			Order("created_at asc").
			Limit(limit).
			Find(&messages).Error
		if err != nil {
			return nil, apperrors.Persistence("failed to fetch message history")
		}
		return messages, nil

	case q.AroundID != "":
		return s.historyAround(ctx, viewerID, peerID, q.AroundID, limit)

	default:
		// Latest window
		var messages []models.Message
		err := base.
			Preload("Sender").Preload("Receiver").
			Order("created_at desc").
			Limit(limit).
			Find(&messages).Error
		if err != nil {
			return nil, apperrors.Persistence("failed to fetch message history")
		}
		reverseMessages(messages)
		return messages, nil
	}
}

// historyAround loads half a window before and half after the target
// message, so a client can jump to a search hit in context.
func (s *Store) historyAround(ctx context.Context, viewerID, peerID, targetID string, limit int) ([]models.Message, error) {
	var target models.Message
	if err := s.db.WithContext(ctx).First(&target, "id = ?", targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, apperrors.Persistence("failed to load target message")
	}

	half := limit / 2

	beforeQ := betweenUsers(s.db.WithContext(ctx).Model(&models.Message{}), viewerID, peerID)
	beforeQ = visibleTo(beforeQ, viewerID)
	var before []models.Message
	err := beforeQ.Where("created_at < ?", target.CreatedAt).
		Preload("Sender").Preload("Receiver").
		Order("created_at desc").
		Limit(half).
		Find(&before).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to fetch message history")
	}

	afterQ := betweenUsers(s.db.WithContext(ctx).Model(&models.Message{}), viewerID, peerID)
	afterQ = visibleTo(afterQ, viewerID)
	var after []models.Message
	err = afterQ.Where("created_at >= ?", target.CreatedAt).
		Preload("Sender").Preload("Receiver").
		Order("created_at asc").
		Limit(half + 1).
		Find(&after).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to fetch message history")
	}

	reverseMessages(before)
	return append(before, after...), nil
}

// Search matches content case-insensitively across every conversation
// the user participates in, newest first.
func (s *Store) Search(ctx context.Context, userID, query string, q SearchQuery) ([]models.Message, Page, error) {
	page, limit := normalizePage(q.Page, q.Limit, 20, 100)

	base := s.db.WithContext(ctx).Model(&models.Message{})
	if q.PeerID != "" {
		base = betweenUsers(base, userID, q.PeerID)
	} else {
		base = base.Where("sender_id = ? OR receiver_id = ?", userID, userID)
	}
	base = visibleTo(base, userID)
	base = base.Where("is_deleted = ?", false)
	base = base.Where("LOWER(content) LIKE LOWER(?)", utils.SanitizeSearchQuery(query))

	if q.MessageType != "" {
		base = base.Where("message_type = ?", q.MessageType)
	}
	if q.DateFrom != nil {
		base = base.Where("created_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		base = base.Where("created_at <= ?", *q.DateTo)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, Page{}, apperrors.Persistence("failed to count search results")
	}

	var messages []models.Message
	err := base.
		Preload("Sender").Preload("Receiver").
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, Page{}, apperrors.Persistence("failed to search messages")
	}

	return messages, buildPage(page, limit, total, len(messages)), nil
}

// Recent returns the newest messages involving userID, used by the
// conversation aggregator's bounded scan.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID)
	q = visibleTo(q, userID)

	err := q.
		Preload("Sender").Preload("Receiver").
		Order("created_at desc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to fetch recent messages")
	}
	return messages, nil
}

func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
