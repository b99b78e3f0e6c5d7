package services

import (
	"context"
	"sort"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
	"github.com/Code-Sangam/Sangam-6704/internal/store"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"gorm.io/gorm"
)

// scanWindow bounds how many recent messages the conversation list
// groups over. Conversations idle beyond the window are omitted; the
// list trades completeness for a cheap single query.
const scanWindow = 200

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	User           models.PublicUser `json:"user"`
	LastMessage    WireMessage       `json:"lastMessage"`
	UnreadCount    int64             `json:"unreadCount"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
}

// ConversationStats aggregates a single two-party conversation.
type ConversationStats struct {
	TotalMessages    int64            `json:"totalMessages"`
	UnreadMessages   int64            `json:"unreadMessages"`
	MessagesSent     int64            `json:"messagesSent"`
	MessagesReceived int64            `json:"messagesReceived"`
	FirstMessageAt   *time.Time       `json:"firstMessageAt"`
	LastMessageAt    *time.Time       `json:"lastMessageAt"`
	MessagesByType   map[string]int64 `json:"messagesByType"`
	MessagesByDay    []DayCount       `json:"messagesByDay"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Conversations derives conversation lists and statistics from the
// message store. It never caches: summaries are recomputed per call.
type Conversations struct {
	db    *gorm.DB
	store *store.Store
}

func NewConversations(db *gorm.DB, st *store.Store) *Conversations {
	return &Conversations{db: db, store: st}
}

// List returns the user's active conversations ordered by most recent
// activity, each with the newest message and the unread count. The
// grouping scans only the newest messages involving the user (bounded
// approximation, see scanWindow).
func (c *Conversations) List(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	if limit < 1 {
		limit = 20
	}

	recent, err := c.store.Recent(ctx, userID, scanWindow)
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]*ConversationSummary)
	for i := range recent {
		msg := &recent[i]

		partnerID := msg.ReceiverID
		partner := msg.Receiver
		if msg.ReceiverID == userID {
			partnerID = msg.SenderID
			partner = msg.Sender
		}

		s, ok := summaries[partnerID]
		if !ok {
			// Messages arrive newest first, so the first hit per
			// partner is the conversation's latest message.
			s = &ConversationSummary{
				User:           partner.Public(),
				LastMessage:    FormatMessage(msg, userID),
				LastActivityAt: msg.CreatedAt,
			}
			summaries[partnerID] = s
		}

		if msg.ReceiverID == userID && msg.ReadAt == nil && !msg.IsDeleted {
			s.UnreadCount++
		}
	}

	out := make([]ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats computes aggregate numbers for the conversation between userID
// and peerID. Pure query, no mutation.
func (c *Conversations) Stats(ctx context.Context, userID, peerID string) (*ConversationStats, error) {
	stats := &ConversationStats{
		MessagesByType: make(map[string]int64),
	}

	pair := func() *gorm.DB {
		return c.db.WithContext(ctx).Model(&models.Message{}).Where(
			"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, peerID, peerID, userID,
		)
	}

	if err := pair().Count(&stats.TotalMessages).Error; err != nil {
		return nil, apperrors.Persistence("failed to compute conversation stats")
	}
	if err := pair().Where("receiver_id = ? AND read_at IS NULL", userID).Count(&stats.UnreadMessages).Error; err != nil {
		return nil, apperrors.Persistence("failed to compute conversation stats")
	}
	if err := c.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ?", userID, peerID).
		Count(&stats.MessagesSent).Error; err != nil {
		return nil, apperrors.Persistence("failed to compute conversation stats")
	}
	if err := c.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ?", peerID, userID).
		Count(&stats.MessagesReceived).Error; err != nil {
		return nil, apperrors.Persistence("failed to compute conversation stats")
	}

	var first, last models.Message
	if err := pair().Order("created_at asc").Limit(1).Find(&first).Error; err == nil && first.ID != "" {
		t := first.CreatedAt
		stats.FirstMessageAt = &t
	}
	if err := pair().Order("created_at desc").Limit(1).Find(&last).Error; err == nil && last.ID != "" {
		t := last.CreatedAt
		stats.LastMessageAt = &t
	}

	var byType []struct {
		MessageType string
		Count       int64
	}
	if err := pair().
		Select("message_type, COUNT(*) as count").
		Group("message_type").
		Scan(&byType).Error; err != nil {
		return nil, apperrors.Persistence("failed to compute conversation stats")
	}
	for _, row := range byType {
		stats.MessagesByType[row.MessageType] = row.Count
	}

	var byDay []struct {
		Date  string
		Count int64
	}
	if err := pair().
		Select("DATE(created_at) as date, COUNT(*) as count").
		Group("DATE(created_at)").
		Order("date desc").
		Limit(30).
		Scan(&byDay).Error; err != nil {
		return nil, apperrors.Persistence("failed to compute conversation stats")
	}
	for _, row := range byDay {
		stats.MessagesByDay = append(stats.MessagesByDay, DayCount{Date: row.Date, Count: row.Count})
	}

	return stats, nil
}
