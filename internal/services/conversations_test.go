package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
	"github.com/Code-Sangam/Sangam-6704/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Message{}))

	for _, u := range []models.User{
		{ID: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Anand", Role: models.RoleAlumni, IsActive: true},
		{ID: "bob", Email: "bob@example.com", FirstName: "Bob", LastName: "Bose", Role: models.RoleStudent, IsActive: true},
		{ID: "carol", Email: "carol@example.com", FirstName: "Carol", LastName: "Chandra", Role: models.RoleStudent, IsActive: true},
	} {
		require.NoError(t, db.Create(&u).Error)
	}

	return db
}

func seedMessage(t *testing.T, db *gorm.DB, id, sender, receiver, content string, createdAt time.Time) *models.Message {
	t.Helper()
	msg := &models.Message{
		ID:          id,
		SenderID:    sender,
		ReceiverID:  receiver,
		Content:     content,
		MessageType: models.TypeText,
		ThreadID:    models.ThreadIDFor(sender, receiver),
		CreatedAt:   createdAt,
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestConversationListGroupsByPartner(t *testing.T) {
	db := setupTestDB(t)
	c := NewConversations(db, store.New(db))
	ctx := context.Background()

	now := time.Now()
	// Alice sends three to Bob and two to Carol: she should see exactly
	// two conversations, Carol's first (more recent activity).
	seedMessage(t, db, "b1", "alice", "bob", "hey bob", now.Add(-5*time.Minute))
	seedMessage(t, db, "b2", "alice", "bob", "you there?", now.Add(-4*time.Minute))
	seedMessage(t, db, "b3", "alice", "bob", "ping", now.Add(-3*time.Minute))
	seedMessage(t, db, "c1", "alice", "carol", "hi carol", now.Add(-2*time.Minute))
	seedMessage(t, db, "c2", "alice", "carol", "lunch?", now.Add(-1*time.Minute))

	list, err := c.List(ctx, "alice", 20)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "carol", list[0].User.ID)
	assert.Equal(t, "lunch?", list[0].LastMessage.Content)
	assert.Equal(t, "bob", list[1].User.ID)
	assert.Equal(t, "ping", list[1].LastMessage.Content)

	// Alice sent everything, so nothing is unread for her
	assert.EqualValues(t, 0, list[0].UnreadCount)
	assert.EqualValues(t, 0, list[1].UnreadCount)
}

func TestConversationListUnreadCounts(t *testing.T) {
	db := setupTestDB(t)
	c := NewConversations(db, store.New(db))
	ctx := context.Background()

	now := time.Now()
	seedMessage(t, db, "m1", "alice", "bob", "one", now.Add(-3*time.Minute))
	seedMessage(t, db, "m2", "alice", "bob", "two", now.Add(-2*time.Minute))
	read := seedMessage(t, db, "m3", "alice", "bob", "three", now.Add(-1*time.Minute))
	readAt := now
	read.ReadAt = &readAt
	require.NoError(t, db.Save(read).Error)

	list, err := c.List(ctx, "bob", 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].User.ID)
	assert.EqualValues(t, 2, list[0].UnreadCount)
}

func TestConversationListLimit(t *testing.T) {
	db := setupTestDB(t)
	c := NewConversations(db, store.New(db))
	ctx := context.Background()

	now := time.Now()
	seedMessage(t, db, "m1", "alice", "bob", "hi", now.Add(-2*time.Minute))
	seedMessage(t, db, "m2", "alice", "carol", "hi", now.Add(-1*time.Minute))

	list, err := c.List(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "carol", list[0].User.ID)
}

func TestConversationListEmpty(t *testing.T) {
	db := setupTestDB(t)
	c := NewConversations(db, store.New(db))

	list, err := c.List(context.Background(), "alice", 20)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConversationStats(t *testing.T) {
	db := setupTestDB(t)
	c := NewConversations(db, store.New(db))
	ctx := context.Background()

	now := time.Now()
	seedMessage(t, db, "m1", "alice", "bob", "one", now.Add(-48*time.Hour))
	seedMessage(t, db, "m2", "alice", "bob", "two", now.Add(-1*time.Hour))
	seedMessage(t, db, "m3", "bob", "alice", "reply", now.Add(-30*time.Minute))
	// Another conversation must not leak into the pair stats
	seedMessage(t, db, "x1", "alice", "carol", "other", now)

	stats, err := c.Stats(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.TotalMessages)
	assert.EqualValues(t, 2, stats.MessagesSent)
	assert.EqualValues(t, 1, stats.MessagesReceived)
	assert.EqualValues(t, 1, stats.UnreadMessages)
	require.NotNil(t, stats.FirstMessageAt)
	require.NotNil(t, stats.LastMessageAt)
	assert.True(t, stats.FirstMessageAt.Before(*stats.LastMessageAt))
	assert.EqualValues(t, 3, stats.MessagesByType[string(models.TypeText)])
	assert.GreaterOrEqual(t, len(stats.MessagesByDay), 2)
}

func TestConversationStatsEmptyPair(t *testing.T) {
	db := setupTestDB(t)
	c := NewConversations(db, store.New(db))

	stats, err := c.Stats(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalMessages)
	assert.Nil(t, stats.FirstMessageAt)
	assert.Nil(t, stats.LastMessageAt)
}
