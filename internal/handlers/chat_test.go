package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/models"
	"github.com/Code-Sangam/Sangam-6704/internal/presence"
	"github.com/Code-Sangam/Sangam-6704/internal/services"
	"github.com/Code-Sangam/Sangam-6704/internal/store"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupHandler(t *testing.T) (*ChatHandler, *gorm.DB) {
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
	} {
		require.NoError(t, db.Create(&u).Error)
	}

	st := store.New(db)
	conv := services.NewConversations(db, st)
	return NewChatHandler(st, conv, presence.NewTracker(), nil), db
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

// testContext builds an authenticated gin context for direct handler calls.
func testContext(t *testing.T, userID, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("userId", userID)
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSendMessageEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	c, w := testContext(t, "alice", http.MethodPost, "/api/chat/messages", gin.H{
		"receiverId": "bob",
		"content":    "hello bob",
	})
	h.SendMessage(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	msg := body["message"].(map[string]interface{})
	assert.Equal(t, "hello bob", msg["content"])
	assert.Equal(t, true, msg["isOwnMessage"])

	var count int64
	db.Model(&models.Message{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSendMessageEndpointValidation(t *testing.T) {
	h, _ := setupHandler(t)

	// Missing required fields
	c, w := testContext(t, "alice", http.MethodPost, "/api/chat/messages", gin.H{"content": "hi"})
	h.SendMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Sending to yourself
	c, w = testContext(t, "alice", http.MethodPost, "/api/chat/messages", gin.H{
		"receiverId": "alice",
		"content":    "hi me",
	})
	h.SendMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown receiver
	c, w = testContext(t, "alice", http.MethodPost, "/api/chat/messages", gin.H{
		"receiverId": "ghost",
		"content":    "anyone there?",
	})
	h.SendMessage(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetMessagesEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	now := time.Now()
	seedMessage(t, db, "m1", "alice", "bob", "first", now.Add(-2*time.Minute))
	seedMessage(t, db, "m2", "bob", "alice", "second", now.Add(-1*time.Minute))

	c, w := testContext(t, "alice", http.MethodGet, "/api/chat/messages/bob?limit=50", nil)
	c.Params = gin.Params{{Key: "userId", Value: "bob"}}
	h.GetMessages(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)

	first := messages[0].(map[string]interface{})
	assert.Equal(t, "first", first["content"])
	assert.Equal(t, true, first["isOwnMessage"])

	pagination := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["totalMessages"])
}

func TestEditMessageEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	seedMessage(t, db, "m1", "alice", "bob", "typo", time.Now())

	c, w := testContext(t, "alice", http.MethodPut, "/api/chat/messages/m1", gin.H{"content": "fixed"})
	c.Params = gin.Params{{Key: "messageId", Value: "m1"}}
	h.EditMessage(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	msg := body["message"].(map[string]interface{})
	assert.Equal(t, "fixed", msg["content"])
	assert.Equal(t, true, msg["isEdited"])
}

func TestEditMessageEndpointExpiredWindow(t *testing.T) {
	h, db := setupHandler(t)

	seedMessage(t, db, "m1", "alice", "bob", "too late", time.Now().Add(-20*time.Minute))

	c, w := testContext(t, "alice", http.MethodPut, "/api/chat/messages/m1", gin.H{"content": "nope"})
	c.Params = gin.Params{{Key: "messageId", Value: "m1"}}
	h.EditMessage(c)

	assert.Equal(t, apperrors.StatusCode(apperrors.EditWindowExpired("")), w.Code)

	var msg models.Message
	require.NoError(t, db.First(&msg, "id = ?", "m1").Error)
	assert.Equal(t, "too late", msg.Content)
}

func TestDeleteMessageEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	seedMessage(t, db, "m1", "alice", "bob", "secret", time.Now())

	c, w := testContext(t, "alice", http.MethodDelete, "/api/chat/messages/m1?forEveryone=true", nil)
	c.Params = gin.Params{{Key: "messageId", Value: "m1"}}
	h.DeleteMessage(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["deletedForEveryone"])

	var msg models.Message
	require.NoError(t, db.First(&msg, "id = ?", "m1").Error)
	assert.True(t, msg.IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, msg.Content)
}

func TestMarkReadEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	seedMessage(t, db, "m1", "alice", "bob", "hi", time.Now())

	c, w := testContext(t, "bob", http.MethodPost, "/api/chat/messages/read", gin.H{"messageId": "m1"})
	h.MarkRead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["markedRead"])
	assert.NotNil(t, body["readAt"])

	// Sender cannot mark their own message read
	seedMessage(t, db, "m2", "alice", "bob", "again", time.Now())
	c, w = testContext(t, "alice", http.MethodPost, "/api/chat/messages/read", gin.H{"messageId": "m2"})
	h.MarkRead(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMarkReadEndpointBulk(t *testing.T) {
	h, db := setupHandler(t)

	now := time.Now()
	seedMessage(t, db, "m1", "alice", "bob", "one", now.Add(-2*time.Minute))
	seedMessage(t, db, "m2", "alice", "bob", "two", now.Add(-1*time.Minute))

	c, w := testContext(t, "bob", http.MethodPost, "/api/chat/messages/read", gin.H{"senderId": "alice"})
	h.MarkRead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 2, body["markedRead"])
}

func TestSearchEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	now := time.Now()
	seedMessage(t, db, "m1", "alice", "bob", "reunion on Friday", now.Add(-2*time.Minute))
	seedMessage(t, db, "m2", "bob", "alice", "see you at the reunion", now.Add(-1*time.Minute))

	c, w := testContext(t, "alice", http.MethodGet, "/api/chat/search?q=reunion", nil)
	h.Search(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["messages"].([]interface{}), 2)

	// Query is mandatory
	c, w = testContext(t, "alice", http.MethodGet, "/api/chat/search", nil)
	h.Search(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConversationsEndpoint(t *testing.T) {
	h, db := setupHandler(t)

	seedMessage(t, db, "m1", "alice", "bob", "hey", time.Now())

	c, w := testContext(t, "bob", http.MethodGet, "/api/chat/conversations", nil)
	h.GetConversations(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	conversations := body["conversations"].([]interface{})
	require.Len(t, conversations, 1)

	conv := conversations[0].(map[string]interface{})
	user := conv["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["id"])
	assert.EqualValues(t, 1, conv["unreadCount"])
}

func TestGetActiveUsersEndpoint(t *testing.T) {
	h, _ := setupHandler(t)
	h.Presence.Join("alice", "conn1")

	c, w := testContext(t, "bob", http.MethodGet, "/api/chat/active-users", nil)
	h.GetActiveUsers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.ElementsMatch(t, []interface{}{"alice"}, body["activeUsers"].([]interface{}))
}
