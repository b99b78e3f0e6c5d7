package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Code-Sangam/Sangam-6704/internal/database"
	"github.com/Code-Sangam/Sangam-6704/internal/models"
	"github.com/Code-Sangam/Sangam-6704/internal/presence"
	"github.com/Code-Sangam/Sangam-6704/internal/services"
	"github.com/Code-Sangam/Sangam-6704/internal/store"
	apperrors "github.com/Code-Sangam/Sangam-6704/pkg/errors"
	"github.com/gin-gonic/gin"
)

// ChatHandler is the REST fallback for non-realtime clients. It applies
// the same rules as the socket path and pushes the matching socket
// events so live clients stay in sync with HTTP mutations.
type ChatHandler struct {
	Store         *store.Store
	Conversations *services.Conversations
	Presence      *presence.Tracker
	Gateway       *ChatGateway
}

func NewChatHandler(st *store.Store, conv *services.Conversations, tracker *presence.Tracker, gw *ChatGateway) *ChatHandler {
	return &ChatHandler{Store: st, Conversations: conv, Presence: tracker, Gateway: gw}
}

func (h *ChatHandler) fail(c *gin.Context, err error) {
	c.JSON(apperrors.StatusCode(err), gin.H{"error": err.Error()})
}

func parseTimeParam(c *gin.Context, key string) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}

func intParam(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

// GetMessages returns a page of the conversation with another user.
// GET /api/chat/messages/:userId
func (h *ChatHandler) GetMessages(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)
	otherUserID := c.Param("userId")

	q := store.ConversationQuery{
		Page:        intParam(c, "page", 1),
		Limit:       intParam(c, "limit", 50),
		Search:      c.Query("search"),
		MessageType: models.MessageType(c.Query("messageType")),
		DateFrom:    parseTimeParam(c, "dateFrom"),
		DateTo:      parseTimeParam(c, "dateTo"),
		UnreadOnly:  c.Query("unreadOnly") == "true",
	}

	messages, page, err := h.Store.Conversation(c.Request.Context(), currentUserID, otherUserID, q)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   services.FormatMessages(messages, currentUserID),
		"pagination": page,
	})
}

// GetHistory returns a cursor-paginated window of the conversation.
// GET /api/chat/history/:userId?before=...&after=...&messageId=...
func (h *ChatHandler) GetHistory(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)
	otherUserID := c.Param("userId")

	q := store.HistoryQuery{
		Limit:    intParam(c, "limit", 50),
		Before:   parseTimeParam(c, "before"),
		After:    parseTimeParam(c, "after"),
		AroundID: c.Query("messageId"),
	}

	messages, err := h.Store.History(c.Request.Context(), currentUserID, otherUserID, q)
	if err != nil {
		h.fail(c, err)
		return
	}

	var cursor interface{}
	if len(messages) > 0 {
		cursor = messages[0].CreatedAt
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": services.FormatMessages(messages, currentUserID),
		"hasMore":  len(messages) >= q.Limit && q.Limit > 0,
		"cursor":   cursor,
	})
}

// Search matches message content across all the user's conversations.
// GET /api/chat/search?q=...
func (h *ChatHandler) Search(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)

	query := c.Query("q")
	if query == "" {
		h.fail(c, apperrors.Validation("search query is required"))
		return
	}

	q := store.SearchQuery{
		Page:        intParam(c, "page", 1),
		Limit:       intParam(c, "limit", 20),
		MessageType: models.MessageType(c.Query("messageType")),
		PeerID:      c.Query("conversationWith"),
		DateFrom:    parseTimeParam(c, "dateFrom"),
		DateTo:      parseTimeParam(c, "dateTo"),
	}

	messages, page, err := h.Store.Search(c.Request.Context(), currentUserID, query, q)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   services.FormatMessages(messages, currentUserID),
		"pagination": page,
	})
}

// GetStats returns aggregate numbers for one conversation.
// GET /api/chat/stats/:userId
func (h *ChatHandler) GetStats(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)
	otherUserID := c.Param("userId")

	stats, err := h.Conversations.Stats(c.Request.Context(), currentUserID, otherUserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetConversations lists the user's active conversations.
// GET /api/chat/conversations
func (h *ChatHandler) GetConversations(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)

	summaries, err := h.Conversations.List(c.Request.Context(), currentUserID, intParam(c, "limit", 20))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetActiveUsers returns the ids of currently connected users.
// GET /api/chat/active-users
func (h *ChatHandler) GetActiveUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"activeUsers": h.Presence.OnlineUsers()})
}

type sendMessageRequest struct {
	ReceiverID  string `json:"receiverId" binding:"required"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"messageType"`
	FileURL     string `json:"fileUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	FileType    string `json:"fileType"`
	ReplyToID   string `json:"replyToId"`
}

// SendMessage persists a message and pushes it to a live receiver.
// POST /api/chat/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	senderID := c.MustGet("userId").(string)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.Validation("receiverId and content are required"))
		return
	}

	if ok, _ := database.CheckRateLimit(senderID, sendRateLimit, sendRateWindow); !ok {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "you are sending messages too quickly"})
		return
	}

	msgType := models.MessageType(req.MessageType)
	if msgType == "" {
		msgType = models.TypeText
	}

	in := store.CreateInput{
		SenderID:    senderID,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: msgType,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		FileType:    req.FileType,
	}
	if req.ReplyToID != "" {
		in.ReplyToID = &req.ReplyToID
	}

	msg, err := h.Store.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.Gateway != nil && h.Presence.IsOnline(msg.ReceiverID) {
		h.Gateway.Server.BroadcastToRoom("/", userRoom(msg.ReceiverID), "message:receive",
			services.FormatMessage(msg, msg.ReceiverID))
	}

	c.JSON(http.StatusCreated, gin.H{"message": services.FormatMessage(msg, senderID)})
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage rewrites a message within the edit window.
// PUT /api/chat/messages/:messageId
func (h *ChatHandler) EditMessage(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)
	messageID := c.Param("messageId")

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.Validation("content is required"))
		return
	}

	msg, err := h.Store.Edit(c.Request.Context(), messageID, currentUserID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.Gateway != nil && h.Presence.IsOnline(msg.ReceiverID) {
		h.Gateway.Server.BroadcastToRoom("/", userRoom(msg.ReceiverID), "message:edited",
			services.FormatMessage(msg, msg.ReceiverID))
	}

	c.JSON(http.StatusOK, gin.H{"message": services.FormatMessage(msg, currentUserID)})
}

// DeleteMessage removes a message, for everyone when requested.
// DELETE /api/chat/messages/:messageId?forEveryone=true
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)
	messageID := c.Param("messageId")
	forEveryone := c.Query("forEveryone") == "true"

	msg, err := h.Store.Delete(c.Request.Context(), messageID, currentUserID, forEveryone)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.Gateway != nil && msg.IsDeleted {
		peerID := msg.ReceiverID
		if peerID == currentUserID {
			peerID = msg.SenderID
		}
		if h.Presence.IsOnline(peerID) {
			h.Gateway.Server.BroadcastToRoom("/", userRoom(peerID), "message:deleted", map[string]interface{}{
				"messageId":          msg.ID,
				"deletedForEveryone": true,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"messageId":          msg.ID,
		"deletedForEveryone": msg.IsDeleted,
	})
}

type markReadRequest struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId"`
}

// MarkRead marks a single message (messageId) or a whole conversation
// (senderId) as read, notifying the sender's live connections.
// POST /api/chat/messages/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	currentUserID := c.MustGet("userId").(string)

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperrors.Validation("messageId or senderId is required"))
		return
	}

	if req.MessageID != "" {
		msg, err := h.Store.MarkRead(c.Request.Context(), req.MessageID, currentUserID)
		if err != nil {
			h.fail(c, err)
			return
		}

		if h.Gateway != nil && h.Presence.IsOnline(msg.SenderID) {
			h.Gateway.Server.BroadcastToRoom("/", userRoom(msg.SenderID), "message:read", map[string]interface{}{
				"messageId": msg.ID,
				"readBy":    currentUserID,
				"readAt":    msg.ReadAt,
			})
		}

		c.JSON(http.StatusOK, gin.H{"markedRead": 1, "readAt": msg.ReadAt})
		return
	}

	if req.SenderID == "" {
		h.fail(c, apperrors.Validation("messageId or senderId is required"))
		return
	}

	count, err := h.Store.MarkConversationRead(c.Request.Context(), currentUserID, req.SenderID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.Gateway != nil && count > 0 && h.Presence.IsOnline(req.SenderID) {
		h.Gateway.Server.BroadcastToRoom("/", userRoom(req.SenderID), "message:read", map[string]interface{}{
			"readBy": currentUserID,
			"readAt": time.Now(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"markedRead": count})
}
