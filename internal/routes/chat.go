package routes

import (
	"github.com/Code-Sangam/Sangam-6704/internal/handlers"
	"github.com/Code-Sangam/Sangam-6704/internal/middleware"
	"github.com/gin-gonic/gin"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.GET("/conversations", h.GetConversations)
		chat.GET("/messages/:userId", h.GetMessages)
		chat.GET("/history/:userId", h.GetHistory)
		chat.GET("/search", h.Search)
		chat.GET("/stats/:userId", h.GetStats)
		chat.GET("/active-users", h.GetActiveUsers)

		chat.POST("/messages", middleware.ChatSendRateLimit(), h.SendMessage)
		chat.PUT("/messages/:messageId", h.EditMessage)
		chat.DELETE("/messages/:messageId", h.DeleteMessage)
		chat.POST("/messages/read", h.MarkRead)
	}
}
