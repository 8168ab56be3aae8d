package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/logsmarket001/api-fidelity-trust/internal/chat"
	"github.com/logsmarket001/api-fidelity-trust/internal/middleware"
)

type ChatController struct {
	service chat.Service
}

func NewChatController(service chat.Service) *ChatController {
	return &ChatController{service: service}
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func (c *ChatController) SendMessage(ctx *gin.Context) {
	var req sendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	message, err := c.service.SendAsCustomer(ctx.Request.Context(), middleware.CallerID(ctx), req.Message)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, message)
}

func (c *ChatController) ListMessages(ctx *gin.Context) {
	messages, err := c.service.ListMessages(ctx.Request.Context(), middleware.CallerID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

func (c *ChatController) UnreadCount(ctx *gin.Context) {
	count, err := c.service.UnreadForCustomer(ctx.Request.Context(), middleware.CallerID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (c *ChatController) MarkRead(ctx *gin.Context) {
	updated, err := c.service.MarkReadForCustomer(ctx.Request.Context(), middleware.CallerID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Admin handlers.

func (c *ChatController) ListConversations(ctx *gin.Context) {
	conversations, err := c.service.ListConversations(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"conversations": conversations, "count": len(conversations)})
}

func (c *ChatController) ListUserMessages(ctx *gin.Context) {
	messages, err := c.service.ListMessages(ctx.Request.Context(), ctx.Param("userId"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

func (c *ChatController) SendAsAdmin(ctx *gin.Context) {
	var req sendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format", Message: err.Error()})
		return
	}

	message, err := c.service.SendAsAdmin(ctx.Request.Context(), ctx.Param("userId"), req.Message)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, message)
}

func (c *ChatController) MarkReadAsAdmin(ctx *gin.Context) {
	updated, err := c.service.MarkReadForAdmin(ctx.Request.Context(), ctx.Param("userId"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}
