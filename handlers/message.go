package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/services"
	"github.com/qwertys/qwertys-api/utils"
)

// MessageStore is implemented by services.MessageService.
type MessageStore interface {
	ListTemplates(ctx context.Context) ([]models.MessageTemplate, error)
	CreateTemplate(ctx context.Context, req models.MessageTemplateRequest) (*models.MessageTemplate, error)
	UpdateTemplate(ctx context.Context, id string, req models.MessageTemplateRequest) (*models.MessageTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
	Send(ctx context.Context, scope policy.Scope, req models.SendMessageRequest) (*services.SentMessage, error)
}

type MessageHandler struct {
	messages MessageStore
}

func NewMessageHandler(messages MessageStore) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) ListTemplates(c *gin.Context) {
	list, err := h.messages.ListTemplates(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MessageHandler) CreateTemplate(c *gin.Context) {
	var req models.MessageTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tpl, err := h.messages.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *MessageHandler) UpdateTemplate(c *gin.Context) {
	var req models.MessageTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tpl, err := h.messages.UpdateTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (h *MessageHandler) DeleteTemplate(c *gin.Context) {
	if err := h.messages.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Modèle supprimé"})
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sent, err := h.messages.Send(c.Request.Context(), middleware.GetScope(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SafeLog("📧 Message envoyé à %s par %s", sent.To, middleware.GetUserID(c))
	c.JSON(http.StatusOK, sent)
}
