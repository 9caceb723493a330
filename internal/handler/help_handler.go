package handler

import (
	"errors"
	"net/http"
	"strconv"

	"seha-backend/internal/domain/help"
	"seha-backend/internal/services"
	"seha-backend/internal/transport/httpdto"
	seha_errors "seha-backend/pkg/errors"
	"seha-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HelpHandler exposes the help-conversation REST surface.
type HelpHandler struct {
	service *services.HelpService
	log     *logger.Logger
}

func NewHelpHandler(service *services.HelpService, log *logger.Logger) *HelpHandler {
	return &HelpHandler{service: service, log: log}
}

func (h *HelpHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request body"))
		return
	}
	if req.InitialMessage == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("initialMessage required"))
		return
	}

	conv, err := h.service.Create(c.Request.Context(), services.CreateConversationInput{
		Title:          req.Title,
		Name:           req.Name,
		AnonID:         req.AnonID,
		InitialMessage: req.InitialMessage,
		Topic:          req.Topic,
		Details:        req.Details,
	}, h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.ConversationResponse{Conversation: conv})
}

func (h *HelpHandler) Append(c *gin.Context) {
	var req httpdto.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request body"))
		return
	}

	var meta *help.Meta
	if req.Topic != "" || req.Details != "" {
		meta = &help.Meta{Topic: req.Topic, Details: req.Details}
	}

	msg, conv, err := h.service.Append(c.Request.Context(), c.Param("id"), req.Text, meta, h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.MessageResponse{Message: msg, Conversation: conv})
}

func (h *HelpHandler) GetOne(c *gin.Context) {
	conv, err := h.service.GetByRef(c.Request.Context(), c.Param("id"), h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.ConversationResponse{Conversation: conv})
}

func (h *HelpHandler) GetMine(c *gin.Context) {
	identity, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("Not authenticated"))
		return
	}
	conv, err := h.service.GetForUser(c.Request.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, seha_errors.ErrNotFound) {
			c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("No conversation"))
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.ConversationResponse{Conversation: conv})
}

func (h *HelpHandler) GetByAnonID(c *gin.Context) {
	conv, err := h.service.GetByAnonID(c.Request.Context(), c.Param("anonId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.ConversationResponse{Conversation: conv})
}

func (h *HelpHandler) AdminList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.service.ListForAdmin(c.Request.Context(), page, limit, h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HelpHandler) MarkRead(c *gin.Context) {
	conv, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OkResponse{Ok: true, Conversation: &conv})
}

func (h *HelpHandler) Close(c *gin.Context) {
	conv, err := h.service.Close(c.Request.Context(), c.Param("id"), h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OkResponse{Ok: true, Conversation: &conv})
}

func (h *HelpHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), h.actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OkResponse{Ok: true})
}

func (h *HelpHandler) DeleteMessage(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("mid"))
	if err != nil {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("Message not found"))
		return
	}
	conv, err := h.service.DeleteMessage(c.Request.Context(), c.Param("id"), messageID, h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.OkResponse{Ok: true, Conversation: &conv})
}

func (h *HelpHandler) actor(c *gin.Context) services.Actor {
	actor := services.Actor{AnonID: c.Query("anonId")}
	if identity, ok := services.IdentityFromContext(c.Request.Context()); ok {
		actor.Identity = &identity
	}
	return actor
}

// respondError maps the service error taxonomy onto HTTP statuses. Unknown
// errors are logged and surface as a generic message.
func (h *HelpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, seha_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error()))
	case errors.Is(err, seha_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("Not found"))
	case errors.Is(err, seha_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("Forbidden"))
	case errors.Is(err, seha_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("Not authenticated"))
	case errors.Is(err, seha_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("Too many requests"))
	default:
		if h.log != nil {
			h.log.Errorf("help request failed: %v", err)
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("Server error"))
	}
}
