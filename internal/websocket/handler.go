package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"seha-backend/internal/services"
	seha_errors "seha-backend/pkg/errors"
	"seha-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Inbound event names.
const (
	eventJoin       = "join"
	eventLeave      = "leave"
	eventIdentify   = "identify"
	eventAdminReply = "admin.reply"
	eventPingCheck  = "ping-check"
)

type joinPayload struct {
	ConversationID string `json:"conversationId"`
}

type identifyPayload struct {
	Role           string   `json:"role"`
	ConversationID string   `json:"conversationId"`
	Rooms          []string `json:"rooms"`
}

type adminReplyPayload struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
}

// Handler upgrades help-chat socket connections and dispatches inbound
// events.
type Handler struct {
	auth    *services.AuthService
	service *services.HelpService
	hub     *Hub
	log     *logger.Logger
}

func NewHandler(auth *services.AuthService, service *services.HelpService, hub *Hub, log *logger.Logger) *Handler {
	return &Handler{auth: auth, service: service, hub: hub, log: log}
}

// Connect upgrades the request. A token is optional: connections without one
// are anonymous. Admin identities auto-join the admins room.
func (h *Handler) Connect(c *gin.Context) {
	var identity *services.Identity
	if token := c.Query("token"); token != "" {
		resolved, err := h.auth.ResolveIdentity(token)
		if err == nil {
			identity = &resolved
		}
		// A bad token degrades to an anonymous connection rather than
		// refusing the socket; the widget works without auth.
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, identity)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	if client.IsAdmin() {
		h.hub.Join(client, AdminsRoom)
	}

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.dispatch(c.Request.Context(), client, data)
	}

	h.hub.Unregister(client)
}

func (h *Handler) dispatch(ctx context.Context, client *Client, data []byte) {
	var frame Event
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch frame.Event {
	case eventJoin:
		var p joinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.ConversationID == "" {
			return
		}
		h.hub.Join(client, p.ConversationID)

	case eventLeave:
		var p joinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.ConversationID == "" {
			return
		}
		h.hub.Leave(client, p.ConversationID)

	case eventIdentify:
		// Legacy path: grants room membership only. The claimed role is
		// cosmetic grouping; admin actions re-validate the connect-time
		// identity.
		var p identifyPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		if p.Role == "admin" {
			h.hub.Join(client, AdminsRoom)
		}
		if p.ConversationID != "" {
			h.hub.Join(client, p.ConversationID)
		}
		for _, room := range p.Rooms {
			if room != "" {
				h.hub.Join(client, room)
			}
		}

	case eventAdminReply:
		h.handleAdminReply(ctx, client, frame.Data)

	case eventPingCheck:
		client.SendEvent(EventPong, nil)
	}
}

func (h *Handler) handleAdminReply(ctx context.Context, client *Client, data json.RawMessage) {
	if !client.IsAdmin() {
		client.SendEvent(EventError, map[string]string{"message": "Unauthorized to reply"})
		return
	}

	var p adminReplyPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		client.SendEvent(EventError, map[string]string{"message": "conversationId required"})
		return
	}

	actor := services.Actor{Identity: client.Identity}
	if _, _, err := h.service.Append(ctx, p.ConversationID, p.Text, nil, actor); err != nil {
		client.SendEvent(EventError, map[string]string{"message": replyErrorMessage(err)})
	}
}

func replyErrorMessage(err error) string {
	switch {
	case errors.Is(err, seha_errors.ErrInvalidInput):
		return "text required"
	case errors.Is(err, seha_errors.ErrNotFound):
		return "Conversation not found"
	case errors.Is(err, seha_errors.ErrForbidden):
		return "Unauthorized to reply"
	default:
		return "Server error"
	}
}
