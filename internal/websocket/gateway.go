package websocket

import (
	"seha-backend/internal/domain/help"
	"seha-backend/pkg/logger"

	"github.com/google/uuid"
)

// Outbound event names.
const (
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventMessageAppended     = "message.appended"
	EventConversationDeleted = "conversation.deleted"
	EventError               = "error"
	EventPong                = "pong"
)

// Gateway fans service notifications out to hub rooms. It implements
// services.Notifier. Emits are at-most-once per room member; there is no
// redelivery.
type Gateway struct {
	hub *Hub
	log *logger.Logger
}

func NewGateway(hub *Hub, log *logger.Logger) *Gateway {
	return &Gateway{hub: hub, log: log}
}

func (g *Gateway) ConversationCreated(c help.Conversation) {
	g.emit(AdminsRoom, EventConversationCreated, map[string]any{
		"conversation": c,
	})
}

func (g *Gateway) ConversationUpdated(c help.Conversation) {
	g.emit(AdminsRoom, EventConversationUpdated, map[string]any{
		"conversationId": c.ID,
		"conversation":   c,
	})
}

func (g *Gateway) MessageAppended(conversationID uuid.UUID, m help.Message) {
	g.emit(conversationID.String(), EventMessageAppended, map[string]any{
		"conversationId": conversationID,
		"message":        m,
	})
}

func (g *Gateway) ConversationDeleted(conversationID uuid.UUID) {
	payload := map[string]any{"conversationId": conversationID}
	g.emit(AdminsRoom, EventConversationDeleted, payload)
	g.emit(conversationID.String(), EventConversationDeleted, payload)
}

func (g *Gateway) emit(room, event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		if g.log != nil {
			g.log.Errorf("marshal %s event: %v", event, err)
		}
		return
	}
	g.hub.Broadcast(room, payload)
}
