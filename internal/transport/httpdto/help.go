package httpdto

import "seha-backend/internal/domain/help"

type CreateConversationRequest struct {
	Title          string `json:"title"`
	Name           string `json:"name"`
	AnonID         string `json:"anonId"`
	InitialMessage string `json:"initialMessage"`
	Topic          string `json:"topic"`
	Details        string `json:"details"`
}

type AppendMessageRequest struct {
	Text    string `json:"text"`
	Topic   string `json:"topic"`
	Details string `json:"details"`
}

type ConversationResponse struct {
	Conversation help.Conversation `json:"conversation"`
}

type MessageResponse struct {
	Message      help.Message      `json:"message"`
	Conversation help.Conversation `json:"conversation"`
}

type OkResponse struct {
	Ok           bool               `json:"ok"`
	Conversation *help.Conversation `json:"conversation,omitempty"`
}
