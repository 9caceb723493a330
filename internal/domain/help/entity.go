package help

import (
	"time"

	"github.com/google/uuid"
)

// Sender values for Message.Sender
const (
	SenderUser   = "user"
	SenderAdmin  = "admin"
	SenderSystem = "system"
)

// Message status values
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusRead    = "read"
	StatusFailed  = "failed"
)

// Conversation status values
const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Meta carries the optional topic/details hints submitted with a message.
type Meta struct {
	Topic   string `json:"topic,omitempty"`
	Details string `json:"details,omitempty"`
}

// Message is one entry in a conversation. Messages are append-only; only an
// admin delete removes one.
type Message struct {
	ID         uuid.UUID `json:"id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	Status     string    `json:"status"`
	Meta       *Meta     `json:"meta,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation is a help thread between one visitor (authenticated or
// anonymous) and admin staff. Exactly one of UserID/AnonID identifies the
// owner.
type Conversation struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Name        string    `json:"name,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	AnonID      string    `json:"anonId,omitempty"`
	Messages    []Message `json:"messages"`
	UnreadCount int       `json:"unreadCount"`
	Status      string    `json:"status"`
	Meta        *Meta     `json:"meta,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary is the admin dashboard projection of a conversation.
type Summary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Name            string    `json:"name,omitempty"`
	AnonID          string    `json:"anonId,omitempty"`
	UserID          string    `json:"userId,omitempty"`
	LastMessageText string    `json:"lastMessageText"`
	LastMessageAt   time.Time `json:"lastMessageAt"`
	UnreadCount     int       `json:"unreadCount"`
	Status          string    `json:"status"`
}

// NewMessage builds a message in the sent state.
func NewMessage(sender, text, senderName string, meta *Meta) Message {
	return Message{
		ID:         uuid.New(),
		Sender:     sender,
		SenderName: senderName,
		Text:       text,
		Status:     StatusSent,
		Meta:       meta,
		CreatedAt:  time.Now(),
	}
}

// AnonLabel derives the display label for an anonymous owner.
func AnonLabel(anonID string) string {
	if anonID == "" {
		return "Anonymous"
	}
	suffix := anonID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "Anonymous-" + suffix
}

// LastMessage returns the newest message, or nil for an empty thread.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Summarize projects the conversation for the admin list.
func (c *Conversation) Summarize() Summary {
	s := Summary{
		ID:            c.ID,
		Title:         c.Title,
		Name:          c.Name,
		AnonID:        c.AnonID,
		UserID:        c.UserID,
		LastMessageAt: c.UpdatedAt,
		UnreadCount:   c.UnreadCount,
		Status:        c.Status,
	}
	if s.Title == "" {
		if c.Name != "" {
			s.Title = c.Name
		} else if c.AnonID != "" {
			s.Title = AnonLabel(c.AnonID)
		} else {
			s.Title = "Anonymous"
		}
	}
	if last := c.LastMessage(); last != nil {
		s.LastMessageText = last.Text
		s.LastMessageAt = last.CreatedAt
	}
	return s
}
