package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"seha-backend/internal/domain/help"
	"seha-backend/internal/repository"
	seha_errors "seha-backend/pkg/errors"
	"seha-backend/pkg/logger"

	"github.com/google/uuid"
)

// Notifier delivers realtime hints about conversation mutations. Delivery is
// best-effort; the REST API stays the source of truth.
type Notifier interface {
	ConversationCreated(c help.Conversation)
	ConversationUpdated(c help.Conversation)
	MessageAppended(conversationID uuid.UUID, m help.Message)
	ConversationDeleted(conversationID uuid.UUID)
}

// ListCache caches admin list pages for a few seconds to absorb polling
// bursts.
type ListCache interface {
	Get(ctx context.Context, page, limit int, dest any) (bool, error)
	Set(ctx context.Context, page, limit int, value any) error
	InvalidateAll(ctx context.Context) error
}

// Actor is the caller of a service operation. Identity is nil for
// unauthenticated callers; AnonID carries the anonymous token the client
// presented, if any.
type Actor struct {
	Identity *Identity
	AnonID   string
}

func (a Actor) IsAdmin() bool {
	return a.Identity != nil && a.Identity.IsAdmin()
}

type CreateConversationInput struct {
	Title          string
	Name           string
	AnonID         string
	InitialMessage string
	Topic          string
	Details        string
}

type ListResult struct {
	Conversations []help.Summary `json:"conversations"`
	Total         int64          `json:"total"`
}

// HelpService is the sole writer to the conversation store and enforces the
// access policy around help conversations.
type HelpService struct {
	store    repository.ConversationStore
	cache    ListCache
	notifier Notifier
	log      *logger.Logger
}

func NewHelpService(store repository.ConversationStore, cache ListCache, notifier Notifier, log *logger.Logger) *HelpService {
	return &HelpService{store: store, cache: cache, notifier: notifier, log: log}
}

// Create opens a conversation from its first message. Anonymous callers
// without a token get a generated one.
func (s *HelpService) Create(ctx context.Context, in CreateConversationInput, actor Actor) (help.Conversation, error) {
	text := strings.TrimSpace(in.InitialMessage)
	if text == "" {
		return help.Conversation{}, fmt.Errorf("initialMessage required: %w", seha_errors.ErrInvalidInput)
	}

	meta := makeMeta(in.Topic, in.Details)
	now := time.Now()
	conv := help.Conversation{
		ID:          uuid.New(),
		Title:       in.Title,
		Name:        in.Name,
		Status:      help.ConversationOpen,
		UnreadCount: 1,
		Meta:        meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	senderName := in.Name
	if actor.Identity != nil {
		conv.UserID = actor.Identity.UserID
		if senderName == "" {
			senderName = actor.Identity.Name
		}
		if conv.Name == "" {
			conv.Name = actor.Identity.Name
		}
	} else {
		conv.AnonID = in.AnonID
		if conv.AnonID == "" {
			conv.AnonID = actor.AnonID
		}
		if conv.AnonID == "" {
			conv.AnonID = newAnonToken()
		}
	}

	if conv.Title == "" {
		switch {
		case conv.Name != "":
			conv.Title = conv.Name
		case conv.AnonID != "":
			conv.Title = help.AnonLabel(conv.AnonID)
		default:
			conv.Title = "Anonymous"
		}
	}

	conv.Messages = []help.Message{help.NewMessage(help.SenderUser, text, senderName, meta)}

	if err := s.store.Create(ctx, &conv); err != nil {
		return help.Conversation{}, err
	}

	if s.notifier != nil {
		s.notifier.ConversationCreated(conv)
	}
	return conv, nil
}

// Append adds a message to a conversation addressed by id or anon token.
func (s *HelpService) Append(ctx context.Context, ref, text string, meta *help.Meta, actor Actor) (help.Message, help.Conversation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return help.Message{}, help.Conversation{}, fmt.Errorf("text required: %w", seha_errors.ErrInvalidInput)
	}

	conv, err := s.resolve(ctx, ref)
	if err != nil {
		return help.Message{}, help.Conversation{}, err
	}

	isAdmin := actor.IsAdmin()
	sender := help.SenderUser
	senderName := conv.Name
	if actor.Identity != nil {
		senderName = actor.Identity.Name
	}
	if isAdmin {
		sender = help.SenderAdmin
	}

	msg := help.NewMessage(sender, text, senderName, meta)
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()

	if isAdmin {
		conv.UnreadCount = 0
		markUserMessagesRead(&conv)
	} else {
		conv.UnreadCount++
		// A logged-in user replying to a thread started before login claims it.
		if conv.UserID == "" && actor.Identity != nil {
			conv.UserID = actor.Identity.UserID
		}
	}

	if err := s.store.Update(ctx, conv); err != nil {
		return help.Message{}, help.Conversation{}, err
	}

	if s.notifier != nil {
		s.notifier.ConversationUpdated(conv)
		s.notifier.MessageAppended(conv.ID, msg)
	}
	return msg, conv, nil
}

// MarkRead resets the unread counter and marks user messages read.
func (s *HelpService) MarkRead(ctx context.Context, ref string, actor Actor) (help.Conversation, error) {
	if !actor.IsAdmin() {
		return help.Conversation{}, seha_errors.ErrForbidden
	}
	conv, err := s.resolve(ctx, ref)
	if err != nil {
		return help.Conversation{}, err
	}
	conv.UnreadCount = 0
	markUserMessagesRead(&conv)
	conv.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, conv); err != nil {
		return help.Conversation{}, err
	}
	return conv, nil
}

// Close marks the conversation closed.
func (s *HelpService) Close(ctx context.Context, ref string, actor Actor) (help.Conversation, error) {
	if !actor.IsAdmin() {
		return help.Conversation{}, seha_errors.ErrForbidden
	}
	conv, err := s.resolve(ctx, ref)
	if err != nil {
		return help.Conversation{}, err
	}
	conv.Status = help.ConversationClosed
	conv.UnreadCount = 0
	conv.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, conv); err != nil {
		return help.Conversation{}, err
	}
	return conv, nil
}

// Delete hard-removes a conversation and drops cached list pages.
func (s *HelpService) Delete(ctx context.Context, ref string, actor Actor) error {
	if !actor.IsAdmin() {
		return seha_errors.ErrForbidden
	}
	conv, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, conv.ID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil && s.log != nil {
			s.log.Warnf("invalidate admin list cache: %v", err)
		}
	}
	if s.notifier != nil {
		s.notifier.ConversationDeleted(conv.ID)
	}
	return nil
}

// DeleteMessage removes exactly one message, preserving the order of the
// survivors.
func (s *HelpService) DeleteMessage(ctx context.Context, ref string, messageID uuid.UUID, actor Actor) (help.Conversation, error) {
	if !actor.IsAdmin() {
		return help.Conversation{}, seha_errors.ErrForbidden
	}
	conv, err := s.resolve(ctx, ref)
	if err != nil {
		return help.Conversation{}, err
	}

	idx := -1
	for i := range conv.Messages {
		if conv.Messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return help.Conversation{}, fmt.Errorf("message not found: %w", seha_errors.ErrNotFound)
	}
	conv.Messages = append(conv.Messages[:idx], conv.Messages[idx+1:]...)
	conv.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, conv); err != nil {
		return help.Conversation{}, err
	}
	if s.notifier != nil {
		s.notifier.ConversationUpdated(conv)
	}
	return conv, nil
}

// ListForAdmin returns a page of conversation summaries, newest activity
// first, going through the list cache before the store.
func (s *HelpService) ListForAdmin(ctx context.Context, page, limit int, actor Actor) (ListResult, error) {
	if !actor.IsAdmin() {
		return ListResult{}, seha_errors.ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	if s.cache != nil {
		var cached ListResult
		hit, err := s.cache.Get(ctx, page, limit, &cached)
		if err != nil && s.log != nil {
			s.log.Warnf("admin list cache get: %v", err)
		}
		if hit {
			return cached, nil
		}
	}

	items, total, err := s.store.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return ListResult{}, err
	}
	summaries := make([]help.Summary, 0, len(items))
	for i := range items {
		summaries = append(summaries, items[i].Summarize())
	}

	result := ListResult{Conversations: summaries, Total: total}
	if s.cache != nil {
		if err := s.cache.Set(ctx, page, limit, result); err != nil && s.log != nil {
			s.log.Warnf("admin list cache set: %v", err)
		}
	}
	return result, nil
}

// GetByRef fetches one conversation for an admin, its owning user, or the
// holder of its anonymous token.
func (s *HelpService) GetByRef(ctx context.Context, ref string, actor Actor) (help.Conversation, error) {
	conv, err := s.resolve(ctx, ref)
	if err != nil {
		return help.Conversation{}, err
	}

	switch {
	case actor.IsAdmin():
	case actor.Identity != nil && conv.UserID != "" && conv.UserID == actor.Identity.UserID:
	case conv.AnonID != "" && (ref == conv.AnonID || actor.AnonID == conv.AnonID):
	default:
		return help.Conversation{}, seha_errors.ErrForbidden
	}
	return conv, nil
}

// GetForUser returns the caller's own conversation.
func (s *HelpService) GetForUser(ctx context.Context, userID string) (help.Conversation, error) {
	return s.store.GetByUserID(ctx, userID)
}

// GetByAnonID returns the conversation held by an anonymous token.
func (s *HelpService) GetByAnonID(ctx context.Context, anonID string) (help.Conversation, error) {
	return s.store.GetByAnonID(ctx, anonID)
}

// resolve matches a reference by primary id first, then by anonymous token.
func (s *HelpService) resolve(ctx context.Context, ref string) (help.Conversation, error) {
	if id, err := uuid.Parse(ref); err == nil {
		conv, err := s.store.GetByID(ctx, id)
		if err == nil {
			return conv, nil
		}
	}
	return s.store.GetByAnonID(ctx, ref)
}

func markUserMessagesRead(conv *help.Conversation) {
	for i := range conv.Messages {
		if conv.Messages[i].Sender == help.SenderUser {
			conv.Messages[i].Status = help.StatusRead
		}
	}
}

func makeMeta(topic, details string) *help.Meta {
	if topic == "" && details == "" {
		return nil
	}
	return &help.Meta{Topic: topic, Details: details}
}

// newAnonToken generates an opaque anonymous token. Unguessable enough to
// stop casual enumeration; not a security boundary.
func newAnonToken() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "anon-" + uuid.New().String()[:12]
	}
	return "anon-" + hex.EncodeToString(buf)
}
