package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"seha-backend/internal/domain/help"
	seha_errors "seha-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ConversationStore with call counters.
type fakeStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]help.Conversation
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[uuid.UUID]help.Conversation)}
}

func (f *fakeStore) Create(ctx context.Context, c *help.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[c.ID] = *c
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (help.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return help.Conversation{}, seha_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetByAnonID(ctx context.Context, anonID string) (help.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.AnonID != "" && c.AnonID == anonID {
			return c, nil
		}
	}
	return help.Conversation{}, seha_errors.ErrNotFound
}

func (f *fakeStore) GetByUserID(ctx context.Context, userID string) (help.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.UserID != "" && c.UserID == userID {
			return c, nil
		}
	}
	return help.Conversation{}, seha_errors.ErrNotFound
}

func (f *fakeStore) Update(ctx context.Context, c help.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[c.ID]; !ok {
		return seha_errors.ErrNotFound
	}
	f.items[c.ID] = c
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return seha_errors.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) List(ctx context.Context, offset, limit int) ([]help.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]help.Conversation, 0, len(f.items))
	for _, c := range f.items {
		out = append(out, c)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

// fakeNotifier records emitted events.
type fakeNotifier struct {
	mu       sync.Mutex
	created  []uuid.UUID
	updated  []uuid.UUID
	appended []uuid.UUID
	deleted  []uuid.UUID
}

func (f *fakeNotifier) ConversationCreated(c help.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c.ID)
}

func (f *fakeNotifier) ConversationUpdated(c help.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, c.ID)
}

func (f *fakeNotifier) MessageAppended(id uuid.UUID, m help.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, id)
}

func (f *fakeNotifier) ConversationDeleted(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

// fakeCache is an in-memory ListCache without expiry.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]ListResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]ListResult)}
}

func cacheKey(page, limit int) string {
	return fmt.Sprintf("%d:%d", page, limit)
}

func (f *fakeCache) Get(ctx context.Context, page, limit int, dest any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[cacheKey(page, limit)]
	if !ok {
		return false, nil
	}
	*(dest.(*ListResult)) = value
	return true, nil
}

func (f *fakeCache) Set(ctx context.Context, page, limit int, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[cacheKey(page, limit)] = value.(ListResult)
	return nil
}

func (f *fakeCache) InvalidateAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]ListResult)
	return nil
}

func adminActor() Actor {
	return Actor{Identity: &Identity{UserID: "admin-1", Name: "Staff", Role: "admin"}}
}

func userActor(id, name string) Actor {
	return Actor{Identity: &Identity{UserID: id, Name: name, Role: "user"}}
}

func newTestService(t *testing.T) (*HelpService, *fakeStore, *fakeNotifier, *fakeCache) {
	t.Helper()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	cache := newFakeCache()
	return NewHelpService(store, cache, notifier, nil), store, notifier, cache
}

func TestCreateAnonymousConversation(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "Hello"}, Actor{})
	require.NoError(t, err)

	assert.Equal(t, help.ConversationOpen, conv.Status)
	assert.Equal(t, 1, conv.UnreadCount)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, help.SenderUser, conv.Messages[0].Sender)
	assert.Equal(t, "Hello", conv.Messages[0].Text)
	assert.Equal(t, help.StatusSent, conv.Messages[0].Status)

	assert.Empty(t, conv.UserID)
	assert.True(t, strings.HasPrefix(conv.AnonID, "anon-"), "generated token: %q", conv.AnonID)
	assert.Equal(t, help.AnonLabel(conv.AnonID), conv.Title)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, conv.ID, notifier.created[0])
}

func TestCreateRejectsEmptyMessage(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateConversationInput{InitialMessage: "   "}, Actor{})
	assert.ErrorIs(t, err, seha_errors.ErrInvalidInput)
}

func TestCreateAuthenticatedOwnsConversation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	conv, err := svc.Create(context.Background(), CreateConversationInput{InitialMessage: "Hi"}, userActor("u-1", "Amina"))
	require.NoError(t, err)

	assert.Equal(t, "u-1", conv.UserID)
	assert.Empty(t, conv.AnonID)
	assert.Equal(t, "Amina", conv.Title)
	assert.Equal(t, "Amina", conv.Messages[0].SenderName)
}

func TestAdminReplyResetsUnreadAndMarksRead(t *testing.T) {
	svc, _, notifier, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "Hello"}, Actor{})
	require.NoError(t, err)

	msg, updated, err := svc.Append(ctx, conv.ID.String(), "Hi, how can I help?", nil, adminActor())
	require.NoError(t, err)

	assert.Equal(t, help.SenderAdmin, msg.Sender)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, 0, updated.UnreadCount)
	assert.Equal(t, help.StatusRead, updated.Messages[0].Status)
	assert.Equal(t, "Hello", updated.Messages[0].Text)

	require.Len(t, notifier.updated, 1)
	require.Len(t, notifier.appended, 1)
	assert.Equal(t, conv.ID, notifier.appended[0])
}

func TestUserAppendsIncrementUnreadInOrder(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "one"}, Actor{})
	require.NoError(t, err)

	for _, text := range []string{"two", "three", "four"} {
		_, conv, err = appendAndReload(svc, ctx, conv.ID.String(), text)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, conv.UnreadCount)
	require.Len(t, conv.Messages, 4)
	for i, want := range []string{"one", "two", "three", "four"} {
		assert.Equal(t, want, conv.Messages[i].Text)
	}
}

func appendAndReload(svc *HelpService, ctx context.Context, ref, text string) (help.Message, help.Conversation, error) {
	return svc.Append(ctx, ref, text, nil, Actor{})
}

func TestAppendResolvesByAnonToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hi", AnonID: "anon-abc123"}, Actor{})
	require.NoError(t, err)

	_, updated, err := svc.Append(ctx, "anon-abc123", "still me", nil, Actor{AnonID: "anon-abc123"})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, updated.ID)
	assert.Len(t, updated.Messages, 2)
}

func TestAppendUnknownConversation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.Append(context.Background(), uuid.New().String(), "hello?", nil, Actor{})
	assert.ErrorIs(t, err, seha_errors.ErrNotFound)
}

func TestAppendRejectsEmptyText(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hi"}, Actor{})
	require.NoError(t, err)

	_, _, err = svc.Append(ctx, conv.ID.String(), "  ", nil, Actor{})
	assert.ErrorIs(t, err, seha_errors.ErrInvalidInput)
}

func TestAppendBackfillsOwnerIdentity(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hi", AnonID: "anon-claim1"}, Actor{})
	require.NoError(t, err)
	require.Empty(t, conv.UserID)

	_, updated, err := svc.Append(ctx, conv.ID.String(), "me again, now logged in", nil, userActor("u-7", "Noor"))
	require.NoError(t, err)
	assert.Equal(t, "u-7", updated.UserID)

	// An admin reply never claims ownership.
	conv2, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "other"}, Actor{})
	require.NoError(t, err)
	_, updated2, err := svc.Append(ctx, conv2.ID.String(), "hello from staff", nil, adminActor())
	require.NoError(t, err)
	assert.Empty(t, updated2.UserID)
}

func TestMarkRead(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "a"}, Actor{})
	require.NoError(t, err)
	_, _, err = svc.Append(ctx, conv.ID.String(), "b", nil, Actor{})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, conv.ID.String(), userActor("u-1", "x"))
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)

	updated, err := svc.MarkRead(ctx, conv.ID.String(), adminActor())
	require.NoError(t, err)
	assert.Equal(t, 0, updated.UnreadCount)
	for _, m := range updated.Messages {
		if m.Sender == help.SenderUser {
			assert.Equal(t, help.StatusRead, m.Status)
		}
	}
}

func TestClose(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "a"}, Actor{})
	require.NoError(t, err)

	_, err = svc.Close(ctx, conv.ID.String(), Actor{})
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)

	updated, err := svc.Close(ctx, conv.ID.String(), adminActor())
	require.NoError(t, err)
	assert.Equal(t, help.ConversationClosed, updated.Status)
	assert.Equal(t, 0, updated.UnreadCount)
}

func TestDeleteMessage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "first"}, Actor{})
	require.NoError(t, err)
	_, conv, err = svc.Append(ctx, conv.ID.String(), "second", nil, Actor{})
	require.NoError(t, err)
	_, conv, err = svc.Append(ctx, conv.ID.String(), "third", nil, Actor{})
	require.NoError(t, err)

	_, err = svc.DeleteMessage(ctx, conv.ID.String(), uuid.New(), adminActor())
	assert.ErrorIs(t, err, seha_errors.ErrNotFound)

	target := conv.Messages[1].ID
	updated, err := svc.DeleteMessage(ctx, conv.ID.String(), target, adminActor())
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, "first", updated.Messages[0].Text)
	assert.Equal(t, "third", updated.Messages[1].Text)
}

func TestDeleteConversation(t *testing.T) {
	svc, store, notifier, cache := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "bye"}, Actor{})
	require.NoError(t, err)

	// Warm the cache so the delete has something to invalidate.
	_, err = svc.ListForAdmin(ctx, 1, 50, adminActor())
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	err = svc.Delete(ctx, conv.ID.String(), userActor("u-1", "x"))
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, conv.ID.String(), adminActor()))
	_, err = store.GetByID(ctx, conv.ID)
	assert.ErrorIs(t, err, seha_errors.ErrNotFound)
	assert.Empty(t, cache.entries)
	require.Len(t, notifier.deleted, 1)
	assert.Equal(t, conv.ID, notifier.deleted[0])
}

func TestListForAdminServesFromCache(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hey"}, Actor{})
	require.NoError(t, err)

	first, err := svc.ListForAdmin(ctx, 1, 50, adminActor())
	require.NoError(t, err)
	second, err := svc.ListForAdmin(ctx, 1, 50, adminActor())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.listCalls, "second call must come from the cache")
}

func TestListForAdminForbidden(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ListForAdmin(context.Background(), 1, 50, Actor{})
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)

	_, err = svc.ListForAdmin(context.Background(), 1, 50, userActor("u-1", "x"))
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)
}

func TestListForAdminClampsPaging(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hey"}, Actor{})
	require.NoError(t, err)

	result, err := svc.ListForAdmin(ctx, 0, 1000, adminActor())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
	assert.Equal(t, 1, store.listCalls)
}

func TestGetByRefAccessControl(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hi"}, userActor("owner-1", "Owner"))
	require.NoError(t, err)

	_, err = svc.GetByRef(ctx, conv.ID.String(), adminActor())
	assert.NoError(t, err)

	_, err = svc.GetByRef(ctx, conv.ID.String(), userActor("owner-1", "Owner"))
	assert.NoError(t, err)

	_, err = svc.GetByRef(ctx, conv.ID.String(), userActor("someone-else", "Other"))
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)

	_, err = svc.GetByRef(ctx, conv.ID.String(), Actor{})
	assert.ErrorIs(t, err, seha_errors.ErrForbidden)

	anon, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "hi", AnonID: "anon-tok42"}, Actor{})
	require.NoError(t, err)

	got, err := svc.GetByRef(ctx, "anon-tok42", Actor{})
	require.NoError(t, err)
	assert.Equal(t, anon.ID, got.ID)

	_, err = svc.GetByRef(ctx, anon.ID.String(), Actor{AnonID: "anon-tok42"})
	assert.NoError(t, err)
}

func TestUpdatedAtNeverDecreases(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, CreateConversationInput{InitialMessage: "start"}, Actor{})
	require.NoError(t, err)
	last := conv.UpdatedAt

	_, conv, err = svc.Append(ctx, conv.ID.String(), "more", nil, Actor{})
	require.NoError(t, err)
	assert.False(t, conv.UpdatedAt.Before(last))
	last = conv.UpdatedAt

	conv, err = svc.MarkRead(ctx, conv.ID.String(), adminActor())
	require.NoError(t, err)
	assert.False(t, conv.UpdatedAt.Before(last))
	last = conv.UpdatedAt

	conv, err = svc.DeleteMessage(ctx, conv.ID.String(), conv.Messages[0].ID, adminActor())
	require.NoError(t, err)
	assert.False(t, conv.UpdatedAt.Before(last))
	last = conv.UpdatedAt

	conv, err = svc.Close(ctx, conv.ID.String(), adminActor())
	require.NoError(t, err)
	assert.False(t, conv.UpdatedAt.Before(last))
}
