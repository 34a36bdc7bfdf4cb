package store

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/filo-ai/portal/internal/model"
)

// Memory keeps everything in process memory. It implements Conversations,
// Users and Uploads.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	events        []model.ConversationEvent
	users         map[string]*model.User
	emails        map[string]string
	uploads       map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.Conversation),
		users:         make(map[string]*model.User),
		emails:        make(map[string]string),
		uploads:       make(map[string][]byte),
	}
}

// CreateConversation implements Conversations.
func (m *Memory) CreateConversation(_ context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; ok {
		return ErrConflict
	}
	m.conversations[conv.ID] = conv.Clone()
	return nil
}

// GetConversation implements Conversations.
func (m *Memory) GetConversation(_ context.Context, userID, conversationID string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

// ListConversations implements Conversations.
func (m *Memory) ListConversations(_ context.Context, userID string) ([]model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			out = append(out, *conv.Clone())
		}
	}
	SortByUpdated(out)
	return out, nil
}

// AppendMessage implements Conversations.
func (m *Memory) AppendMessage(_ context.Context, userID, conversationID string, msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return ErrNotFound
	}
	msg.Sequence = uint64(len(conv.Messages) + 1)
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = laterOf(conv.UpdatedAt, msg.CreatedAt)
	return nil
}

// PublishEvent implements Conversations.
func (m *Memory) PublishEvent(_ context.Context, event *model.ConversationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, *event)
	return nil
}

// Events returns the events published for a conversation.
func (m *Memory) Events(conversationID string) []model.ConversationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ConversationEvent
	for _, e := range m.events {
		if e.ConversationID == conversationID {
			out = append(out, e)
		}
	}
	return out
}

// CreateUser implements Users.
func (m *Memory) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := EmailKey(user.Email)
	if _, ok := m.emails[key]; ok {
		return ErrConflict
	}
	u := *user
	m.users[u.ID] = &u
	m.emails[key] = u.ID
	return nil
}

// GetUser implements Users.
func (m *Memory) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail implements Users.
func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	id, ok := m.emails[EmailKey(email)]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return m.GetUser(ctx, id)
}

// PutUpload implements Uploads.
func (m *Memory) PutUpload(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[key] = buf.Bytes()
	return n, nil
}

// GetUpload implements Uploads.
func (m *Memory) GetUpload(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.uploads[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// SortByUpdated orders conversations most recently updated first.
func SortByUpdated(convs []model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
