package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/store"
	"github.com/filo-ai/portal/pkg/logger"
)

func newConversationService(t *testing.T) (*ConversationService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return NewConversationService(mem, logger.NewNop()), mem
}

func TestCreateConversation(t *testing.T) {
	svc, _ := newConversationService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, "u1", &model.CreateConversationRequest{InitialMessage: "  File GST Return "})
	require.NoError(t, err)

	assert.Equal(t, model.DefaultConversationTitle, resp.Conversation.Title)
	assert.Empty(t, resp.Conversation.Messages)
	assert.Equal(t, "File GST Return", resp.InitialMessage)
	assert.Equal(t, "/client/chat/"+resp.Conversation.ID, resp.ChatPath)

	got, err := svc.Get(ctx, "u1", resp.Conversation.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages, "the carried text is not persisted")

	_, err = svc.Get(ctx, "u2", resp.Conversation.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateConversationWithTitle(t *testing.T) {
	svc, _ := newConversationService(t)

	resp, err := svc.Create(context.Background(), "u1", &model.CreateConversationRequest{Title: "GSTR-1 April"})
	require.NoError(t, err)
	assert.Equal(t, "GSTR-1 April", resp.Conversation.Title)
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	svc, _ := newConversationService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Append(ctx, "u1", resp.Conversation.ID, model.Message{ID: "m1", Role: model.RoleUser, Content: "hi"}))

	a, err := svc.Get(ctx, "u1", resp.Conversation.ID)
	require.NoError(t, err)
	a.Messages[0].Content = "changed"

	b, err := svc.Get(ctx, "u1", resp.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", b.Messages[0].Content)
}

// stallingStore holds the first conversation read after it has taken its
// snapshot, until release is closed.
type stallingStore struct {
	*store.Memory
	once    sync.Once
	reading chan struct{}
	release chan struct{}
}

func (s *stallingStore) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.Memory.GetConversation(ctx, userID, conversationID)
	s.once.Do(func() {
		close(s.reading)
		<-s.release
	})
	return conv, err
}

func TestGetAfterAppendDoesNotJoinEarlierRead(t *testing.T) {
	st := &stallingStore{
		Memory:  store.NewMemory(),
		reading: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewConversationService(st, logger.NewNop())
	ctx := context.Background()

	resp, err := svc.Create(ctx, "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)
	id := resp.Conversation.ID

	stale := make(chan *model.Conversation, 1)
	go func() {
		conv, _ := svc.Get(ctx, "u1", id)
		stale <- conv
	}()
	<-st.reading

	require.NoError(t, svc.Append(ctx, "u1", id, model.Message{ID: "m1", Role: model.RoleUser, Content: "hi"}))

	fresh := make(chan *model.Conversation, 1)
	go func() {
		conv, _ := svc.Get(ctx, "u1", id)
		fresh <- conv
	}()

	var got *model.Conversation
	select {
	case got = <-fresh:
		close(st.release)
	case <-time.After(time.Second):
		close(st.release)
		got = <-fresh
	}

	require.NotNil(t, got)
	assert.Len(t, got.Messages, 1, "reload after write must see the write")

	old := <-stale
	require.NotNil(t, old)
	assert.Empty(t, old.Messages)
}

func TestAppendUnknownConversation(t *testing.T) {
	svc, _ := newConversationService(t)

	err := svc.Append(context.Background(), "u1", "missing", model.Message{ID: "m1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations(t *testing.T) {
	svc, _ := newConversationService(t)
	ctx := context.Background()

	older, err := svc.Create(ctx, "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)
	newer, err := svc.Create(ctx, "u1", &model.CreateConversationRequest{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", &model.CreateConversationRequest{})
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, svc.Append(ctx, "u1", older.Conversation.ID, model.Message{ID: "m1", Role: model.RoleUser, Content: "hi", CreatedAt: later}))

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, older.Conversation.ID, list.Conversations[0].ID)
	assert.Equal(t, newer.Conversation.ID, list.Conversations[1].ID)
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("x", 100)

	tests := []struct {
		name string
		conv model.Conversation
		want model.ConversationSummary
	}{
		{
			name: "empty",
			conv: model.Conversation{ID: "c1"},
			want: model.ConversationSummary{
				ID:           "c1",
				Preview:      model.DefaultConversationTitle,
				MessageLabel: "messages",
				UpdatedAgo:   "Just now",
			},
		},
		{
			name: "single user message",
			conv: model.Conversation{ID: "c1", Messages: []model.Message{
				{Role: model.RoleUser, Content: "File GST Return"},
			}},
			want: model.ConversationSummary{
				ID:           "c1",
				Preview:      "File GST Return",
				MessageCount: 1,
				MessageLabel: "message",
				LastMessage:  "You: File GST Return",
				UpdatedAgo:   "Just now",
			},
		},
		{
			name: "long messages truncated",
			conv: model.Conversation{ID: "c1", Messages: []model.Message{
				{Role: model.RoleAssistant, Content: "Welcome"},
				{Role: model.RoleUser, Content: long},
				{Role: model.RoleAssistant, Content: long},
			}},
			want: model.ConversationSummary{
				ID:           "c1",
				Preview:      strings.Repeat("x", 60) + "...",
				MessageCount: 3,
				MessageLabel: "messages",
				LastMessage:  "Assistant: " + strings.Repeat("x", 80) + "...",
				UpdatedAgo:   "Just now",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(&tt.conv))
		})
	}
}

func TestSummarizeRelativeTime(t *testing.T) {
	conv := model.Conversation{UpdatedAt: time.Now().Add(-3 * time.Hour)}
	assert.Equal(t, "3 hours ago", Summarize(&conv).UpdatedAgo)
}
