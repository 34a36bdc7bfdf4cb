package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/filo-ai/portal/internal/model"
)

// Repository is the backing store of a view. The remote implementation talks
// to the conversation store and the reply API; the local one serves legacy
// request chats with scripted replies.
type Repository interface {
	// Load fetches the conversation and its full message history.
	Load(ctx context.Context, conversationID string) (*model.Conversation, error)
	// Exchange submits a user turn and returns the assistant reply.
	Exchange(ctx context.Context, conversationID string, user model.Message) (model.Message, error)
	// Reconcile reports whether a successful exchange is followed by a reload.
	Reconcile() bool
}

// Replier obtains an assistant reply for a message in a conversation.
type Replier interface {
	Reply(ctx context.Context, conversationID, message string) (string, error)
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, conversationID, message string) (string, error)

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, conversationID, message string) (string, error) {
	return f(ctx, conversationID, message)
}

// NewMessage creates a message with a time-ordered id.
func NewMessage(role model.Role, content string, at time.Time) model.Message {
	return model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}
