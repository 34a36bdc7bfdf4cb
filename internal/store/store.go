// Package store defines the persistence contracts of the portal and an
// in-memory implementation used in development and tests.
package store

import (
	"context"
	"errors"
	"io"

	"github.com/filo-ai/portal/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("already exists")
)

// Conversations persists conversations and their message history.
type Conversations interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	// GetConversation returns the conversation with all messages, or
	// ErrNotFound when userID does not own it.
	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	// ListConversations returns the user's conversations with messages,
	// most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	AppendMessage(ctx context.Context, userID, conversationID string, msg model.Message) error
	PublishEvent(ctx context.Context, event *model.ConversationEvent) error
}

// Users persists accounts.
type Users interface {
	// CreateUser fails with ErrConflict when the email is registered.
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Uploads persists uploaded document blobs.
type Uploads interface {
	// PutUpload stores the blob under key and returns its size.
	PutUpload(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	GetUpload(ctx context.Context, key string) ([]byte, error)
}
