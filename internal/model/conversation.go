// Package model defines data structures for the Filo portal.
package model

import (
	"time"
)

// DefaultConversationTitle is the title given to conversations created without one.
const DefaultConversationTitle = "New conversation"

// Conversation represents a persisted conversation thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy whose message slice does not alias the receiver's.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title          string `json:"title,omitempty"`
	InitialMessage string `json:"initial_message"`
}

// CreateConversationResponse carries the new conversation plus the text the
// client should hand to the chat view when it mounts.
type CreateConversationResponse struct {
	Conversation   *Conversation `json:"conversation"`
	InitialMessage string        `json:"initial_message,omitempty"`
	ChatPath       string        `json:"chat_path"`
}

// ConversationSummary is the dashboard card for one conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	MessageLabel string    `json:"message_label"`
	LastMessage  string    `json:"last_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedAgo   string    `json:"updated_ago"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}
