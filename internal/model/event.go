package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeError   EventType = "error"
	EventTypeCreated EventType = "created"
)

// ConversationEvent represents an event in a conversation.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ErrorEvent is sent to stream subscribers when something goes wrong.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent keeps idle event streams open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
