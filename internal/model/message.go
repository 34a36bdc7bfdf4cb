package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a stored conversation message.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Sequence is the stream sequence, populated on read from JetStream.
	Sequence uint64 `json:"sequence,omitempty"`
}

// DisplayRole is the role label the chat view renders.
type DisplayRole string

const (
	DisplayRoleUser DisplayRole = "user"
	DisplayRoleAI   DisplayRole = "AI"
)

// DisplayMessage is the view-model of a message.
type DisplayMessage struct {
	ID           string      `json:"id"`
	Role         DisplayRole `json:"role"`
	Message      string      `json:"message"`
	Timestamp    time.Time   `json:"timestamp"`
	HasChecklist bool        `json:"has_checklist"`
}

// ReplyRequest is the body of POST /chat.
type ReplyRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// ReplyResponse is the response of POST /chat.
type ReplyResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SendMessageRequest is the request to send a user turn from a view.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MountRequest is the request to mount a view.
type MountRequest struct {
	// InitialMessage is the text carried over from the request form.
	InitialMessage string `json:"initial_message,omitempty"`
}
