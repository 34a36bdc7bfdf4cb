package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxMessageLen = 100000
	maxTitleLen   = 256
	maxIDLen      = 64
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxMessageLen {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateCarriedText validates optional text carried into a mount.
func ValidateCarriedText(content string) error {
	if content == "" {
		return nil
	}
	return ValidateMessageContent(content)
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateRequestID validates a legacy request ID.
func ValidateRequestID(id string) error {
	if !strings.HasPrefix(id, "req-") || len(id) > maxIDLen {
		return errors.New("invalid request ID format")
	}
	return nil
}

// ValidateDocumentID validates a checklist slot ID.
func ValidateDocumentID(id string) error {
	if id == "" || len(id) > maxIDLen {
		return errors.New("invalid document ID")
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return errors.New("invalid document ID")
		}
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if len(title) > maxTitleLen {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}
