// Package service provides business logic for the Filo portal.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/store"
	"github.com/filo-ai/portal/pkg/logger"
	"github.com/filo-ai/portal/pkg/metrics"
)

// ErrNotFound is returned when a conversation does not exist or belongs to
// another user.
var ErrNotFound = store.ErrNotFound

const (
	previewLen     = 60
	lastMessageLen = 80
)

// ConversationService handles conversation operations.
type ConversationService struct {
	store  store.Conversations
	logger *logger.Logger
	loads  singleflight.Group
	now    func() time.Time
}

// NewConversationService creates a new conversation service.
func NewConversationService(s store.Conversations, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  s,
		logger: log,
		now:    time.Now,
	}
}

// Create persists an empty conversation. The initial message is not stored;
// it is echoed back for the chat view to carry into its mount.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.CreateConversationResponse, error) {
	now := s.now()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = model.DefaultConversationTitle
	}

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created",
		zap.String(logger.FieldConversationID, conv.ID),
		zap.String(logger.FieldUserID, userID),
	)

	return &model.CreateConversationResponse{
		Conversation:   conv,
		InitialMessage: strings.TrimSpace(req.InitialMessage),
		ChatPath:       "/client/chat/" + conv.ID,
	}, nil
}

// Get retrieves a conversation with its messages. Concurrent loads of the
// same conversation share one store read. A load started after a write
// never joins a read that began before it.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	v, err, _ := s.loads.Do(loadKey(userID, conversationID), func() (any, error) {
		return s.store.GetConversation(ctx, userID, conversationID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return v.(*model.Conversation).Clone(), nil
}

// Append adds a message to a conversation.
func (s *ConversationService) Append(ctx context.Context, userID, conversationID string, msg model.Message) error {
	if err := s.store.AppendMessage(ctx, userID, conversationID, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to append message: %w", err)
	}
	s.loads.Forget(loadKey(userID, conversationID))
	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	return nil
}

func loadKey(userID, conversationID string) string {
	return userID + "/" + conversationID
}

// List returns the user's conversations as dashboard cards, most recently
// updated first.
func (s *ConversationService) List(ctx context.Context, userID string) (*model.ListConversationsResponse, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]model.ConversationSummary, len(convs))
	for i := range convs {
		out[i] = Summarize(&convs[i])
	}

	return &model.ListConversationsResponse{
		Conversations: out,
		Total:         len(out),
	}, nil
}

// Summarize builds the dashboard card of a conversation.
func Summarize(conv *model.Conversation) model.ConversationSummary {
	preview := model.DefaultConversationTitle
	for _, m := range conv.Messages {
		if m.Role == model.RoleUser && m.Content != "" {
			preview = m.Content
			break
		}
	}

	count := len(conv.Messages)
	label := "messages"
	if count == 1 {
		label = "message"
	}

	sum := model.ConversationSummary{
		ID:           conv.ID,
		Preview:      truncate(preview, previewLen),
		MessageCount: count,
		MessageLabel: label,
		UpdatedAt:    conv.UpdatedAt,
		UpdatedAgo:   "Just now",
	}
	if !conv.UpdatedAt.IsZero() {
		sum.UpdatedAgo = humanize.Time(conv.UpdatedAt)
	}

	if count > 0 {
		last := conv.Messages[count-1]
		prefix := "Assistant: "
		if last.Role == model.RoleUser {
			prefix = "You: "
		}
		sum.LastMessage = prefix + truncate(last.Content, lastMessageLen)
	}

	return sum
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// RecordError publishes an error event on the conversation stream.
func (s *ConversationService) RecordError(ctx context.Context, userID, conversationID, reason string) {
	err := s.store.PublishEvent(ctx, &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		Type:           model.EventTypeError,
		Reason:         reason,
		CreatedAt:      s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish error event",
			zap.String(logger.FieldConversationID, conversationID),
			zap.Error(err),
		)
	}
}
