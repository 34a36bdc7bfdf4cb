package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/llm"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/pkg/logger"
	"github.com/filo-ai/portal/pkg/metrics"
	"github.com/filo-ai/portal/pkg/tracing"
)

// SystemPrompt frames every completion.
const SystemPrompt = `You are Filo, an assistant that helps Indian businesses and individuals with tax and compliance filings such as GST returns, income tax returns and TDS returns.
Confirm what the user needs, then walk them through it step by step.
When documents are required, list each one with its expected format and period and ask the user to upload them.
Be concise and never invent figures or deadlines you are not sure of.`

var (
	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrReplyFailed is returned when no assistant reply could be produced.
	ErrReplyFailed = errors.New("failed to generate reply")

	errNoProvider = errors.New("no LLM provider configured")
)

// ReplyService produces assistant replies and records both sides of the
// exchange. It backs the reply API.
type ReplyService struct {
	conversations *ConversationService
	llmClient     llm.Client
	model         string
	logger        *logger.Logger
	now           func() time.Time
}

// NewReplyService creates a new reply service. An empty model selects the
// provider default.
func NewReplyService(conversations *ConversationService, llmClient llm.Client, modelName string, log *logger.Logger) *ReplyService {
	return &ReplyService{
		conversations: conversations,
		llmClient:     llmClient,
		model:         modelName,
		logger:        log,
		now:           time.Now,
	}
}

// Reply appends message to the conversation, asks the LLM for the next turn
// and appends the answer. A conversation holding only this very message as
// a pending user turn is answered without storing it twice.
func (s *ReplyService) Reply(ctx context.Context, userID, conversationID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	ctx, span := tracing.Tracer("service").Start(ctx, "service.Reply")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	conv, err := s.conversations.Get(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}

	history := conv.Messages
	if !isPending(history, message) {
		user := s.newMessage(model.RoleUser, message)
		if err := s.conversations.Append(ctx, userID, conversationID, user); err != nil {
			return "", err
		}
		history = append(history, user)
	}

	chat := make([]llm.ChatMessage, len(history))
	for i, m := range history {
		chat[i] = llm.ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := s.complete(ctx, chat)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		metrics.RecordLLM(s.provider(), "error", 0, 0, 0)
		s.logger.Error("completion failed",
			zap.String(logger.FieldConversationID, conversationID),
			zap.String("provider", s.provider()),
			zap.Error(err),
		)
		s.conversations.RecordError(ctx, userID, conversationID, err.Error())
		return "", fmt.Errorf("%w: %w", ErrReplyFailed, err)
	}
	metrics.RecordLLM(s.provider(), "success", float64(resp.LatencyMs)/1000, resp.TokensIn, resp.TokensOut)

	reply := s.newMessage(model.RoleAssistant, resp.Content)
	if err := s.conversations.Append(ctx, userID, conversationID, reply); err != nil {
		return "", err
	}

	return reply.Content, nil
}

func (s *ReplyService) complete(ctx context.Context, chat []llm.ChatMessage) (*llm.CompletionResponse, error) {
	if s.llmClient == nil {
		return nil, errNoProvider
	}
	return s.llmClient.Complete(ctx, &llm.CompletionRequest{
		Model:    s.model,
		System:   SystemPrompt,
		Messages: chat,
	})
}

func (s *ReplyService) provider() string {
	if s.llmClient == nil {
		return "none"
	}
	return s.llmClient.Name()
}

func (s *ReplyService) newMessage(role model.Role, content string) model.Message {
	return model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}

func isPending(history []model.Message, message string) bool {
	return len(history) == 1 &&
		history[0].Role == model.RoleUser &&
		strings.TrimSpace(history[0].Content) == message
}
