package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/filo-ai/portal/internal/model"
)

// LegacyStore is the local key-value store behind request chats.
type LegacyStore interface {
	Request(ctx context.Context, id string) (*model.Request, error)
	ChatMessages(ctx context.Context, requestID string) ([]model.Message, error)
	SaveChatMessage(ctx context.Context, requestID string, msg model.Message) error
}

// LocalRepository serves legacy request chats. Replies come from a Script
// after a fixed delay, both sides are persisted to the legacy store, and
// nothing is reloaded.
type LocalRepository struct {
	store  LegacyStore
	script *Script
	delay  time.Duration
	now    func() time.Time
}

// NewLocalRepository creates a legacy repository.
func NewLocalRepository(store LegacyStore, script *Script, delay time.Duration) *LocalRepository {
	return &LocalRepository{
		store:  store,
		script: script,
		delay:  delay,
		now:    time.Now,
	}
}

// Load implements Repository. An empty chat is seeded with the request
// description and the script greeting, and the seed is persisted.
func (r *LocalRepository) Load(ctx context.Context, requestID string) (*model.Conversation, error) {
	req, err := r.store.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}

	msgs, err := r.store.ChatMessages(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat: %w", err)
	}

	if len(msgs) == 0 {
		now := r.now()
		if req.Description != "" {
			msgs = append(msgs, NewMessage(model.RoleUser, req.Description, now))
		}
		msgs = append(msgs, NewMessage(model.RoleAssistant, r.script.Greeting(), now))
		for _, m := range msgs {
			if err := r.store.SaveChatMessage(ctx, requestID, m); err != nil {
				return nil, fmt.Errorf("failed to seed chat: %w", err)
			}
		}
	}

	return &model.Conversation{
		ID:        req.ID,
		Title:     req.Title,
		Messages:  msgs,
		CreatedAt: req.CreatedAt,
		UpdatedAt: msgs[len(msgs)-1].CreatedAt,
	}, nil
}

// Exchange implements Repository.
func (r *LocalRepository) Exchange(ctx context.Context, requestID string, user model.Message) (model.Message, error) {
	if err := r.store.SaveChatMessage(ctx, requestID, user); err != nil {
		return model.Message{}, fmt.Errorf("failed to save message: %w", err)
	}

	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}

	reply := NewMessage(model.RoleAssistant, r.script.Next(requestID), r.now())
	if err := r.store.SaveChatMessage(ctx, requestID, reply); err != nil {
		return model.Message{}, fmt.Errorf("failed to save reply: %w", err)
	}
	return reply, nil
}

// Reconcile implements Repository.
func (r *LocalRepository) Reconcile() bool { return false }
