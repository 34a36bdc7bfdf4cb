package lifecycle

import (
	"context"
	"time"

	"github.com/filo-ai/portal/internal/model"
)

// Loader reads a conversation owned by a user.
type Loader interface {
	Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
}

// RemoteRepository backs chat views with the conversation store and the
// reply API.
type RemoteRepository struct {
	userID  string
	loader  Loader
	replier Replier
	now     func() time.Time
}

// NewRemoteRepository creates a repository scoped to one user.
func NewRemoteRepository(userID string, loader Loader, replier Replier) *RemoteRepository {
	return &RemoteRepository{
		userID:  userID,
		loader:  loader,
		replier: replier,
		now:     time.Now,
	}
}

// Load implements Repository.
func (r *RemoteRepository) Load(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return r.loader.Get(ctx, r.userID, conversationID)
}

// Exchange implements Repository. The reply backend persists both messages.
func (r *RemoteRepository) Exchange(ctx context.Context, conversationID string, user model.Message) (model.Message, error) {
	reply, err := r.replier.Reply(ctx, conversationID, user.Content)
	if err != nil {
		return model.Message{}, err
	}
	return NewMessage(model.RoleAssistant, reply, r.now()), nil
}

// Reconcile implements Repository.
func (r *RemoteRepository) Reconcile() bool { return true }
