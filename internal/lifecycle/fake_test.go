package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filo-ai/portal/internal/model"
)

var errReplyDown = errors.New("reply api down")

// fakeRepo stores one conversation and, like the reply backend, persists
// both sides of every successful exchange.
type fakeRepo struct {
	mu       sync.Mutex
	conv     model.Conversation
	loadErr  error
	loads    int
	calls    []string
	reply    func(text string) (string, error)
	gate     chan struct{}
	noReload bool
}

func newFakeRepo(title string, msgs ...model.Message) *fakeRepo {
	return &fakeRepo{conv: model.Conversation{Title: title, Messages: msgs}}
}

func (f *fakeRepo) Load(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c := f.conv.Clone()
	c.ID = id
	return c, nil
}

func (f *fakeRepo) Exchange(_ context.Context, _ string, user model.Message) (model.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, user.Content)
	gate, reply := f.gate, f.reply
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	text := "Noted."
	if reply != nil {
		var err error
		if text, err = reply(user.Content); err != nil {
			return model.Message{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.conv.Messages
	pending := len(msgs) == 1 && msgs[0].Role == model.RoleUser && msgs[0].Content == user.Content
	if !pending {
		f.conv.Messages = append(f.conv.Messages, user)
	}
	asst := NewMessage(model.RoleAssistant, text, time.Now())
	f.conv.Messages = append(f.conv.Messages, asst)
	return asst, nil
}

func (f *fakeRepo) Reconcile() bool { return !f.noReload }

func (f *fakeRepo) setReply(fn func(string) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = fn
}

func (f *fakeRepo) appendStored(m model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conv.Messages = append(f.conv.Messages, m)
}

func (f *fakeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRepo) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func replyWith(text string) func(string) (string, error) {
	return func(string) (string, error) { return text, nil }
}

func failReply(string) (string, error) { return "", errReplyDown }

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func userMsg(text string) model.Message {
	return NewMessage(model.RoleUser, text, time.Now())
}

func assistantMsg(text string) model.Message {
	return NewMessage(model.RoleAssistant, text, time.Now())
}

func roles(view model.ConversationView) []model.DisplayRole {
	out := make([]model.DisplayRole, len(view.Messages))
	for i, m := range view.Messages {
		out[i] = m.Role
	}
	return out
}

func drain(ch <-chan model.ConversationView) []model.ConversationView {
	var out []model.ConversationView
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}
