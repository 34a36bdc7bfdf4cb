package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/store"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "conv.u1.c1.msg.user", MessageSubject("u1", "c1", model.RoleUser))
	assert.Equal(t, "conv.u1.c1.msg.assistant", MessageSubject("u1", "c1", model.RoleAssistant))
	assert.Equal(t, "conv.u1.c1.event.error", EventSubject("u1", "c1", model.EventTypeError))
	assert.Equal(t, "conv.u1.c1.msg.>", MessageFilter("u1", "c1"))
}

func TestConversationKey(t *testing.T) {
	assert.Equal(t, "u1.c1", ConversationKey("u1", "c1"))
}

func TestStoreImplementsContracts(t *testing.T) {
	var s *Store
	var _ store.Conversations = s
	var _ store.Users = s
	var _ store.Uploads = s
}
