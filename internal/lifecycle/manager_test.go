package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filo-ai/portal/internal/model"
)

func drainManager(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Drain(ctx))
}

func TestManagerNewConversationEndToEnd(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.setReply(replyWith("Sure. Please upload your documents."))

	m := NewManager(nil, nil)
	m.Register(model.ViewModeChat, func(string) Repository { return repo })

	view, err := m.Mount(context.Background(), "u1", model.ViewModeChat, "c1", "File GST Return")
	require.NoError(t, err)
	assert.True(t, view.Typing)
	drainManager(t, m)

	ctrl, err := m.View("u1", model.ViewModeChat, "c1")
	require.NoError(t, err)
	got := ctrl.Snapshot()

	assert.Equal(t, []model.DisplayRole{model.DisplayRoleUser, model.DisplayRoleAI}, roles(got))
	assert.Equal(t, model.DefaultConversationTitle, got.Title)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "document-1", got.Documents[0].ID)
	assert.Equal(t, model.TaskTypeOther, got.Task.Type)
	assert.True(t, got.Sidebar.Open)
	assert.Equal(t, 1, repo.callCount())

	m.Close()
}

func TestManagerSwitchingConversationClosesPrevious(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	m := NewManager(nil, nil)
	m.Register(model.ViewModeChat, func(string) Repository { return repo })

	_, err := m.Mount(context.Background(), "u1", model.ViewModeChat, "a", "")
	require.NoError(t, err)
	first, err := m.View("u1", model.ViewModeChat, "a")
	require.NoError(t, err)

	_, err = m.Mount(context.Background(), "u1", model.ViewModeChat, "b", "")
	require.NoError(t, err)

	assert.True(t, first.Closed())
	_, err = m.View("u1", model.ViewModeChat, "a")
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.Equal(t, 1, m.Active())

	// Another user keeps an independent slot.
	_, err = m.Mount(context.Background(), "u2", model.ViewModeChat, "a", "")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Active())

	m.Unmount("u1", model.ViewModeChat, "b")
	assert.Equal(t, 1, m.Active())

	m.Close()
	assert.Zero(t, m.Active())
	_, err = m.Mount(context.Background(), "u1", model.ViewModeChat, "a", "")
	assert.ErrorIs(t, err, ErrClosed)
	drainManager(t, m)
}

func TestManagerRemountSameConversationReusesController(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	m := NewManager(nil, nil)
	m.Register(model.ViewModeChat, func(string) Repository { return repo })

	_, err := m.Mount(context.Background(), "u1", model.ViewModeChat, "a", "")
	require.NoError(t, err)
	first, _ := m.View("u1", model.ViewModeChat, "a")

	_, err = m.Mount(context.Background(), "u1", model.ViewModeChat, "a", "")
	require.NoError(t, err)
	second, _ := m.View("u1", model.ViewModeChat, "a")

	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.loadCount())
	m.Close()
}

func TestManagerLoadFailureEmptiesSlot(t *testing.T) {
	repo := newFakeRepo("x")
	repo.loadErr = errors.New("no such conversation")
	m := NewManager(nil, nil)
	m.Register(model.ViewModeChat, func(string) Repository { return repo })

	_, err := m.Mount(context.Background(), "u1", model.ViewModeChat, "a", "")
	require.ErrorIs(t, err, ErrLoad)
	assert.Zero(t, m.Active())
}

func TestManagerUnknownMode(t *testing.T) {
	m := NewManager(nil, nil)

	_, err := m.Mount(context.Background(), "u1", model.ViewModeRequest, "a", "")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
