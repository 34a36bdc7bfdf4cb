package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/sidebar"
)

func TestMountWithCarriedTextRepliesOnce(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.setReply(replyWith("Sure, is this a monthly return?"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	view, err := c.Mount(context.Background(), "  File GST Return ")
	require.NoError(t, err)
	assert.Equal(t, string(StateAwaitingInitialReply), view.State)
	assert.True(t, view.Typing)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "File GST Return", view.Messages[0].Message)

	waitIdle(t, c)

	got := c.Snapshot()
	assert.Equal(t, string(StateReady), got.State)
	assert.False(t, got.Typing)
	assert.Equal(t, []model.DisplayRole{model.DisplayRoleUser, model.DisplayRoleAI}, roles(got))
	assert.Equal(t, "File GST Return", got.Messages[0].Message)
	assert.Equal(t, "Sure, is this a monthly return?", got.Messages[1].Message)
	assert.Equal(t, view.Messages[0].ID, got.Messages[0].ID, "optimistic id survives the reload")

	assert.Equal(t, 1, repo.callCount())
	assert.Equal(t, 2, repo.loadCount(), "mount plus reconciliation")
}

func TestMountLoneUserMessageRepliesOnce(t *testing.T) {
	repo := newFakeRepo("Income tax", userMsg("Help with ITR"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	view, err := c.Mount(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, string(StateAwaitingInitialReply), view.State)
	require.Len(t, view.Messages, 1)

	waitIdle(t, c)

	got := c.Snapshot()
	assert.Equal(t, []model.DisplayRole{model.DisplayRoleUser, model.DisplayRoleAI}, roles(got))
	assert.Equal(t, []string{"Help with ITR"}, repo.calls)
}

func TestMountWithoutPendingTurnIsReady(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []model.Message
		carried string
	}{
		{name: "empty without carried text"},
		{name: "answered", msgs: []model.Message{userMsg("hi"), assistantMsg("hello")}, carried: "ignored"},
		{name: "lone assistant", msgs: []model.Message{assistantMsg("welcome")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo("x", tt.msgs...)
			c := NewController("c1", model.ViewModeChat, repo, Options{})

			view, err := c.Mount(context.Background(), tt.carried)
			require.NoError(t, err)
			assert.Equal(t, string(StateReady), view.State)
			assert.Len(t, view.Messages, len(tt.msgs))

			waitIdle(t, c)
			assert.Zero(t, repo.callCount())
		})
	}
}

func TestMountLoadFailure(t *testing.T) {
	repo := newFakeRepo("x")
	repo.loadErr = errors.New("not found")
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	_, err := c.Mount(context.Background(), "hello")
	require.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, StateUninitialized, c.State())
	assert.Zero(t, repo.callCount())
}

func TestRemountDuringReplyReturnsSnapshot(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.gate = make(chan struct{})
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	first, err := c.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)

	second, err := c.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, 1, repo.loadCount())

	close(repo.gate)
	waitIdle(t, c)
	assert.Equal(t, 1, repo.callCount())
}

func TestInitialReplyOnceAcrossControllers(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.gate = make(chan struct{})
	guard := NewInitialReplyGuard()

	ctrls := make([]*Controller, 4)
	var wg sync.WaitGroup
	for i := range ctrls {
		ctrls[i] = NewController("c1", model.ViewModeChat, repo, Options{Guard: guard})
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			_, err := c.Mount(context.Background(), "File GST Return")
			assert.NoError(t, err)
		}(ctrls[i])
	}
	wg.Wait()

	close(repo.gate)
	for _, c := range ctrls {
		waitIdle(t, c)
	}
	assert.Equal(t, 1, repo.callCount())
	done, ok := guard.Claimed("c1")
	require.True(t, ok)
	assert.NotNil(t, done)

	// Views that lost the claim pick the reply up from the store.
	for _, c := range ctrls {
		got := c.Snapshot()
		assert.Equal(t, string(StateReady), got.State)
		assert.Equal(t, []model.DisplayRole{model.DisplayRoleUser, model.DisplayRoleAI}, roles(got))
	}
}

func TestInitialReplyNotRepeatedAfterUnmount(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.setReply(failReply)
	guard := NewInitialReplyGuard()

	first := NewController("c1", model.ViewModeChat, repo, Options{Guard: guard})
	_, err := first.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)
	waitIdle(t, first)
	first.Close()

	// The failed reply was not persisted, so the store still looks fresh.
	second := NewController("c1", model.ViewModeChat, repo, Options{Guard: guard})
	view, err := second.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)
	assert.Equal(t, string(StateReady), view.State)
	assert.Empty(t, view.Messages)
	waitIdle(t, second)
	assert.Equal(t, 1, repo.callCount())
}

func TestRemountWhileInitialReplyInFlight(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.gate = make(chan struct{})
	repo.setReply(replyWith("Please upload your GST documents."))
	guard := NewInitialReplyGuard()

	first := NewController("c1", model.ViewModeChat, repo, Options{Guard: guard})
	_, err := first.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)
	first.Close()

	second := NewController("c1", model.ViewModeChat, repo, Options{Guard: guard})
	view, err := second.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)
	assert.Equal(t, string(StateAwaitingInitialReply), view.State)
	assert.True(t, view.Typing)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "File GST Return", view.Messages[0].Message)

	close(repo.gate)
	waitIdle(t, first)
	waitIdle(t, second)

	got := second.Snapshot()
	assert.Equal(t, string(StateReady), got.State)
	assert.Equal(t, []model.DisplayRole{model.DisplayRoleUser, model.DisplayRoleAI}, roles(got))
	assert.Equal(t, "Please upload your GST documents.", got.Messages[1].Message)
	assert.Equal(t, 1, repo.callCount())
	assert.Equal(t, 3, repo.loadCount())
}

func TestInitialReplyFailureShowsFallback(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.setReply(failReply)
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	updates, cancel := c.Subscribe()
	defer cancel()

	_, err := c.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)
	waitIdle(t, c)

	got := c.Snapshot()
	assert.Equal(t, string(StateReady), got.State)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "File GST Return", got.Messages[0].Message)
	assert.Equal(t, model.DisplayRoleAI, got.Messages[1].Role)
	assert.Equal(t, FallbackReply, got.Messages[1].Message)
	assert.Equal(t, 1, repo.loadCount(), "no reload after a failed reply")

	var states []string
	var last uint64
	for _, v := range drain(updates) {
		assert.Greater(t, v.Version, last)
		last = v.Version
		states = append(states, v.State)
	}
	assert.Equal(t, []string{
		string(StateLoading),
		string(StateAwaitingInitialReply),
		string(StateFailed),
		string(StateReady),
	}, states)
}

func TestSendReconcilesWithStore(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	_, err := c.Mount(context.Background(), "")
	require.NoError(t, err)

	// Written by another session after our load.
	repo.appendStored(userMsg("from another tab"))

	view, err := c.Send(context.Background(), "  next question ")
	require.NoError(t, err)
	assert.Equal(t, string(StateSendingTurn), view.State)
	require.Len(t, view.Messages, 3)
	assert.Equal(t, "next question", view.Messages[2].Message)

	waitIdle(t, c)

	got := c.Snapshot()
	require.Len(t, got.Messages, 5)
	assert.Equal(t, "from another tab", got.Messages[2].Message)
	assert.Equal(t, "next question", got.Messages[3].Message)
	assert.Equal(t, string(StateReady), got.State)
	assert.Equal(t, []string{"next question"}, repo.calls)
	assert.Equal(t, 2, repo.loadCount())
}

func TestSendValidation(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	repo.gate = make(chan struct{})
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	_, err := c.Send(context.Background(), "too early")
	assert.ErrorIs(t, err, ErrBusy)

	_, err = c.Mount(context.Background(), "")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = c.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "two")
	assert.ErrorIs(t, err, ErrBusy)

	close(repo.gate)
	waitIdle(t, c)
	assert.Equal(t, []string{"one"}, repo.calls)
}

func TestSendFailureDoesNotReload(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	_, err := c.Mount(context.Background(), "")
	require.NoError(t, err)

	repo.setReply(failReply)
	_, err = c.Send(context.Background(), "next")
	require.NoError(t, err)
	waitIdle(t, c)

	got := c.Snapshot()
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "next", got.Messages[2].Message)
	assert.Equal(t, FallbackReply, got.Messages[3].Message)
	assert.Equal(t, string(StateReady), got.State)
	assert.Equal(t, 1, repo.loadCount())

	// The view accepts the next turn.
	repo.setReply(replyWith("ok"))
	_, err = c.Send(context.Background(), "again")
	require.NoError(t, err)
	waitIdle(t, c)
}

func TestReconcileFailureKeepsWorkingCopy(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	_, err := c.Mount(context.Background(), "")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.loadErr = errors.New("store unavailable")
	repo.mu.Unlock()

	_, err = c.Send(context.Background(), "next")
	require.NoError(t, err)
	waitIdle(t, c)

	got := c.Snapshot()
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "Noted.", got.Messages[3].Message)
	assert.Equal(t, string(StateReady), got.State)
}

func TestCloseDropsInFlightResults(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle)
	repo.gate = make(chan struct{})
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	updates, _ := c.Subscribe()
	_, err := c.Mount(context.Background(), "File GST Return")
	require.NoError(t, err)

	before := c.Snapshot()
	c.Close()

	_, ok := <-lastOf(updates)
	assert.False(t, ok, "subscriber channel closed on unmount")

	close(repo.gate)
	waitIdle(t, c)

	after := c.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, after.Messages, 1)
	assert.Equal(t, 1, repo.loadCount())

	_, err = c.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Mount(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
}

// lastOf consumes buffered snapshots and returns the channel for a final
// receive.
func lastOf(ch <-chan model.ConversationView) <-chan model.ConversationView {
	drain(ch)
	return ch
}

func TestSidebarAutoOpenRespectsManualClose(t *testing.T) {
	repo := newFakeRepo("GST return April",
		userMsg("File GST Return"),
		assistantMsg("Please upload the documents listed below."),
	)
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	view, err := c.Mount(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, view.Sidebar.Available)
	assert.True(t, view.Sidebar.Open)
	assert.Len(t, view.Documents, 5)

	view, err = c.Sidebar(sidebar.ActionClose)
	require.NoError(t, err)
	assert.False(t, view.Sidebar.Open)
	assert.True(t, view.Sidebar.ManuallyClosed)

	repo.setReply(replyWith("One more file: the bank statement."))
	_, err = c.Send(context.Background(), "done")
	require.NoError(t, err)
	waitIdle(t, c)
	assert.False(t, c.Snapshot().Sidebar.Open)

	view, err = c.Sidebar(sidebar.ActionChecklist)
	require.NoError(t, err)
	assert.Equal(t, model.SidebarView{Available: true, Open: true}, view.Sidebar)

	_, err = c.Sidebar(sidebar.Action("explode"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSidebarStaysClosedWithoutMention(t *testing.T) {
	repo := newFakeRepo("x", userMsg("please upload my file"), assistantMsg("Hello!"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	view, err := c.Mount(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, view.Sidebar.Available)
	assert.False(t, view.Sidebar.Open)
}

func TestChecklistAttachment(t *testing.T) {
	repo := newFakeRepo("x",
		userMsg("make a checklist"),
		assistantMsg("Creating a Checklist and task for you."),
	)
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	view, err := c.Mount(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, view.ShowChecklist)
	assert.False(t, view.Messages[0].HasChecklist)
	assert.True(t, view.Messages[1].HasChecklist)
}

func TestMarkUploaded(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle, userMsg("hi"), assistantMsg("hello"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	view, err := c.Mount(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, view.Documents, 1)
	assert.Equal(t, 0, view.Progress.RequiredPercent)
	assert.Equal(t, model.TaskStatusActionNeeded, view.Task.Status)

	assert.False(t, c.HasDocument("sales-register"))
	same, err := c.MarkUploaded("sales-register", &model.FileRef{Name: "x.pdf"})
	require.NoError(t, err)
	assert.Equal(t, view.Version, same.Version)

	require.True(t, c.HasDocument("document-1"))
	got, err := c.MarkUploaded("document-1", &model.FileRef{Name: "invoice.pdf"})
	require.NoError(t, err)
	assert.Greater(t, got.Version, view.Version)
	assert.True(t, got.Documents[0].Uploaded)
	assert.Equal(t, "invoice.pdf", got.Documents[0].File.Name)
	assert.Equal(t, 100, got.Progress.RequiredPercent)
	assert.Equal(t, model.TaskStatusCompleted, got.Task.Status)
	assert.Equal(t, 5, got.Task.CompletedSteps)
}

func TestTitleChangeRederivesChecklist(t *testing.T) {
	repo := newFakeRepo(model.DefaultConversationTitle, userMsg("hi"), assistantMsg("hello"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})

	_, err := c.Mount(context.Background(), "")
	require.NoError(t, err)
	_, err = c.MarkUploaded("document-1", &model.FileRef{Name: "a.pdf"})
	require.NoError(t, err)

	repo.mu.Lock()
	repo.conv.Title = "GSTR-3B April"
	repo.mu.Unlock()

	_, err = c.Send(context.Background(), "rename")
	require.NoError(t, err)
	waitIdle(t, c)

	got := c.Snapshot()
	assert.Equal(t, "GSTR-3B April", got.Title)
	assert.Len(t, got.Documents, 5)
	assert.Equal(t, 0, got.Progress.Uploaded)
}

func TestSubscriberKeepsNewestSnapshot(t *testing.T) {
	repo := newFakeRepo("x", userMsg("hi"), assistantMsg("hello"))
	c := NewController("c1", model.ViewModeChat, repo, Options{})
	_, err := c.Mount(context.Background(), "")
	require.NoError(t, err)

	updates, cancel := c.Subscribe()
	for i := 0; i < subscriberBuffer*3; i++ {
		_, err := c.Sidebar(sidebar.ActionToggle)
		require.NoError(t, err)
	}

	got := drain(updates)
	require.Len(t, got, subscriberBuffer)
	assert.Equal(t, c.Snapshot().Version, got[len(got)-1].Version)

	cancel()
	cancel()
	_, ok := <-updates
	assert.False(t, ok)
}
