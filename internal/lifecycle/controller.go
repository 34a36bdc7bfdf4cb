// Package lifecycle drives a mounted conversation view: it loads the
// conversation, requests the initial reply when one is owed, runs user
// turns against the reply API, reconciles with the store, and keeps the
// document checklist and sidebar in step with the message list.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/checklist"
	"github.com/filo-ai/portal/internal/classifier"
	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/sidebar"
	"github.com/filo-ai/portal/pkg/logger"
	"github.com/filo-ai/portal/pkg/metrics"
	"github.com/filo-ai/portal/pkg/tracing"
)

const subscriberBuffer = 8

const (
	kindInitial = "initial"
	kindTurn    = "turn"
)

// Options configures a Controller.
type Options struct {
	// Guard is shared by every controller in the process. A private guard
	// is created when nil.
	Guard  *InitialReplyGuard
	Logger *logger.Logger
	Now    func() time.Time

	// group, when set by a Manager, tracks background work across
	// controllers.
	group *sync.WaitGroup
}

// Controller owns the view state of one conversation. Transitions are
// serialized under mu; store and reply calls run outside it.
type Controller struct {
	id    string
	mode  model.ViewMode
	repo  Repository
	guard *InitialReplyGuard
	log   *logger.Logger
	now   func() time.Time
	group *sync.WaitGroup

	mu        sync.Mutex
	state     State
	closed    bool
	conv      *model.Conversation
	title     string
	slots     []model.DocumentRequirement
	derivedAt time.Time
	sidebar   sidebar.Visibility
	version   uint64
	inflight  int
	idle      chan struct{}
	subs      map[int]chan model.ConversationView
	nextSub   int
}

// NewController creates a controller in StateUninitialized.
func NewController(conversationID string, mode model.ViewMode, repo Repository, opts Options) *Controller {
	if opts.Guard == nil {
		opts.Guard = NewInitialReplyGuard()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.group == nil {
		opts.group = &sync.WaitGroup{}
	}

	idle := make(chan struct{})
	close(idle)

	return &Controller{
		id:    conversationID,
		mode:  mode,
		repo:  repo,
		guard: opts.Guard,
		log:   opts.Logger.WithView(string(mode), conversationID),
		now:   opts.Now,
		group: opts.group,
		state: StateUninitialized,
		conv:  &model.Conversation{ID: conversationID},
		idle:  idle,
		subs:  make(map[int]chan model.ConversationView),
	}
}

// ID returns the conversation id.
func (c *Controller) ID() string { return c.id }

// Mode returns the view mode.
func (c *Controller) Mode() model.ViewMode { return c.mode }

// Mount loads the conversation and, when the conversation is empty with
// carried text or holds a single user message, starts the initial reply in
// the background. When another view already requested that reply and it is
// still in flight, the view waits for it and reloads instead. Mounting an already mounted controller returns the current
// snapshot without touching the store.
func (c *Controller) Mount(ctx context.Context, carried string) (model.ConversationView, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ConversationView{}, ErrClosed
	}
	if c.state != StateUninitialized {
		view := c.snapshotLocked()
		c.mu.Unlock()
		return view, nil
	}
	c.state = StateLoading
	c.publishLocked()
	c.mu.Unlock()

	conv, err := c.repo.Load(ctx, c.id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.ConversationView{}, ErrClosed
	}
	if err != nil {
		c.state = StateUninitialized
		c.log.Warn("failed to load conversation", zap.Error(err))
		return model.ConversationView{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	c.applyLocked(conv)

	bg := context.WithoutCancel(ctx)
	pending, owed := c.pendingInitialLocked(strings.TrimSpace(carried))
	switch {
	case !owed:
		c.state = StateReady
	case c.guard.Claim(c.id):
		user := c.showPendingLocked(pending)
		c.state = StateAwaitingInitialReply
		c.startLocked(bg, user, kindInitial)
	default:
		done, _ := c.guard.Claimed(c.id)
		select {
		case <-done:
			// The claimed call already returned and the load has what it stored.
			c.state = StateReady
		default:
			// Another view's call is in flight. Show the text and pick up the
			// stored reply once that call returns.
			c.showPendingLocked(pending)
			c.state = StateAwaitingInitialReply
			c.goLocked(func() {
				<-done
				c.reconcile(bg)
			})
		}
	}

	c.publishLocked()
	return c.snapshotLocked(), nil
}

// showPendingLocked makes the text owed a reply visible and returns the user
// message it lives in.
func (c *Controller) showPendingLocked(pending string) model.Message {
	if len(c.conv.Messages) == 0 {
		c.conv.Messages = append(c.conv.Messages, NewMessage(model.RoleUser, pending, c.now()))
	}
	return c.conv.Messages[len(c.conv.Messages)-1]
}

// pendingInitialLocked returns the text owed an initial reply, if any.
func (c *Controller) pendingInitialLocked(carried string) (string, bool) {
	msgs := c.conv.Messages
	switch {
	case len(msgs) == 0 && carried != "":
		return carried, true
	case len(msgs) == 1 && msgs[0].Role == model.RoleUser:
		return msgs[0].Content, true
	}
	return "", false
}

// Send submits a user turn. The optimistic message is visible in the
// returned snapshot; the reply arrives through subscribers.
func (c *Controller) Send(ctx context.Context, text string) (model.ConversationView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ConversationView{}, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.ConversationView{}, ErrClosed
	}
	if c.state != StateReady {
		return model.ConversationView{}, ErrBusy
	}

	user := NewMessage(model.RoleUser, text, c.now())
	c.conv.Messages = append(c.conv.Messages, user)
	c.state = StateSendingTurn
	c.startLocked(context.WithoutCancel(ctx), user, kindTurn)

	c.publishLocked()
	return c.snapshotLocked(), nil
}

func (c *Controller) startLocked(ctx context.Context, user model.Message, kind string) {
	c.goLocked(func() { c.exchange(ctx, user, kind) })
}

// goLocked runs fn in the background, counted by Wait and the manager.
func (c *Controller) goLocked(fn func()) {
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
	c.group.Add(1)

	go func() {
		defer c.group.Done()
		defer c.finish()
		fn()
	}()
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}
}

// exchange runs one reply call and, when the repository asks for it, the
// reconciliation reload that follows a successful reply.
func (c *Controller) exchange(ctx context.Context, user model.Message, kind string) {
	ctx, span := tracing.Tracer("lifecycle").Start(ctx, "lifecycle.exchange")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", c.id),
		attribute.String("view.mode", string(c.mode)),
		attribute.String("exchange.kind", kind),
	)

	start := time.Now()
	reply, err := c.repo.Exchange(ctx, c.id, user)
	elapsed := time.Since(start).Seconds()
	if kind == kindInitial {
		c.guard.Settle(c.id)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply failed")
		metrics.RecordReply(string(c.mode), kind, "error", elapsed)
		c.log.Error("reply failed", zap.String("kind", kind), zap.Error(err))
		c.fail()
		return
	}
	metrics.RecordReply(string(c.mode), kind, "ok", elapsed)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.conv.Messages = append(c.conv.Messages, reply)
	if !c.repo.Reconcile() {
		c.state = StateReady
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	c.publishLocked()
	c.mu.Unlock()

	c.reconcile(ctx)
}

func (c *Controller) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.conv.Messages = append(c.conv.Messages, NewMessage(model.RoleAssistant, FallbackReply, c.now()))
	c.state = StateFailed
	c.publishLocked()
	c.state = StateReady
	c.publishLocked()
}

// reconcile replaces the working copy with the stored conversation. A failed
// reload keeps the working copy.
func (c *Controller) reconcile(ctx context.Context) {
	conv, err := c.repo.Load(ctx, c.id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		c.log.Warn("reconciliation reload failed", zap.Error(err))
	} else {
		metrics.ReconcileTotal.WithLabelValues("ok").Inc()
		c.applyLocked(conv)
	}
	c.state = StateReady
	c.publishLocked()
}

// applyLocked installs conv as the working copy. The checklist is derived
// again only when the title changes.
func (c *Controller) applyLocked(conv *model.Conversation) {
	c.conv = conv.Clone()
	title := conv.Title
	if title == "" {
		title = model.DefaultConversationTitle
	}
	if title != c.title || c.slots == nil {
		c.title = title
		c.slots = checklist.Derive(title)
		c.derivedAt = c.now()
	}
}

// Sidebar applies a user sidebar action.
func (c *Controller) Sidebar(action sidebar.Action) (model.ConversationView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.ConversationView{}, ErrClosed
	}
	if !c.sidebar.Apply(action) {
		return model.ConversationView{}, ErrUnknownAction
	}
	c.publishLocked()
	return c.snapshotLocked(), nil
}

// HasDocument reports whether the checklist has a slot with documentID.
func (c *Controller) HasDocument(documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return checklist.Index(c.slots, documentID) >= 0
}

// MarkUploaded attaches file to a checklist slot. An unknown slot leaves the
// view unchanged.
func (c *Controller) MarkUploaded(documentID string, file *model.FileRef) (model.ConversationView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.ConversationView{}, ErrClosed
	}
	slots, ok := checklist.MarkUploaded(c.slots, documentID, file)
	if ok {
		c.slots = slots
		c.publishLocked()
	}
	return c.snapshotLocked(), nil
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() model.ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Subscribe returns a channel of snapshots published after the call. A slow
// subscriber only loses intermediate snapshots, never the newest one. The
// channel is closed by the returned cancel func or by Close.
func (c *Controller) Subscribe() (<-chan model.ConversationView, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan model.ConversationView, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close unmounts the view. Background calls run to completion but their
// results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Wait blocks until no reply or reload is in flight.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishLocked bumps the version, re-evaluates the sidebar against the
// message list and fans the snapshot out to subscribers.
func (c *Controller) publishLocked() {
	c.version++
	if c.sidebar.AutoOpen(classifier.HasDocumentMention(c.conv.Messages)) {
		metrics.SidebarAutoOpens.Inc()
	}
	if len(c.subs) == 0 {
		return
	}

	view := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- view:
			continue
		default:
		}
		// Drop the oldest queued snapshot to make room for the newest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- view:
		default:
		}
	}
}

func (c *Controller) snapshotLocked() model.ConversationView {
	msgs := make([]model.DisplayMessage, len(c.conv.Messages))
	for i, m := range c.conv.Messages {
		msgs[i] = displayMessage(m)
	}

	docs := make([]model.DocumentRequirement, len(c.slots))
	copy(docs, c.slots)

	return model.ConversationView{
		ConversationID: c.id,
		Mode:           c.mode,
		Title:          c.title,
		State:          string(c.state),
		Version:        c.version,
		Typing:         c.state.Typing(),
		Messages:       msgs,
		Documents:      docs,
		Progress:       checklist.ComputeProgress(c.slots),
		Task:           checklist.BuildTask(c.id, c.title, c.slots, c.derivedAt),
		ShowChecklist:  classifier.AnyChecklistMention(c.conv.Messages),
		Sidebar: model.SidebarView{
			Available:      classifier.HasDocumentMention(c.conv.Messages),
			Open:           c.sidebar.IsOpen,
			ManuallyClosed: c.sidebar.ManuallyClosed,
		},
		AcceptedFiles: checklist.AcceptedFiles,
	}
}

func displayMessage(m model.Message) model.DisplayMessage {
	role := model.DisplayRoleUser
	if m.Role == model.RoleAssistant {
		role = model.DisplayRoleAI
	}
	return model.DisplayMessage{
		ID:           m.ID,
		Role:         role,
		Message:      m.Content,
		Timestamp:    m.CreatedAt,
		HasChecklist: classifier.HasChecklistMention(m),
	}
}
