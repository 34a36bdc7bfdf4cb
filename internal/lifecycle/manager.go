package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/pkg/logger"
	"github.com/filo-ai/portal/pkg/metrics"
)

// RepositoryFactory builds the repository a user's view of one mode uses.
type RepositoryFactory func(userID string) Repository

type slotKey struct {
	userID string
	mode   model.ViewMode
}

// Manager holds one view slot per user and mode. Mounting a different
// conversation into an occupied slot closes the previous controller.
type Manager struct {
	guard *InitialReplyGuard
	log   *logger.Logger
	now   func() time.Time
	group sync.WaitGroup

	mu        sync.Mutex
	factories map[model.ViewMode]RepositoryFactory
	slots     map[slotKey]*Controller
	closed    bool
}

// NewManager creates a manager. All of its controllers share guard.
func NewManager(guard *InitialReplyGuard, log *logger.Logger) *Manager {
	if guard == nil {
		guard = NewInitialReplyGuard()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		guard:     guard,
		log:       log,
		now:       time.Now,
		factories: make(map[model.ViewMode]RepositoryFactory),
		slots:     make(map[slotKey]*Controller),
	}
}

// Register sets the repository factory for a mode.
func (m *Manager) Register(mode model.ViewMode, factory RepositoryFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.factories[mode] = factory
}

// Mount mounts conversationID into the user's slot for mode and returns the
// initial snapshot. A load failure empties the slot.
func (m *Manager) Mount(ctx context.Context, userID string, mode model.ViewMode, conversationID, carried string) (model.ConversationView, error) {
	ctrl, err := m.acquire(userID, mode, conversationID)
	if err != nil {
		return model.ConversationView{}, err
	}

	view, err := ctrl.Mount(ctx, carried)
	if errors.Is(err, ErrLoad) {
		m.release(slotKey{userID, mode}, ctrl)
	}
	return view, err
}

func (m *Manager) acquire(userID string, mode model.ViewMode, conversationID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	factory, ok := m.factories[mode]
	if !ok {
		return nil, ErrUnknownMode
	}

	key := slotKey{userID, mode}
	if cur := m.slots[key]; cur != nil {
		if cur.ID() == conversationID && !cur.Closed() {
			return cur, nil
		}
		m.closeLocked(key, cur)
	}

	ctrl := NewController(conversationID, mode, factory(userID), Options{
		Guard:  m.guard,
		Logger: m.log.With(zap.String(logger.FieldUserID, userID)),
		Now:    m.now,
		group:  &m.group,
	})
	m.slots[key] = ctrl
	metrics.ViewsActive.Inc()
	return ctrl, nil
}

func (m *Manager) release(key slotKey, ctrl *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots[key] == ctrl {
		m.closeLocked(key, ctrl)
	}
}

func (m *Manager) closeLocked(key slotKey, ctrl *Controller) {
	ctrl.Close()
	delete(m.slots, key)
	metrics.ViewsActive.Dec()
}

// View returns the controller mounted for conversationID.
func (m *Manager) View(userID string, mode model.ViewMode, conversationID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl := m.slots[slotKey{userID, mode}]
	if ctrl == nil || ctrl.ID() != conversationID {
		return nil, ErrNotMounted
	}
	return ctrl, nil
}

// Unmount closes the view of conversationID if it is mounted.
func (m *Manager) Unmount(userID string, mode model.ViewMode, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{userID, mode}
	if ctrl := m.slots[key]; ctrl != nil && ctrl.ID() == conversationID {
		m.closeLocked(key, ctrl)
	}
}

// Active returns the number of mounted views.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.slots)
}

// Close unmounts every view and rejects further mounts.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for key, ctrl := range m.slots {
		m.closeLocked(key, ctrl)
	}
}

// Drain waits for background work of every controller, mounted or not.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
