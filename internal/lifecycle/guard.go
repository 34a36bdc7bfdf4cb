package lifecycle

import "sync"

// InitialReplyGuard records which conversations have had their initial reply
// requested. A claim is never released, so the first reply is requested at
// most once per conversation for the life of the process, however many
// times the view is mounted.
type InitialReplyGuard struct {
	mu      sync.Mutex
	claimed map[string]chan struct{}
}

// NewInitialReplyGuard creates an empty guard.
func NewInitialReplyGuard() *InitialReplyGuard {
	return &InitialReplyGuard{claimed: make(map[string]chan struct{})}
}

// Claim marks conversationID and reports whether this call was first. The
// winner calls Settle once its reply call has returned.
func (g *InitialReplyGuard) Claim(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.claimed[conversationID]; ok {
		return false
	}
	g.claimed[conversationID] = make(chan struct{})
	return true
}

// Settle records that the claimed reply call for conversationID returned,
// whatever its outcome.
func (g *InitialReplyGuard) Settle(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	done, ok := g.claimed[conversationID]
	if !ok {
		return
	}
	select {
	case <-done:
	default:
		close(done)
	}
}

// Claimed reports whether conversationID has been claimed. The returned
// channel is closed once the claimed call has settled.
func (g *InitialReplyGuard) Claimed(conversationID string) (<-chan struct{}, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	done, ok := g.claimed[conversationID]
	return done, ok
}
