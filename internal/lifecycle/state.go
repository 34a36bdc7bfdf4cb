package lifecycle

import "errors"

// State is the lifecycle state of a conversation view.
type State string

const (
	StateUninitialized        State = "uninitialized"
	StateLoading              State = "loading"
	StateAwaitingInitialReply State = "awaiting_initial_reply"
	StateReady                State = "ready"
	StateSendingTurn          State = "sending_turn"
	// StateFailed is published once after a failed reply and is always
	// followed by StateReady.
	StateFailed State = "failed"
)

// Typing reports whether the view shows the typing indicator.
func (s State) Typing() bool {
	return s == StateAwaitingInitialReply || s == StateSendingTurn
}

// FallbackReply is shown in place of an assistant reply that could not be
// obtained.
const FallbackReply = "Sorry, I encountered an error processing your request. Please try again."

var (
	// ErrBusy is returned when a turn is submitted while the view is not ready.
	ErrBusy = errors.New("view is busy")
	// ErrClosed is returned by a controller after it has been unmounted.
	ErrClosed = errors.New("view is closed")
	// ErrEmptyMessage is returned for a turn that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrLoad wraps failures to fetch the conversation on mount.
	ErrLoad = errors.New("failed to load conversation")
	// ErrUnknownAction is returned for an unrecognized sidebar action.
	ErrUnknownAction = errors.New("unknown sidebar action")
	// ErrNotMounted is returned when no view is mounted for an id.
	ErrNotMounted = errors.New("view not mounted")
	// ErrUnknownMode is returned when no repository is registered for a mode.
	ErrUnknownMode = errors.New("unknown view mode")
)
