// Package sidebar holds the visibility state of the document sidebar.
package sidebar

// Visibility tracks whether the sidebar is open and whether the user closed
// it by hand. A manual close suppresses automatic opens until the user opens
// the sidebar again.
type Visibility struct {
	IsOpen         bool
	ManuallyClosed bool
}

// AutoOpen opens the sidebar in response to a document mention unless the
// user has closed it. It reports whether the state changed.
func (v *Visibility) AutoOpen(mentioned bool) bool {
	if !mentioned || v.IsOpen || v.ManuallyClosed {
		return false
	}
	v.IsOpen = true
	return true
}

// Open is an explicit user open, including a checklist card click.
func (v *Visibility) Open() {
	v.IsOpen = true
	v.ManuallyClosed = false
}

// Close is an explicit user close.
func (v *Visibility) Close() {
	v.IsOpen = false
	v.ManuallyClosed = true
}

// Toggle flips the sidebar the way the header button does.
func (v *Visibility) Toggle() {
	if v.IsOpen {
		v.Close()
		return
	}
	v.Open()
}

// Action is a user-initiated sidebar command.
type Action string

const (
	ActionOpen      Action = "open"
	ActionClose     Action = "close"
	ActionToggle    Action = "toggle"
	ActionChecklist Action = "checklist"
)

// Apply runs a user action. Unknown actions report false.
func (v *Visibility) Apply(a Action) bool {
	switch a {
	case ActionOpen, ActionChecklist:
		v.Open()
	case ActionClose:
		v.Close()
	case ActionToggle:
		v.Toggle()
	default:
		return false
	}
	return true
}
