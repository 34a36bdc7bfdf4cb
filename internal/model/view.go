package model

// ViewMode selects the backing store of a view.
type ViewMode string

const (
	ViewModeChat    ViewMode = "chat"
	ViewModeRequest ViewMode = "request"
)

// SidebarView is the rendered state of the document sidebar.
type SidebarView struct {
	// Available is true once an assistant message mentions documents; the
	// toggle button and the panel are only rendered when it is set.
	Available      bool `json:"available"`
	Open           bool `json:"open"`
	ManuallyClosed bool `json:"manually_closed"`
}

// ConversationView is a full snapshot of a mounted chat view.
type ConversationView struct {
	ConversationID string                `json:"conversation_id"`
	Mode           ViewMode              `json:"mode"`
	Title          string                `json:"title"`
	State          string                `json:"state"`
	Version        uint64                `json:"version"`
	Typing         bool                  `json:"typing"`
	Messages       []DisplayMessage      `json:"messages"`
	Documents      []DocumentRequirement `json:"documents"`
	Progress       Progress              `json:"progress"`
	Task           Task                  `json:"task"`
	ShowChecklist  bool                  `json:"show_checklist"`
	Sidebar        SidebarView           `json:"sidebar"`
	AcceptedFiles  string                `json:"accepted_files"`
}
