// Package classifier decides from assistant message text whether the
// document sidebar or an inline checklist card should be shown.
//
// The checks are plain substring matches on lower-cased text. A false
// positive triggers the same behavior as a true one.
package classifier

import (
	"strings"

	"github.com/filo-ai/portal/internal/model"
)

var documentKeywords = []string{"upload", "document", "file"}

const checklistKeyword = "checklist"

// HasDocumentMention reports whether any assistant message mentions
// uploading, documents or files.
func HasDocumentMention(messages []model.Message) bool {
	for _, m := range messages {
		if m.Role != model.RoleAssistant {
			continue
		}
		if containsAny(strings.ToLower(m.Content), documentKeywords) {
			return true
		}
	}
	return false
}

// HasChecklistMention reports whether m is an assistant message that
// mentions a checklist.
func HasChecklistMention(m model.Message) bool {
	return m.Role == model.RoleAssistant &&
		strings.Contains(strings.ToLower(m.Content), checklistKeyword)
}

// AnyChecklistMention reports whether any message carries a checklist card.
func AnyChecklistMention(messages []model.Message) bool {
	for _, m := range messages {
		if HasChecklistMention(m) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
