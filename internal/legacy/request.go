package legacy

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/filo-ai/portal/internal/model"
)

const (
	maxTitleLen = 50
	// DefaultTitle is used when the description's first line is blank.
	DefaultTitle = "New Request"
)

// ErrEmptyDescription is returned for a blank request description.
var ErrEmptyDescription = errors.New("description is empty")

// Suggestions are the frequently used requests offered on the request form.
var Suggestions = []string{
	"File GST Return",
	"File Income Tax",
	"TDS Return",
}

// NewRequest builds a request from the text the user typed.
func NewRequest(description string, now time.Time) (model.Request, error) {
	if strings.TrimSpace(description) == "" {
		return model.Request{}, ErrEmptyDescription
	}

	return model.Request{
		ID:          fmt.Sprintf("req-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Name:        fmt.Sprintf("Request %d", now.UnixMilli()),
		Title:       Title(description),
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
	}, nil
}

// Title is the first line of description cut to 50 characters.
func Title(description string) string {
	line, _, _ := strings.Cut(description, "\n")
	if utf8.RuneCountInString(line) > maxTitleLen {
		line = string([]rune(line)[:maxTitleLen])
	}
	if line == "" {
		return DefaultTitle
	}
	return line
}
