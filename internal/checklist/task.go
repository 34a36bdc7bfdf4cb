package checklist

import (
	"math"
	"time"

	"github.com/filo-ai/portal/internal/model"
)

const (
	// TotalSteps is the number of segments on the progress bar.
	TotalSteps = 5

	dueIn = 30 * 24 * time.Hour
)

// BuildTask synthesizes the checklist card for a conversation.
func BuildTask(conversationID, title string, slots []model.DocumentRequirement, derivedAt time.Time) model.Task {
	p := ComputeProgress(slots)

	taskType := model.TaskTypeOther
	if IsGST(title) {
		taskType = model.TaskTypeGST
	}

	status := model.TaskStatusActionNeeded
	if p.RequiredTotal > 0 && p.RequiredUploaded == p.RequiredTotal {
		status = model.TaskStatusCompleted
	}

	return model.Task{
		ID:                 "task-" + conversationID,
		Title:              title,
		Type:               taskType,
		Status:             status,
		DueDate:            derivedAt.Add(dueIn).Format("Jan 2, 2006"),
		Progress:           p.RequiredPercent,
		CompletedSteps:     CompletedSteps(p.RequiredPercent),
		TotalSteps:         TotalSteps,
		DocumentsCompleted: p.RequiredUploaded,
		DocumentsTotal:     p.RequiredTotal,
	}
}

// CompletedSteps maps a percentage onto the progress bar segments.
func CompletedSteps(percent int) int {
	return int(math.Round(float64(percent) / 100 * TotalSteps))
}
