package model

import (
	"time"
)

// FileRef describes an uploaded file attached to a document slot.
type FileRef struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	ObjectKey   string    `json:"object_key,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DocumentRequirement is one checklist slot.
type DocumentRequirement struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	Required    bool     `json:"required"`
	Uploaded    bool     `json:"uploaded"`
	File        *FileRef `json:"file,omitempty"`
}

// Progress is the aggregate upload state of a checklist.
type Progress struct {
	RequiredUploaded int  `json:"required_uploaded"`
	RequiredTotal    int  `json:"required_total"`
	Uploaded         int  `json:"uploaded"`
	Total            int  `json:"total"`
	RequiredPercent  int  `json:"required_percent"`
	HasOptional      bool `json:"has_optional"`
}

// TaskType classifies a filing task.
type TaskType string

const (
	TaskTypeGST   TaskType = "GST"
	TaskTypeITR   TaskType = "ITR"
	TaskTypeTDS   TaskType = "TDS"
	TaskTypeOther TaskType = "Other"
)

// TaskStatus is the state of a filing task.
type TaskStatus string

const (
	TaskStatusPending      TaskStatus = "pending"
	TaskStatusInProgress   TaskStatus = "in-progress"
	TaskStatusCompleted    TaskStatus = "completed"
	TaskStatusActionNeeded TaskStatus = "action-needed"
)

// Task is the checklist card derived from a conversation and its documents.
type Task struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Type               TaskType   `json:"type"`
	Status             TaskStatus `json:"status"`
	DueDate            string     `json:"due_date"`
	Progress           int        `json:"progress"`
	CompletedSteps     int        `json:"completed_steps"`
	TotalSteps         int        `json:"total_steps"`
	DocumentsCompleted int        `json:"documents_completed"`
	DocumentsTotal     int        `json:"documents_total"`
}
