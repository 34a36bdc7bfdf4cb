package model

import (
	"time"
)

// Request is a legacy locally stored request.
type Request struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateRequestRequest is the request to create a legacy request.
type CreateRequestRequest struct {
	Description string `json:"description"`
}
