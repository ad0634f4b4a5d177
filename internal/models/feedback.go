package models

import "time"

// Feedback is a write-only note left by a user
type Feedback struct {
	ID        string
	OwnerID   string
	Content   string
	CreatedAt time.Time
}
