package models

import "time"

// Session groups an ordered sequence of messages into one conversation thread.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`

	// FirstMessage caches a short preview of the first user message,
	// used as the session description and by search.
	FirstMessage string `json:"first_message,omitempty"`
}
