package models

import "time"

// Message captures one turn of a conversation stored in the history.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is one citation attached to an assistant reply, either extracted
// from the reply text or supplied by the answer backend directly.
type Source struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type Message struct {
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
