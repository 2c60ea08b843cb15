package chat

import "time"

// Sender roles recognised in a transcript and on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message within a session's history. Turns are
// append-only: once recorded they are never edited or reordered.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
