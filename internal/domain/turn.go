package domain

import "time"

// Roles a conversation turn can carry. The bot never stores any other role.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// HistoryCap is the maximum number of turns retained per user.
// Appending beyond it evicts the oldest turns.
const HistoryCap = 50

// Turn is a single immutable entry in a user's conversation history.
type Turn struct {
	Role      string
	Content   string
	CreatedAt time.Time // UTC
}
