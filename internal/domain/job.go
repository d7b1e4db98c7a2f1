package domain

import (
	"fmt"
	"time"
)

// MisfireGraceSec is how long after a missed trigger time a late fire is still
// executed. Anything older is dropped, so downtime never produces a ping storm.
const MisfireGraceSec = 3600

// JobID derives the deterministic job id for a user. One job per user, always.
func JobID(userID int64) string {
	return fmt.Sprintf("ping_%d", userID)
}

// Job is a persisted recurring ping job. The payload carries a credential
// reference (never a live client) plus the target user id, so the record stays
// serializable across restarts.
type Job struct {
	ID              string
	UserID          int64
	Minute          string
	Hour            string
	TZ              string
	CredentialRef   string
	MisfireGraceSec int
	NextFireAt      *time.Time // UTC, nullable
	CreatedAt       time.Time  // UTC
}

// Trigger rebuilds the trigger spec persisted on the job row.
func (j *Job) Trigger() (TriggerSpec, error) {
	loc, err := time.LoadLocation(j.TZ)
	if err != nil {
		return TriggerSpec{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, j.TZ)
	}
	return TriggerSpec{Minute: j.Minute, Hour: j.Hour, Location: loc}, nil
}
