package store

import (
	"context"
	"errors"
	"time"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
)

// SettingKey names a per-user setting. Keys are a fixed whitelist; the repo
// rejects anything else so free-form names can never reach a query.
type SettingKey string

const (
	SettingPersona   SettingKey = "persona"
	SettingTimezone  SettingKey = "timezone"
	SettingFrequency SettingKey = "ping_frequency_hours"
)

var ErrUnknownSetting = errors.New("unknown setting key")

func validKey(k SettingKey) bool {
	switch k {
	case SettingPersona, SettingTimezone, SettingFrequency:
		return true
	}
	return false
}

// Repo defines storage operations for settings, conversation history and
// persisted ping jobs.
type Repo interface {
	// GetSetting returns the stored value and whether it was present.
	// Absence is not an error; callers decide between defaults and aborting.
	GetSetting(ctx context.Context, userID int64, key SettingKey) (string, bool, error)
	SetSetting(ctx context.Context, userID int64, key SettingKey, value string) error

	// AppendTurn inserts a turn and evicts the oldest beyond the 50-turn cap,
	// both inside one transaction.
	AppendTurn(ctx context.Context, userID int64, role, content string) error
	// LastTurns returns up to n most recent turns, chronological, oldest first.
	LastTurns(ctx context.Context, userID int64, n int) ([]domain.Turn, error)
	ClearTurns(ctx context.Context, userID int64) error

	ListJobs(ctx context.Context) ([]domain.Job, error)
	JobsForUser(ctx context.Context, userID int64) ([]domain.Job, error)
	// ReplaceJob deletes every job for job.UserID and inserts job, in one
	// transaction: no durable state with zero or two jobs is ever readable.
	ReplaceJob(ctx context.Context, job *domain.Job) error
	DeleteJobsForUser(ctx context.Context, userID int64) (int64, error)
	SetJobNextFire(ctx context.Context, jobID string, next time.Time) error

	Close() error
}
