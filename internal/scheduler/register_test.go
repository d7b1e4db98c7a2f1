package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/reply"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeTransport) SendText(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("telegram: bad gateway")
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestRegister(t *testing.T) (*Register, *store.SQLiteRepo, *fakeTransport) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	transport := &fakeTransport{}
	factory := func(_ string) (Transport, error) { return transport, nil }
	composer := reply.NewComposer(repo, nil, zap.NewNop())
	return New(repo, composer, factory, "env:BOT_TOKEN", zap.NewNop()), repo, transport
}

func configure(t *testing.T, repo *store.SQLiteRepo, userID int64, freq, tz string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.SetSetting(ctx, userID, store.SettingFrequency, freq))
	require.NoError(t, repo.SetSetting(ctx, userID, store.SettingTimezone, tz))
}

func TestResync_InstallsSingleJob(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRegister(t)
	configure(t, repo, 100, "2", "America/New_York")

	require.NoError(t, r.Resync(ctx, 100))

	jobs, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	require.Equal(t, "ping_100", job.ID)
	require.Equal(t, "0", job.Minute)
	require.Equal(t, "6-23/2", job.Hour)
	require.Equal(t, "America/New_York", job.TZ)
	require.Equal(t, "env:BOT_TOKEN", job.CredentialRef)
	require.Equal(t, domain.MisfireGraceSec, job.MisfireGraceSec)
	require.NotNil(t, job.NextFireAt)
	require.Equal(t, 1, r.entryCount(100))
}

func TestResync_Idempotent(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRegister(t)
	configure(t, repo, 100, "8", "UTC")

	require.NoError(t, r.Resync(ctx, 100))
	first, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, r.Resync(ctx, 100))
	second, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, first[0].Hour, second[0].Hour)
	require.Equal(t, first[0].Minute, second[0].Minute)
	require.Equal(t, first[0].TZ, second[0].TZ)
	require.Equal(t, 1, r.entryCount(100))
}

func TestResync_FrequencyChangeReplacesJob(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRegister(t)
	configure(t, repo, 100, "2", "UTC")
	require.NoError(t, r.Resync(ctx, 100))

	require.NoError(t, repo.SetSetting(ctx, 100, store.SettingFrequency, "24"))
	require.NoError(t, r.Resync(ctx, 100))

	jobs, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "6", jobs[0].Hour)
	require.Equal(t, 1, r.entryCount(100))
}

func TestResync_MissingConfigInstallsNothing(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRegister(t)
	// Only the frequency is configured; the timezone was never set.
	require.NoError(t, repo.SetSetting(ctx, 100, store.SettingFrequency, "2"))

	err := r.Resync(ctx, 100)
	require.ErrorIs(t, err, ErrMissingScheduleConfig)

	jobs, jerr := repo.JobsForUser(ctx, 100)
	require.NoError(t, jerr)
	require.Empty(t, jobs)
	require.Zero(t, r.entryCount(100))
}

func TestResync_FailureRemovesPriorJob(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRegister(t)
	configure(t, repo, 100, "2", "UTC")
	require.NoError(t, r.Resync(ctx, 100))

	// Frequency drifts outside the enumerated set; the schedule ends disabled.
	require.NoError(t, repo.SetSetting(ctx, 100, store.SettingFrequency, "5"))
	err := r.Resync(ctx, 100)
	require.ErrorIs(t, err, domain.ErrInvalidFrequency)

	jobs, jerr := repo.JobsForUser(ctx, 100)
	require.NoError(t, jerr)
	require.Empty(t, jobs)
	require.Zero(t, r.entryCount(100))
}

func TestResync_ReplacesStaleJobRow(t *testing.T) {
	ctx := context.Background()
	r, repo, _ := newTestRegister(t)
	configure(t, repo, 100, "12", "Europe/Moscow")

	// A row left by an older per-time-of-day build.
	stale := &domain.Job{
		ID: "ping_100_14_0", UserID: 100, Minute: "0", Hour: "14",
		TZ: "UTC", CredentialRef: "env:BOT_TOKEN", MisfireGraceSec: domain.MisfireGraceSec,
	}
	require.NoError(t, repo.ReplaceJob(ctx, stale))

	require.NoError(t, r.Resync(ctx, 100))
	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "ping_100", jobs[0].ID)
	require.Equal(t, "6-23/12", jobs[0].Hour)
}

func TestDispatch_DeliversAndRecordsBotTurn(t *testing.T) {
	ctx := context.Background()
	r, repo, transport := newTestRegister(t)
	configure(t, repo, 100, "2", "America/New_York")
	require.NoError(t, r.Resync(ctx, 100))

	jobs, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)
	job := jobs[0]

	trigger, err := job.Trigger()
	require.NoError(t, err)
	sched, err := r.parser.Parse(trigger.CronSpec())
	require.NoError(t, err)

	// Simulated fire. Without an engine the accountability template is sent.
	r.dispatch(ctx, &job, sched)

	want := domain.LookupPersona(domain.DefaultPersona).PingTemplate
	require.Equal(t, []string{want}, transport.sentTexts())

	turns, err := repo.LastTurns(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, domain.RoleBot, turns[0].Role)
	require.Equal(t, want, turns[0].Content)

	after, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, after[0].NextFireAt)
	require.True(t, after[0].NextFireAt.After(time.Now().Add(-time.Minute)))
}

func TestDispatch_TransportFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	r, repo, transport := newTestRegister(t)
	transport.fail = true
	configure(t, repo, 100, "2", "UTC")
	require.NoError(t, r.Resync(ctx, 100))

	jobs, err := repo.JobsForUser(ctx, 100)
	require.NoError(t, err)

	// Must not panic and must not record an undelivered ping.
	r.dispatch(ctx, &jobs[0], nil)

	turns, err := repo.LastTurns(ctx, 100, 10)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestStart_CatchesUpMisfireWithinGrace(t *testing.T) {
	ctx := context.Background()
	r, repo, transport := newTestRegister(t)
	configure(t, repo, 100, "2", "UTC")

	missed := time.Now().UTC().Add(-30 * time.Minute)
	require.NoError(t, repo.ReplaceJob(ctx, &domain.Job{
		ID: domain.JobID(100), UserID: 100, Minute: "0", Hour: "6-23/2",
		TZ: "UTC", CredentialRef: "env:BOT_TOKEN",
		MisfireGraceSec: domain.MisfireGraceSec, NextFireAt: &missed,
	}))

	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.Len(t, transport.sentTexts(), 1)
}

func TestStart_DropsMisfireBeyondGrace(t *testing.T) {
	ctx := context.Background()
	r, repo, transport := newTestRegister(t)
	configure(t, repo, 100, "2", "UTC")

	missed := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.ReplaceJob(ctx, &domain.Job{
		ID: domain.JobID(100), UserID: 100, Minute: "0", Hour: "6-23/2",
		TZ: "UTC", CredentialRef: "env:BOT_TOKEN",
		MisfireGraceSec: domain.MisfireGraceSec, NextFireAt: &missed,
	}))

	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.Empty(t, transport.sentTexts())
}

func TestPlannedFireHoursForNewYorkEvery2h(t *testing.T) {
	spec, err := domain.Plan(2, "America/New_York")
	require.NoError(t, err)
	require.Equal(t, []int{6, 8, 10, 12, 14, 16, 18, 20, 22}, spec.FireHours())
}
