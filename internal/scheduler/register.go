// Package scheduler owns the recurring ping machinery: a cron runtime, a
// durable job table, and the dispatcher that fires individual pings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
)

// ErrMissingScheduleConfig is returned by Resync when frequency or timezone
// has never been configured for the user. No job is installed in that case.
var ErrMissingScheduleConfig = errors.New("missing schedule configuration")

// Composer produces the text of a check-in ping. It never fails.
type Composer interface {
	Ping(ctx context.Context, userID int64) string
}

// Transport delivers ping text to a user.
type Transport interface {
	SendText(userID int64, text string) error
}

// TransportFactory resolves a persisted credential reference to a live
// transport at fire time. Job rows never embed connection handles.
type TransportFactory func(credentialRef string) (Transport, error)

// Register keeps the invariant "at most one active recurring job per user":
// it owns the cron runtime, mirrors installed jobs into the durable job table,
// and atomically replaces a user's job on every resync.
type Register struct {
	repo      store.Repo
	composer  Composer
	transport TransportFactory
	credRef   string
	log       *zap.Logger

	cron   *cron.Cron
	parser cron.Parser
	now    func() time.Time

	mu      sync.Mutex
	entries map[int64][]cron.EntryID // userID -> active cron entries

	ctx context.Context // base context for dispatches, set in Start
}

// New creates a Register. credentialRef is what gets persisted into job
// payloads (e.g. "env:BOT_TOKEN") and handed back to the factory at fire time.
func New(repo store.Repo, composer Composer, factory TransportFactory, credentialRef string, log *zap.Logger) *Register {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	r := &Register{
		repo:      repo,
		composer:  composer,
		transport: factory,
		credRef:   credentialRef,
		log:       log,
		parser:    parser,
		now:       time.Now,
		entries:   make(map[int64][]cron.EntryID),
		ctx:       context.Background(),
	}
	r.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(newCronLogger(log))),
	)
	return r
}

// Start reloads persisted jobs into the cron runtime, executes at most one
// catch-up fire per job missed within its grace period, and starts the clock.
func (r *Register) Start(ctx context.Context) error {
	r.ctx = ctx

	jobs, err := r.repo.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("load persisted jobs: %w", err)
	}
	for i := range jobs {
		job := jobs[i]
		r.catchUpMisfire(&job)
		if err := r.install(&job); err != nil {
			r.log.Error("reinstall persisted job failed",
				zap.String("jobID", job.ID), zap.Int64("userID", job.UserID), zap.Error(err))
		}
	}

	r.cron.Start()
	r.log.Info("scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop halts the cron runtime and waits for in-flight fires to finish.
func (r *Register) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("scheduler stopped")
}

// Resync recomputes and atomically installs the single active schedule for a
// user. Idempotent; called on startup and after every frequency or timezone
// change. On failure the user ends with no active job: callers should surface
// "schedule is now disabled".
func (r *Register) Resync(ctx context.Context, userID int64) error {
	existing, err := r.repo.JobsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("enumerate jobs for user %d: %w", userID, err)
	}
	if len(existing) > 1 {
		// Stale duplicates from prior inconsistent state; all are replaced below.
		r.log.Warn("duplicate job state, cleaning up",
			zap.Int64("userID", userID), zap.Int("count", len(existing)))
	}

	// Runtime entries go first so a stale trigger cannot fire mid-resync.
	r.removeEntries(userID)

	freqStr, haveFreq, err := r.repo.GetSetting(ctx, userID, store.SettingFrequency)
	if err != nil {
		return r.disable(ctx, userID, fmt.Errorf("read frequency: %w", err))
	}
	tz, haveTZ, err := r.repo.GetSetting(ctx, userID, store.SettingTimezone)
	if err != nil {
		return r.disable(ctx, userID, fmt.Errorf("read timezone: %w", err))
	}
	if !haveFreq || !haveTZ {
		return r.disable(ctx, userID,
			fmt.Errorf("%w: frequency=%v timezone=%v", ErrMissingScheduleConfig, haveFreq, haveTZ))
	}

	freq, err := domain.ParseFrequency(freqStr)
	if err != nil {
		return r.disable(ctx, userID, err)
	}
	spec, err := domain.Plan(freq, tz)
	if err != nil {
		return r.disable(ctx, userID, err)
	}

	sched, err := r.parser.Parse(spec.CronSpec())
	if err != nil {
		return r.disable(ctx, userID, fmt.Errorf("parse trigger %q: %w", spec.CronSpec(), err))
	}

	next := sched.Next(r.now())
	job := &domain.Job{
		ID:              domain.JobID(userID),
		UserID:          userID,
		Minute:          spec.Minute,
		Hour:            spec.Hour,
		TZ:              spec.Location.String(),
		CredentialRef:   r.credRef,
		MisfireGraceSec: domain.MisfireGraceSec,
		NextFireAt:      &next,
	}

	// Durable flip: remove-then-insert in one transaction.
	if err := r.repo.ReplaceJob(ctx, job); err != nil {
		return r.disable(ctx, userID, fmt.Errorf("persist job: %w", err))
	}
	r.addEntry(job, sched)

	r.log.Info("schedule resynced",
		zap.Int64("userID", userID),
		zap.String("jobID", job.ID),
		zap.String("trigger", spec.CronSpec()),
		zap.Time("next", next))
	return nil
}

// disable removes any job rows for the user, logs the failure, and propagates
// it. The prior job is intentionally not restored.
func (r *Register) disable(ctx context.Context, userID int64, cause error) error {
	if _, derr := r.repo.DeleteJobsForUser(ctx, userID); derr != nil {
		r.log.Error("remove jobs after failed resync",
			zap.Int64("userID", userID), zap.Error(derr))
	}
	r.log.Warn("resync failed, schedule disabled",
		zap.Int64("userID", userID), zap.Error(cause))
	return cause
}

// install parses a persisted job's trigger and adds it to the cron runtime.
func (r *Register) install(job *domain.Job) error {
	trigger, err := job.Trigger()
	if err != nil {
		return err
	}
	sched, err := r.parser.Parse(trigger.CronSpec())
	if err != nil {
		return fmt.Errorf("parse trigger %q: %w", trigger.CronSpec(), err)
	}
	r.addEntry(job, sched)
	// Refresh the stored fire time so a crash before the next fire cannot
	// replay an already caught-up misfire.
	if err := r.repo.SetJobNextFire(r.ctx, job.ID, sched.Next(r.now())); err != nil {
		r.log.Warn("update next fire time failed", zap.String("jobID", job.ID), zap.Error(err))
	}
	return nil
}

func (r *Register) addEntry(job *domain.Job, sched cron.Schedule) {
	j := *job
	id := r.cron.Schedule(sched, cron.FuncJob(func() {
		r.dispatch(r.ctx, &j, sched)
	}))

	r.mu.Lock()
	r.entries[job.UserID] = append(r.entries[job.UserID], id)
	r.mu.Unlock()
}

func (r *Register) removeEntries(userID int64) {
	r.mu.Lock()
	ids := r.entries[userID]
	delete(r.entries, userID)
	r.mu.Unlock()

	for _, id := range ids {
		r.cron.Remove(id)
	}
}

// entryCount reports active runtime entries for a user.
func (r *Register) entryCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[userID])
}

// catchUpMisfire executes at most one late fire for a job whose stored next
// fire time was missed while the process was down, provided the miss is within
// the grace period. Older misses are dropped so downtime never backlogs pings.
func (r *Register) catchUpMisfire(job *domain.Job) {
	if job.NextFireAt == nil {
		return
	}
	now := r.now()
	missed := *job.NextFireAt
	if missed.After(now) {
		return
	}
	grace := time.Duration(job.MisfireGraceSec) * time.Second
	if now.Sub(missed) > grace {
		r.log.Info("dropping missed fire beyond grace period",
			zap.String("jobID", job.ID), zap.Time("missed", missed))
		return
	}
	r.log.Info("executing missed fire within grace period",
		zap.String("jobID", job.ID), zap.Time("missed", missed))
	r.dispatch(r.ctx, job, nil)
}
