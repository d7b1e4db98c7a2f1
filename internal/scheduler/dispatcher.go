package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
)

// dispatch is the payload of a fired job: re-acquire the transport from the
// persisted credential reference, compose the ping, deliver it, and record a
// bot turn. Every failure is logged and swallowed so the recurring-fire loop
// stays alive and other users' jobs are unaffected.
func (r *Register) dispatch(ctx context.Context, job *domain.Job, sched cron.Schedule) {
	transport, err := r.transport(job.CredentialRef)
	if err != nil {
		r.log.Error("acquire transport failed",
			zap.String("jobID", job.ID), zap.Int64("userID", job.UserID), zap.Error(err))
		return
	}

	text := r.composer.Ping(ctx, job.UserID)

	if err := transport.SendText(job.UserID, text); err != nil {
		// Dropped, not retried: the next trigger fire will reach out again.
		r.log.Error("ping delivery failed",
			zap.String("jobID", job.ID), zap.Int64("userID", job.UserID), zap.Error(err))
		return
	}

	if err := r.repo.AppendTurn(ctx, job.UserID, domain.RoleBot, text); err != nil {
		r.log.Error("record ping in history failed",
			zap.String("jobID", job.ID), zap.Int64("userID", job.UserID), zap.Error(err))
	}

	if sched != nil {
		if err := r.repo.SetJobNextFire(ctx, job.ID, sched.Next(r.now())); err != nil {
			r.log.Warn("update next fire time failed",
				zap.String("jobID", job.ID), zap.Error(err))
		}
	}

	r.log.Info("ping dispatched", zap.String("jobID", job.ID), zap.Int64("userID", job.UserID))
}
