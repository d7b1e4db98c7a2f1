// Package reply turns persona + conversation history into outgoing text, for
// both inbound replies and scheduled check-in pings. Composition never fails:
// any engine problem resolves to a fixed per-persona template.
package reply

import (
	"context"

	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
)

// replyWindow bounds how much history conditions an inbound reply; pings use
// the full retained history.
const replyWindow = 20

const pingInstruction = "Write a short, natural check-in message to the user, staying fully " +
	"in character. Do not announce that this is a scheduled or automated check-in; just reach out."

const engineUnavailableNotice = "LLM is not available. Please try again later or contact the administrator."

// Store is the subset of the repository the composer reads.
type Store interface {
	GetSetting(ctx context.Context, userID int64, key store.SettingKey) (string, bool, error)
	LastTurns(ctx context.Context, userID int64, n int) ([]domain.Turn, error)
}

// Responder produces engine-generated text. A nil Responder means the engine
// is not configured and templates are used directly.
type Responder interface {
	Complete(ctx context.Context, system string, history []domain.Turn, prompt string) (string, error)
}

// Composer builds outgoing message text for a user.
type Composer struct {
	store  Store
	engine Responder
	log    *zap.Logger
}

// NewComposer creates a composer. engine may be nil.
func NewComposer(st Store, engine Responder, log *zap.Logger) *Composer {
	return &Composer{store: st, engine: engine, log: log}
}

// persona resolves the user's configured persona, defaulting when unset or
// unknown.
func (c *Composer) persona(ctx context.Context, userID int64) domain.Persona {
	id, ok, err := c.store.GetSetting(ctx, userID, store.SettingPersona)
	if err != nil {
		c.log.Warn("read persona setting failed", zap.Int64("userID", userID), zap.Error(err))
	}
	if !ok {
		id = domain.DefaultPersona
	}
	return domain.LookupPersona(id)
}

// Ping composes the text for a scheduled check-in. It always returns usable
// text: on any engine failure the persona's fixed ping template is used.
func (c *Composer) Ping(ctx context.Context, userID int64) string {
	p := c.persona(ctx, userID)
	if c.engine == nil {
		return p.PingTemplate
	}

	history, err := c.store.LastTurns(ctx, userID, domain.HistoryCap)
	if err != nil {
		c.log.Warn("read history failed, composing ping without it",
			zap.Int64("userID", userID), zap.Error(err))
		history = nil
	}

	text, err := c.engine.Complete(ctx, p.Instruction, history, pingInstruction)
	if err != nil {
		c.log.Warn("engine ping failed, using template",
			zap.Int64("userID", userID), zap.String("persona", p.ID), zap.Error(err))
		return p.PingTemplate
	}
	return text
}

// Reply composes the response to an inbound user message. Like Ping it never
// fails; without a working engine it returns a fixed notice.
func (c *Composer) Reply(ctx context.Context, userID int64, message string) string {
	if c.engine == nil {
		return engineUnavailableNotice
	}
	p := c.persona(ctx, userID)

	history, err := c.store.LastTurns(ctx, userID, replyWindow)
	if err != nil {
		c.log.Warn("read history failed, replying without it",
			zap.Int64("userID", userID), zap.Error(err))
		history = nil
	}

	text, err := c.engine.Complete(ctx, p.Instruction, history, message)
	if err != nil {
		c.log.Warn("engine reply failed",
			zap.Int64("userID", userID), zap.String("persona", p.ID), zap.Error(err))
		return engineUnavailableNotice
	}
	return text
}
