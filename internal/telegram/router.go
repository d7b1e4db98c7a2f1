package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/reply"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/scheduler"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
)

// Router wires Telegram updates to handlers. Every command and message is
// restricted to the configured owner.
type Router struct {
	bot       *tgbotapi.BotAPI
	log       *zap.Logger
	repo      store.Repo
	composer  *reply.Composer
	register  *scheduler.Register
	ownerID   int64
	defaultTZ string
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, composer *reply.Composer, register *scheduler.Register, ownerID int64, defaultTZ string) *Router {
	return &Router{
		bot:       bot,
		log:       log,
		repo:      repo,
		composer:  composer,
		register:  register,
		ownerID:   ownerID,
		defaultTZ: defaultTZ,
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	userID := msg.From.ID
	if userID != r.ownerID {
		r.log.Warn("unauthorized access denied", zap.Int64("userID", userID))
		r.sendText(userID, privateUseText)
		return
	}

	text := strings.TrimSpace(msg.Text)
	cmd, args := splitCommand(text)

	switch cmd {
	case "/start":
		r.handleStart(ctx, userID)
	case "/personas":
		r.handlePersonas(userID)
	case "/set_persona":
		r.handleSetPersona(ctx, userID, args)
	case "/set_frequency":
		r.handleSetFrequency(ctx, userID, args)
	case "/set_timezone":
		r.handleSetTimezone(ctx, userID, args)
	case "/status":
		r.handleStatus(ctx, userID)
	case "/memory_clear":
		r.handleClearMemory(ctx, userID)
	case "/export_memory":
		r.handleExportMemory(ctx, userID)
	default:
		if cmd != "" {
			r.sendText(userID, "Unknown command. See /start for the list.")
			return
		}
		if text != "" {
			r.handleMessage(ctx, userID, text)
		}
	}
}

// splitCommand separates a leading /command from its arguments. Non-command
// text comes back with an empty command.
func splitCommand(text string) (string, []string) {
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	cmd := fields[0]
	// Strip a @botname suffix, as in "/status@my_bot".
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:]
}

// sendText sends a plain text message to the given chat.
func (r *Router) sendText(userID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		r.log.Error("send failed", zap.Int64("userID", userID), zap.Error(err))
	}
}

// sendDocument delivers file bytes as a Telegram document.
func (r *Router) sendDocument(userID int64, data []byte, filename, caption string) {
	doc := tgbotapi.NewDocument(userID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := r.bot.Send(doc); err != nil {
		r.log.Error("send document failed", zap.Int64("userID", userID), zap.Error(err))
	}
}
