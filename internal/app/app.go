package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/config"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/engine"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/reply"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/scheduler"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/store"
	"github.com/Pranay-a-1/telegram-persona-bot/internal/telegram"
)

// botTokenRef is the credential reference persisted into job payloads. The
// dispatcher resolves it back to the token through resolveCredential.
const botTokenRef = "env:BOT_TOKEN"

// App is the process-scoped context object: it owns the transport client, the
// repository, the scheduler and the HTTP health endpoint, and tears them down
// on shutdown.
type App struct {
	cfg      config.Config
	log      *zap.Logger
	bot      *tgbotapi.BotAPI
	httpSrv  *http.Server
	repo     store.Repo
	register *scheduler.Register
	router   *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

// resolveCredential maps a persisted credential reference to a bot token.
// Only the "env:" scheme exists.
func resolveCredential(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, "env:")
	if !ok {
		return "", fmt.Errorf("unknown credential reference %q", ref)
	}
	token := os.Getenv(name)
	if token == "" {
		return "", fmt.Errorf("credential %q not set", name)
	}
	return token, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting persona bot",
		zap.Int64("owner", a.cfg.OwnerID),
		zap.String("http", a.cfg.HTTPAddr),
		zap.Bool("engine", a.cfg.LLMAPIKey != ""),
	)

	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	var responder reply.Responder
	if e := engine.New(engine.Config{
		APIKey:  a.cfg.LLMAPIKey,
		BaseURL: a.cfg.LLMBaseURL,
		Model:   a.cfg.LLMModel,
		Timeout: a.cfg.LLMTimeout,
	}); e != nil {
		responder = e
	}
	composer := reply.NewComposer(repo, responder, a.log)

	factory := func(ref string) (scheduler.Transport, error) {
		token, err := resolveCredential(ref)
		if err != nil {
			return nil, err
		}
		return telegram.NewTransport(token)
	}
	a.register = scheduler.New(repo, composer, factory, botTokenRef, a.log)
	a.router = telegram.NewRouter(a.bot, a.log, repo, composer, a.register, a.cfg.OwnerID, a.cfg.DefaultTZ)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.register.Start(ctx); err != nil {
		a.log.Error("scheduler start failed", zap.Error(err))
		_ = a.repo.Close()
		return err
	}
	// A fresh deployment has no settings yet; that disables the schedule until
	// the owner runs /start, which is the intended state.
	if err := a.register.Resync(ctx, a.cfg.OwnerID); err != nil {
		a.log.Warn("initial resync failed", zap.Int64("owner", a.cfg.OwnerID), zap.Error(err))
	}

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			a.register.Stop()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
