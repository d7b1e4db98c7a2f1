package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	OwnerID   int64  `envconfig:"OWNER_ID" required:"true"` // the single authorized user
	DBPath    string `envconfig:"DB_PATH" default:"./data/persona.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"UTC"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"` // healthz

	// Response engine (OpenAI-compatible). Empty API key disables the engine
	// and the bot falls back to persona templates.
	LLMAPIKey  string        `envconfig:"LLM_API_KEY"`
	LLMBaseURL string        `envconfig:"LLM_BASE_URL" default:"https://api.groq.com/openai/v1"`
	LLMModel   string        `envconfig:"LLM_MODEL" default:"openai/gpt-oss-120b"`
	LLMTimeout time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
