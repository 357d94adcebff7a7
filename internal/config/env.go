package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig is the flat environment surface used when no config file is
// given.
type envConfig struct {
	BotToken            Secret        `env:"BOT_TOKEN"`
	BotUsername         string        `env:"BOT_USERNAME"`
	Addr                string        `env:"TGLOGIN_ADDR"                envDefault:":8080"`
	BaseURL             string        `env:"TGLOGIN_BASE_URL"`
	RedirectPath        string        `env:"TGLOGIN_REDIRECT_PATH"       envDefault:"/app"`
	AllowedOrigins      []string      `env:"TGLOGIN_ALLOWED_ORIGINS"     envSeparator:","`
	MaxAuthAge          time.Duration `env:"TGLOGIN_MAX_AUTH_AGE"        envDefault:"24h"`
	MaxFutureSkew       time.Duration `env:"TGLOGIN_MAX_FUTURE_SKEW"`
	WebAppKeyDerivation string        `env:"TGLOGIN_WEBAPP_KEY"          envDefault:"sha256"`
	SessionFormat       string        `env:"TGLOGIN_SESSION_FORMAT"      envDefault:"plain"`
	SessionSecret       Secret        `env:"TGLOGIN_SESSION_SECRET"`
	SessionMaxAge       time.Duration `env:"TGLOGIN_SESSION_MAX_AGE"     envDefault:"168h"`
	Storage             string        `env:"TGLOGIN_STORAGE"             envDefault:"memory"`
	SQLitePath          string        `env:"TGLOGIN_SQLITE_PATH"`
	GCPProject          string        `env:"TGLOGIN_GCP_PROJECT"`
	FirestoreDatabase   string        `env:"TGLOGIN_FIRESTORE_DATABASE"`
	FirestoreCollection string        `env:"TGLOGIN_FIRESTORE_COLLECTION"`
}

// LoadFromEnv builds a Config from environment variables alone.
func LoadFromEnv() (Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	config := Config{
		Server: ServerConfig{
			BaseURL:        ec.BaseURL,
			Addr:           ec.Addr,
			AllowedOrigins: ec.AllowedOrigins,
			RedirectPath:   ec.RedirectPath,
		},
		Telegram: TelegramConfig{
			BotToken:            ec.BotToken,
			BotUsername:         ec.BotUsername,
			MaxAuthAge:          ec.MaxAuthAge,
			MaxFutureSkew:       ec.MaxFutureSkew,
			WebAppKeyDerivation: ec.WebAppKeyDerivation,
		},
		Session: SessionConfig{
			Format: ec.SessionFormat,
			Secret: ec.SessionSecret,
			MaxAge: ec.SessionMaxAge,
		},
		Storage: StorageConfig{
			Kind:                ec.Storage,
			SQLitePath:          ec.SQLitePath,
			GCPProject:          ec.GCPProject,
			FirestoreDatabase:   ec.FirestoreDatabase,
			FirestoreCollection: ec.FirestoreCollection,
		},
	}
	config.ApplyDefaults()

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}
