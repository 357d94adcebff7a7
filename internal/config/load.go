package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dgellow/tglogin-front/internal/log"
	"github.com/dgellow/tglogin-front/internal/urlutil"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != ConfigVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	config.ApplyDefaults()

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig rejects secrets written inline in the file.
func validateRawConfig(rawConfig map[string]any) error {
	secretFields := []struct {
		section string
		name    string
	}{
		{"telegram", "botToken"},
		{"session", "secret"},
	}

	for _, field := range secretFields {
		section, ok := rawConfig[field.section].(map[string]any)
		if !ok {
			continue
		}
		value, exists := section[field.name]
		if !exists {
			continue
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s.%s must use environment variable reference for security", field.section, field.name)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", field.section, field.name)
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	redirect := config.Server.RedirectPath
	if !urlutil.IsLocalPath(redirect) {
		return fmt.Errorf("server.redirectPath must be a relative path starting with a single '/' (got %q)", redirect)
	}

	if err := validateTelegramConfig(&config.Telegram); err != nil {
		return fmt.Errorf("telegram config: %w", err)
	}
	if err := validateSessionConfig(&config.Session); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := validateStorageConfig(&config.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	return nil
}

func validateTelegramConfig(tg *TelegramConfig) error {
	if tg.BotToken == "" {
		log.LogWarn("Bot token is not set - every login attempt will fail with a server error")
	}
	if tg.MaxAuthAge < time.Second {
		return fmt.Errorf("maxAuthAge must be at least 1s (got %s)", tg.MaxAuthAge)
	}
	if tg.MaxFutureSkew < 0 {
		return fmt.Errorf("maxFutureSkew cannot be negative")
	}
	switch tg.WebAppKeyDerivation {
	case "sha256", "webappdata":
	default:
		return fmt.Errorf("unknown webAppKeyDerivation '%s' - use 'sha256' or 'webappdata'", tg.WebAppKeyDerivation)
	}
	return nil
}

func validateSessionConfig(s *SessionConfig) error {
	switch s.Format {
	case "plain":
		if s.Secret != "" {
			log.LogWarn("Session secret is set but session format is 'plain' - tokens are not signed")
		}
	case "hmac", "jwt":
		if len(s.Secret) < MinSessionSecretLength {
			return fmt.Errorf("secret must be at least %d characters for format '%s' (got %d). Generate with: openssl rand -base64 32",
				MinSessionSecretLength, s.Format, len(s.Secret))
		}
	default:
		return fmt.Errorf("unknown format '%s' - supported formats: plain, hmac, jwt", s.Format)
	}
	if s.MaxAge < time.Second {
		return fmt.Errorf("maxAge must be at least 1s (got %s)", s.MaxAge)
	}
	return nil
}

func validateStorageConfig(s *StorageConfig) error {
	switch s.Kind {
	case "memory":
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("sqlitePath is required when using sqlite storage")
		}
	case "firestore":
		if s.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage kind '%s' - supported kinds: memory, sqlite, firestore", s.Kind)
	}
	return nil
}
