package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// ConfigVersion is the only accepted config file version.
const ConfigVersion = "v1"

const (
	DefaultAddr                = ":8080"
	DefaultName                = "tglogin-front"
	DefaultRedirectPath        = "/app"
	DefaultMaxAuthAge          = 24 * time.Hour
	DefaultSessionMaxAge       = 7 * 24 * time.Hour
	DefaultSessionFormat       = "plain"
	DefaultStorage             = "memory"
	DefaultFirestoreCollection = "tglogin_users"
	DefaultKeyDerivation       = "sha256"
	MinSessionSecretLength     = 32
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	BaseURL        string   `json:"baseURL"`
	Addr           string   `json:"addr"`
	Name           string   `json:"name"`
	AllowedOrigins []string `json:"allowedOrigins"` // For CORS on the Mini App endpoint
	RedirectPath   string   `json:"redirectPath"`   // Where the widget flow lands after login
}

// TelegramConfig holds the bot credentials and verification policy.
type TelegramConfig struct {
	BotToken            Secret        `json:"botToken"`
	BotUsername         string        `json:"botUsername"`
	MaxAuthAge          time.Duration `json:"maxAuthAge"`
	MaxFutureSkew       time.Duration `json:"maxFutureSkew"`       // 0 accepts any future auth_date
	WebAppKeyDerivation string        `json:"webAppKeyDerivation"` // "sha256" or "webappdata"
}

// SessionConfig controls session tokens and cookies.
type SessionConfig struct {
	Format string        `json:"format"` // "plain", "hmac" or "jwt"
	Secret Secret        `json:"secret"`
	MaxAge time.Duration `json:"maxAge"`
}

// StorageConfig selects the profile store.
type StorageConfig struct {
	Kind                string `json:"kind"` // "memory", "sqlite" or "firestore"
	SQLitePath          string `json:"sqlitePath,omitempty"`
	GCPProject          string `json:"gcpProject,omitempty"`
	FirestoreDatabase   string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Server   ServerConfig   `json:"server"`
	Telegram TelegramConfig `json:"telegram"`
	Session  SessionConfig  `json:"session"`
	Storage  StorageConfig  `json:"storage"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Name == "" {
		c.Server.Name = DefaultName
	}
	if c.Server.RedirectPath == "" {
		c.Server.RedirectPath = DefaultRedirectPath
	}
	if c.Telegram.MaxAuthAge == 0 {
		c.Telegram.MaxAuthAge = DefaultMaxAuthAge
	}
	if c.Telegram.WebAppKeyDerivation == "" {
		c.Telegram.WebAppKeyDerivation = DefaultKeyDerivation
	}
	if c.Session.Format == "" {
		c.Session.Format = DefaultSessionFormat
	}
	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = DefaultSessionMaxAge
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = DefaultStorage
	}
	if c.Storage.Kind == "firestore" && c.Storage.FirestoreCollection == "" {
		c.Storage.FirestoreCollection = DefaultFirestoreCollection
	}
}

// RawConfigValue represents a value that could be a string or env ref
// This is only used during parsing, not in the final config
type RawConfigValue struct {
	value string
	isEnv bool
}

// ParseConfigValue parses a JSON value that is either a plain string or a
// {"$env": "VAR"} reference. Unset variables are an error.
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	return parseConfigValue(raw, false)
}

// ParseOptionalConfigValue is ParseConfigValue but resolves unset variables
// to "".
func ParseOptionalConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	return parseConfigValue(raw, true)
}

func parseConfigValue(raw json.RawMessage, optional bool) (*RawConfigValue, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &RawConfigValue{}, nil
	}

	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" && !optional {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value, isEnv: true}, nil
}
