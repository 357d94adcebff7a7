package config

import (
	"encoding/json"
	"fmt"
	"time"
)

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// UnmarshalJSON resolves the bot token reference and duration strings.
// An unset bot token variable is not an error here: the server starts and
// every verification attempt fails with a configuration error.
func (t *TelegramConfig) UnmarshalJSON(data []byte) error {
	type rawTelegram struct {
		BotToken            json.RawMessage `json:"botToken"`
		BotUsername         json.RawMessage `json:"botUsername"`
		MaxAuthAge          string          `json:"maxAuthAge"`
		MaxFutureSkew       string          `json:"maxFutureSkew"`
		WebAppKeyDerivation string          `json:"webAppKeyDerivation"`
	}

	var raw rawTelegram
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	token, err := ParseOptionalConfigValue(raw.BotToken)
	if err != nil {
		return fmt.Errorf("parsing botToken: %w", err)
	}
	t.BotToken = Secret(token.value)

	username, err := ParseOptionalConfigValue(raw.BotUsername)
	if err != nil {
		return fmt.Errorf("parsing botUsername: %w", err)
	}
	t.BotUsername = username.value

	if t.MaxAuthAge, err = parseDuration("maxAuthAge", raw.MaxAuthAge); err != nil {
		return err
	}
	if t.MaxFutureSkew, err = parseDuration("maxFutureSkew", raw.MaxFutureSkew); err != nil {
		return err
	}
	t.WebAppKeyDerivation = raw.WebAppKeyDerivation
	return nil
}

// UnmarshalJSON resolves the session secret reference and maxAge.
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		Format string          `json:"format"`
		Secret json.RawMessage `json:"secret"`
		MaxAge string          `json:"maxAge"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	secret, err := ParseConfigValue(raw.Secret)
	if err != nil {
		return fmt.Errorf("parsing session secret: %w", err)
	}
	s.Secret = Secret(secret.value)
	s.Format = raw.Format

	s.MaxAge, err = parseDuration("session maxAge", raw.MaxAge)
	return err
}

// UnmarshalJSON resolves references in the storage block.
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                string          `json:"kind"`
		SQLitePath          json.RawMessage `json:"sqlitePath"`
		GCPProject          json.RawMessage `json:"gcpProject"`
		FirestoreDatabase   string          `json:"firestoreDatabase"`
		FirestoreCollection string          `json:"firestoreCollection"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	path, err := ParseConfigValue(raw.SQLitePath)
	if err != nil {
		return fmt.Errorf("parsing sqlitePath: %w", err)
	}
	project, err := ParseConfigValue(raw.GCPProject)
	if err != nil {
		return fmt.Errorf("parsing gcpProject: %w", err)
	}

	s.Kind = raw.Kind
	s.SQLitePath = path.value
	s.GCPProject = project.value
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection
	return nil
}
