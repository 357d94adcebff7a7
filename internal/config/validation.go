package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/tglogin-front/internal/urlutil"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", ConfigVersion)
	} else if version != ConfigVersion {
		result.addError("version", "unsupported version '%s' - use '%s'", version, ConfigVersion)
	}

	validateServerStructure(rawConfig, result)
	validateTelegramStructure(rawConfig, result)
	validateSessionStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)

	return result, nil
}

func section(rawConfig map[string]any, name string, result *ValidationResult) (map[string]any, bool) {
	value, exists := rawConfig[name]
	if !exists {
		return nil, false
	}
	m, ok := value.(map[string]any)
	if !ok {
		result.addError(name, "%s must be an object", name)
		return nil, false
	}
	return m, true
}

func validateServerStructure(rawConfig map[string]any, result *ValidationResult) {
	server, ok := section(rawConfig, "server", result)
	if !ok {
		return
	}
	if _, ok := server["baseURL"]; !ok {
		result.addWarning("server.baseURL", "baseURL is not set - GET /api/config will return a relative authUrl")
	}
	if redirect, ok := server["redirectPath"].(string); ok {
		if !urlutil.IsLocalPath(redirect) {
			result.addError("server.redirectPath", "redirectPath must be a relative path like \"/app\", got '%s'", redirect)
		}
	}
}

func validateTelegramStructure(rawConfig map[string]any, result *ValidationResult) {
	tg, ok := section(rawConfig, "telegram", result)
	if !ok {
		result.addError("telegram", "telegram field is required and must contain botToken")
		return
	}

	if token, ok := tg["botToken"]; !ok {
		result.addError("telegram.botToken", "botToken is required. Example: {\"$env\": \"BOT_TOKEN\"}")
	} else if verr := validateEnvVarReference(token, "botToken", "telegram.botToken"); verr != nil {
		result.Errors = append(result.Errors, *verr)
	}

	if _, ok := tg["botUsername"]; !ok {
		result.addWarning("telegram.botUsername", "botUsername is not set - the login page cannot render the widget")
	}

	validateDurationField(tg, "maxAuthAge", "telegram.maxAuthAge", result)
	validateDurationField(tg, "maxFutureSkew", "telegram.maxFutureSkew", result)

	if kd, ok := tg["webAppKeyDerivation"].(string); ok && kd != "sha256" && kd != "webappdata" {
		result.addError("telegram.webAppKeyDerivation", "unknown webAppKeyDerivation '%s' - use 'sha256' or 'webappdata'", kd)
	}
}

func validateSessionStructure(rawConfig map[string]any, result *ValidationResult) {
	s, ok := section(rawConfig, "session", result)
	if !ok {
		return
	}

	format, _ := s["format"].(string)
	switch format {
	case "", "plain":
		result.addWarning("session.format", "session format 'plain' issues unsigned cookies that any client can forge. Use 'hmac' or 'jwt'")
	case "hmac", "jwt":
		if secret, ok := s["secret"]; !ok {
			result.addError("session.secret", "secret is required for format '%s'. Hint: Must be at least %d characters", format, MinSessionSecretLength)
		} else if verr := validateEnvVarReference(secret, "secret", "session.secret"); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	default:
		result.addError("session.format", "unknown format '%s' - supported formats: plain, hmac, jwt", format)
	}

	validateDurationField(s, "maxAge", "session.maxAge", result)
}

func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	s, ok := section(rawConfig, "storage", result)
	if !ok {
		return
	}

	kind, _ := s["kind"].(string)
	switch kind {
	case "", "memory":
	case "sqlite":
		if _, ok := s["sqlitePath"]; !ok {
			result.addError("storage.sqlitePath", "sqlitePath is required for sqlite storage. Example: \"/var/lib/tglogin/users.db\"")
		}
	case "firestore":
		if _, ok := s["gcpProject"]; !ok {
			result.addError("storage.gcpProject", "gcpProject is required for firestore storage")
		}
	default:
		result.addError("storage.kind", "unknown storage kind '%s' - supported kinds: memory, sqlite, firestore", kind)
	}
}

func validateDurationField(m map[string]any, key, path string, result *ValidationResult) {
	value, ok := m[key]
	if !ok {
		return
	}
	str, ok := value.(string)
	if !ok {
		result.addError(path, "%s must be a duration string like \"24h\", not %T", key, value)
		return
	}
	if _, err := time.ParseDuration(str); err != nil {
		result.addError(path, "invalid duration '%s': %v", str, err)
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindString(v); matches != "" {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, strings.Trim(matches, "${}")),
			}
		}
		// Plain text secrets are never echoed back
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
