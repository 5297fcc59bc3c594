package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIKeyEnv is the environment variable holding the OpenAI key.
const APIKeyEnv = "OPENAI_API_KEY"

// MinAPIKeyLength is the shortest key accepted by SaveAPIKey.
const MinAPIKeyLength = 20

var ErrInvalidAPIKey = errors.New("invalid API key: must be at least 20 characters")

// CredentialSource is one place an API key may come from.
type CredentialSource struct {
	Name   string
	Lookup func() string
}

// ResolveAPIKey returns the first non-blank key and the name of the source
// that provided it. Both are empty when no source has a key.
func ResolveAPIKey(sources ...CredentialSource) (key, source string) {
	for _, src := range sources {
		if src.Lookup == nil {
			continue
		}
		if k := strings.TrimSpace(src.Lookup()); k != "" {
			return k, src.Name
		}
	}
	return "", ""
}

// DefaultCredentialSources lists the key sources in precedence order:
// explicit override, environment, dotfiles (./.env then the per-user file),
// persisted setting, bundled default.
func DefaultCredentialSources(cfg Config, settings *Settings) []CredentialSource {
	sources := []CredentialSource{
		{Name: "override", Lookup: func() string { return cfg.APIKey }},
		{Name: "environment", Lookup: func() string { return os.Getenv(APIKeyEnv) }},
		{Name: ".env", Lookup: func() string { return ReadDotenvKey(".env", APIKeyEnv) }},
		{Name: "user config", Lookup: func() string { return ReadDotenvKey(UserCredentialsPath(), APIKeyEnv) }},
	}
	if settings != nil {
		sources = append(sources, CredentialSource{Name: "settings", Lookup: settings.APIKey})
	}
	return append(sources, CredentialSource{Name: "bundled", Lookup: BundledAPIKey})
}

// ReadDotenvKey reads key from a KEY=VALUE file. Missing or unreadable files
// yield "".
func ReadDotenvKey(path, key string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return strings.TrimSpace(v.GetString(key))
}

// ValidateAPIKey checks the minimum shape of a key.
func ValidateAPIKey(key string) error {
	if len(strings.TrimSpace(key)) < MinAPIKeyLength {
		return ErrInvalidAPIKey
	}
	return nil
}

// SaveAPIKey writes key to the per-user credentials file.
func SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if err := ValidateAPIKey(key); err != nil {
		return err
	}
	path := UserCredentialsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	content := fmt.Sprintf("%s=%s\n", APIKeyEnv, key)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
