package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/markis/gh-slides/internal/config"
)

const credentialsFile = "credentials.json"

// ErrNoAPIKey is returned when no API key can be found for the provider.
var ErrNoAPIKey = errors.New("API key not found in config, environment or credentials file")

// readJSONFile reads a JSON file and unmarshals it into the provided variable.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

// ResolveAPIKey retrieves the provider API key from the config, the
// environment variable the config names, or the credentials file.
func ResolveAPIKey(cfg config.Provider) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	// Check environment variables first - fast path
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			return key, nil
		}
	}

	configDir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}

	var credentials map[string]any
	if err := readJSONFile(filepath.Join(configDir, credentialsFile), &credentials); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}

	if key := extractAPIKey(credentials, cfg.BaseURL); key != "" {
		return key, nil
	}

	return "", ErrNoAPIKey
}

// extractAPIKey finds the key stored for the host of baseURL.
func extractAPIKey(credentials map[string]any, baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ""
	}

	for host, data := range credentials {
		if !strings.Contains(u.Host, host) {
			continue
		}

		keyData, ok := data.(map[string]any)
		if !ok {
			continue
		}

		if key, ok := keyData["api_key"].(string); ok && key != "" {
			return key
		}
	}
	return ""
}
