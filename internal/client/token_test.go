package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/markis/gh-slides/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAPIKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GH_SLIDES_TEST_KEY", "")

	provider := config.Provider{BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "GH_SLIDES_TEST_KEY"}

	_, err := ResolveAPIKey(provider)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	dir := filepath.Join(home, "gh-slides")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, credentialsFile),
		[]byte(`{"openrouter.ai":{"api_key":"from-file"},"other.example":{"api_key":"wrong"}}`), 0o600))

	key, err := ResolveAPIKey(provider)
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)

	t.Setenv("GH_SLIDES_TEST_KEY", "from-env")
	key, err = ResolveAPIKey(provider)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	provider.APIKey = "explicit"
	key, err = ResolveAPIKey(provider)
	require.NoError(t, err)
	assert.Equal(t, "explicit", key)
}

func TestExtractAPIKey(t *testing.T) {
	credentials := map[string]any{
		"api.example.com": map[string]any{"api_key": "k1"},
		"broken":          "not a map",
	}
	assert.Equal(t, "k1", extractAPIKey(credentials, "https://api.example.com/v1"))
	assert.Empty(t, extractAPIKey(credentials, "https://elsewhere.test"))
	assert.Empty(t, extractAPIKey(credentials, "::bad url"))
}
