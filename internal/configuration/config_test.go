package configuration

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	cfg, path, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Empty(t, path)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, 5, cfg.Agent.MaxDepth)
	require.Equal(t, ":memory:", cfg.Documents.DSN)
	require.Equal(t, 2*time.Minute, cfg.Agent.ModelTimeout())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "Anthropic"
anthropic_api_key = "from-file"

[agent]
max_depth = 8
dedup = "turn"
streaming = true

[asana]
project_id = "p1"
`)
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("ASANA_ACCESS_TOKEN", "tok")

	cfg, loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded)
	require.Equal(t, "anthropic", cfg.LLM.Provider)
	require.Equal(t, "from-env", cfg.LLM.AnthropicKey)
	require.Equal(t, 8, cfg.Agent.MaxDepth)
	require.Equal(t, "turn", cfg.Agent.Dedup)
	require.True(t, cfg.Agent.Streaming)
	require.Equal(t, "p1", cfg.Asana.ProjectID)
	require.Equal(t, "tok", cfg.Asana.AccessToken)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, "[llm]\nprovider = \"mystery\"\n")
	_, _, err := Load(path)
	require.ErrorContains(t, err, "unknown llm.provider")
}

func TestLoadRejectsBadDedup(t *testing.T) {
	path := writeConfig(t, "[agent]\ndedup = \"sometimes\"\n")
	_, _, err := Load(path)
	require.ErrorContains(t, err, "agent.dedup")
}

func TestRouterProvidersValidatedWhenEnabled(t *testing.T) {
	path := writeConfig(t, "[router]\nenabled = true\ncheap = \"nope\"\n")
	_, _, err := Load(path)
	require.ErrorContains(t, err, "router provider")
}

func TestLoadConfigReportsMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cfg, err := LoadConfig(&out)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Contains(t, out.String(), "No config file found")
}
