package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "in-memory", cfg.Indexing.Driver)
	require.True(t, cfg.Indexing.ClearOnStartupEnabled())
	require.Equal(t, 1, cfg.Indexing.Concurrency)
	require.Equal(t, 500, cfg.Indexing.Markdown.WindowSizeTokens)
	require.Equal(t, 64, cfg.Indexing.Markdown.OverlapTokens)
	require.True(t, cfg.Indexing.Markdown.AdaptiveEnabled())
	require.False(t, cfg.Indexing.Chunking.EnabledFor("openapi"))
	require.Equal(t, "logs/graph", cfg.Artifacts.Dir)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := chdirTemp(t)
	yaml := `
indexing:
  graph:
    driver: postgres
    postgres:
      dsn: "${env:TEST_GRAPH_DSN}"
    chunking:
      markdown:
        windowSizeTokens: 350
        adaptive: false
graph:
  indexing:
    clearOnStartup: false
    chunking:
      enabled: true
      openapi:
        enabled: false
llm:
  provider: openai
  openai:
    apiKey: "${env:MISSING_ENV_VAR_FOR_TEST}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("TEST_GRAPH_DSN", "postgres://localhost/onemcp")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Indexing.Driver)
	require.Equal(t, "postgres://localhost/onemcp", cfg.Indexing.Postgres.DSN)
	require.False(t, cfg.Indexing.ClearOnStartupEnabled())
	require.Equal(t, 350, cfg.Indexing.Markdown.WindowSizeTokens)
	require.False(t, cfg.Indexing.Markdown.AdaptiveEnabled())
	// per-type override beats the global default
	require.False(t, cfg.Indexing.Chunking.EnabledFor("openapi"))
	require.True(t, cfg.Indexing.Chunking.EnabledFor("markdown"))
	// unresolved ${env:...} placeholder is treated as absent
	require.Empty(t, cfg.LLM.OpenAI.APIKey)
	require.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LLM_PROVIDER", "bogus")
	_, err := Load()
	require.Error(t, err)
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}
