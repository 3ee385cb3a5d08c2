package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

const envPlaceholderPrefix = "${env:"

// Load reads configuration from the environment (optionally .env) and an
// optional YAML file. Environment values win over YAML, matching the rest of
// the toolchain. The YAML path can be set with ONEMCP_CONFIG; otherwise
// config.yaml / config.yml in the working directory are tried.
func Load() (Config, error) {
	// Overload so .env values override the inherited environment; local
	// configuration deterministically controls development runs.
	_ = godotenv.Overload()

	cfg := Config{}
	if err := loadYAML(&cfg); err != nil {
		return Config{}, err
	}
	resolvePlaceholders(&cfg)

	cfg.LogPath = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_PATH")), cfg.LogPath)
	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), cfg.LogLevel)

	if v := strings.TrimSpace(os.Getenv("LLM_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.LLM.Anthropic.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.LLM.Anthropic.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.LLM.OpenAI.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		cfg.LLM.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_API_KEY")); v != "" {
		cfg.LLM.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_MODEL")); v != "" {
		cfg.LLM.Google.Model = v
	}

	if v := strings.TrimSpace(os.Getenv("GRAPH_DRIVER")); v != "" {
		cfg.Indexing.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPH_POSTGRES_DSN")); v != "" {
		cfg.Indexing.Postgres.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPH_CLEAR_ON_STARTUP")); v != "" {
		b := parseBool(v)
		cfg.Indexing.ClearOnStartup = &b
	}
	if v := strings.TrimSpace(os.Getenv("GRAPH_INDEXING_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexing.Concurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACTS_DIR")); v != "" {
		cfg.Artifacts.Dir = v
	}

	applyDefaults(&cfg)

	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	switch provider {
	case "anthropic", "openai", "google":
		cfg.LLM.Provider = provider
	default:
		return Config{}, fmt.Errorf("llm provider must be one of anthropic, openai, or google (got %q)", provider)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.Indexing.Driver == "" {
		cfg.Indexing.Driver = "in-memory"
	}
	if cfg.Indexing.Concurrency <= 0 {
		cfg.Indexing.Concurrency = 1
	}
	if cfg.Indexing.Markdown.WindowSizeTokens <= 0 {
		cfg.Indexing.Markdown.WindowSizeTokens = 500
	}
	if cfg.Indexing.Markdown.OverlapTokens <= 0 {
		cfg.Indexing.Markdown.OverlapTokens = 64
	}
	if cfg.Retrieval.Cache.TTLSeconds <= 0 {
		cfg.Retrieval.Cache.TTLSeconds = 300
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "logs/graph"
	}
}

// yamlFile is the on-disk shape. The dotted configuration keys live under two
// historical prefixes (indexing.graph.* and graph.indexing.*); both are
// accepted and merged into the flat Config.
type yamlFile struct {
	LogPath  string `yaml:"logPath"`
	LogLevel string `yaml:"logLevel"`
	Indexing struct {
		Graph struct {
			Driver   string         `yaml:"driver"`
			Postgres PostgresConfig `yaml:"postgres"`
			Chunking struct {
				Markdown MarkdownChunkingConfig `yaml:"markdown"`
			} `yaml:"chunking"`
			Concurrency int `yaml:"concurrency"`
		} `yaml:"graph"`
	} `yaml:"indexing"`
	Graph struct {
		Indexing struct {
			ClearOnStartup *bool          `yaml:"clearOnStartup"`
			Chunking       ChunkingConfig `yaml:"chunking"`
		} `yaml:"indexing"`
	} `yaml:"graph"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

func loadYAML(cfg *Config) error {
	var paths []string
	if p := strings.TrimSpace(os.Getenv("ONEMCP_CONFIG")); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, "config.yaml", "config.yml")
	var data []byte
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			break
		}
		if os.IsNotExist(err) {
			continue
		}
		return fmt.Errorf("read %s: %w", p, err)
	}
	if len(data) == 0 {
		return nil // optional
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.LogPath = f.LogPath
	cfg.LogLevel = f.LogLevel
	cfg.Indexing.Driver = f.Indexing.Graph.Driver
	cfg.Indexing.Postgres = f.Indexing.Graph.Postgres
	cfg.Indexing.Markdown = f.Indexing.Graph.Chunking.Markdown
	cfg.Indexing.Concurrency = f.Indexing.Graph.Concurrency
	cfg.Indexing.ClearOnStartup = f.Graph.Indexing.ClearOnStartup
	cfg.Indexing.Chunking = f.Graph.Indexing.Chunking
	cfg.LLM = f.LLM
	cfg.Retrieval = f.Retrieval
	cfg.Artifacts = f.Artifacts
	return nil
}

// resolvePlaceholders expands "${env:NAME}" strings in credential fields.
// Placeholders whose variable is unset resolve to empty, i.e. absent.
func resolvePlaceholders(cfg *Config) {
	for _, p := range []*string{
		&cfg.LLM.Anthropic.APIKey, &cfg.LLM.Anthropic.Model, &cfg.LLM.Anthropic.BaseURL,
		&cfg.LLM.OpenAI.APIKey, &cfg.LLM.OpenAI.Model, &cfg.LLM.OpenAI.BaseURL,
		&cfg.LLM.Google.APIKey, &cfg.LLM.Google.Model, &cfg.LLM.Google.BaseURL,
		&cfg.Indexing.Postgres.DSN, &cfg.Retrieval.Cache.Addr, &cfg.Retrieval.Cache.Password,
	} {
		*p = expandEnvPlaceholder(*p)
	}
}

func expandEnvPlaceholder(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, envPlaceholderPrefix) || !strings.HasSuffix(t, "}") {
		return s
	}
	name := strings.TrimSuffix(strings.TrimPrefix(t, envPlaceholderPrefix), "}")
	return strings.TrimSpace(os.Getenv(strings.TrimSpace(name)))
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
