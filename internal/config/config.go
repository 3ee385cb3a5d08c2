package config

// AnthropicConfig holds credentials for the Anthropic chat provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// OpenAIConfig holds credentials for the OpenAI chat provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// GoogleConfig holds credentials for the Google chat provider.
type GoogleConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// LLMConfig selects and configures the chat provider used for extraction.
type LLMConfig struct {
	Provider  string          `yaml:"provider"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Google    GoogleConfig    `yaml:"google"`
}

// TypeChunkingConfig is a per-document-type chunking override. A nil Enabled
// falls back to the global chunking default.
type TypeChunkingConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// MarkdownChunkingConfig tunes the semantic Markdown chunker.
type MarkdownChunkingConfig struct {
	WindowSizeTokens int   `yaml:"windowSizeTokens"`
	OverlapTokens    int   `yaml:"overlapTokens"`
	Adaptive         *bool `yaml:"adaptive"`
}

// ChunkingConfig carries the global chunking default plus per-type overrides.
type ChunkingConfig struct {
	Enabled  bool               `yaml:"enabled"`
	OpenAPI  TypeChunkingConfig `yaml:"openapi"`
	Markdown TypeChunkingConfig `yaml:"markdown"`
}

// PostgresConfig configures the document-graph backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// IndexingConfig configures the graph driver and the indexing pipeline.
type IndexingConfig struct {
	Driver         string                 `yaml:"driver"`
	Postgres       PostgresConfig         `yaml:"postgres"`
	ClearOnStartup *bool                  `yaml:"clearOnStartup"`
	Concurrency    int                    `yaml:"concurrency"`
	Chunking       ChunkingConfig         `yaml:"chunking"`
	Markdown       MarkdownChunkingConfig `yaml:"markdown"`
}

// RedisCacheConfig configures the optional retrieval response cache.
type RedisCacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// RetrievalConfig configures the retrieval service.
type RetrievalConfig struct {
	Cache RedisCacheConfig `yaml:"cache"`
}

// ArtifactsConfig configures the per-run artifact log sinks.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// Config is the root configuration for the indexer and retrieval engine.
type Config struct {
	LogPath  string `yaml:"logPath"`
	LogLevel string `yaml:"logLevel"`

	LLM       LLMConfig       `yaml:"llm"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// ClearOnStartupEnabled reports the effective clear-on-startup setting
// (default true).
func (c IndexingConfig) ClearOnStartupEnabled() bool {
	if c.ClearOnStartup == nil {
		return true
	}
	return *c.ClearOnStartup
}

// EnabledFor resolves the per-document-type chunking toggle, falling back to
// the global default when the type has no override.
func (c ChunkingConfig) EnabledFor(docType string) bool {
	var o TypeChunkingConfig
	switch docType {
	case "openapi":
		o = c.OpenAPI
	case "markdown":
		o = c.Markdown
	}
	if o.Enabled != nil {
		return *o.Enabled
	}
	return c.Enabled
}

// AdaptiveEnabled reports whether adaptive Markdown chunking is in effect
// (default true). Disabling it selects the deprecated fixed parameters.
func (c MarkdownChunkingConfig) AdaptiveEnabled() bool {
	if c.Adaptive == nil {
		return true
	}
	return *c.Adaptive
}
