// Package config loads and validates cricsight configuration from YAML
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cricsight/internal/domain"
)

// Config is the root configuration for the agent and MCP server binaries.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Provider  ProviderConfig  `yaml:"provider"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Stats     StatsConfig     `yaml:"stats"`
	News      NewsConfig      `yaml:"news"`
	Search    SearchConfig    `yaml:"search"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AgentConfig controls the reasoning loop.
type AgentConfig struct {
	MaxToolRounds       int           `yaml:"max_tool_rounds"`
	TurnTimeout         time.Duration `yaml:"turn_timeout"`
	SystemPrompt        string        `yaml:"system_prompt,omitempty"`
	MaxTokens           int           `yaml:"max_tokens"`
	Temperature         float64       `yaml:"temperature"`
	ContextBudgetTokens int           `yaml:"context_budget_tokens"`
}

// PoolConfig tunes the HTTP transport connection pool.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for the LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "openai" or "anthropic"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "ollama" or "openai"
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key,omitempty"`
	CacheSize  int    `yaml:"cache_size"`
}

// StatsConfig points at the cricket statistics database.
type StatsConfig struct {
	DBPath string `yaml:"db_path"`
}

// NewsConfig holds GNews API settings and the background refresh schedule.
type NewsConfig struct {
	APIKey        string        `yaml:"api_key"`
	Endpoint      string        `yaml:"endpoint,omitempty"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	Refresh       RefreshConfig `yaml:"refresh"`
}

// RefreshConfig schedules periodic article ingestion for configured topics.
type RefreshConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Schedule    string   `yaml:"schedule"` // cron expression
	Topics      []string `yaml:"topics"`
	MaxArticles int      `yaml:"max_articles"`
}

// SearchConfig holds qdrant connection settings.
type SearchConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key,omitempty"`
	Collection string `yaml:"collection"`
	Dims       int    `yaml:"dims"`
}

// MCPConfig lists external MCP servers the agent connects to.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers,omitempty"`
}

// MCPServerConfig configures a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxToolRounds:       10,
			TurnTimeout:         5 * time.Minute,
			MaxTokens:           4096,
			Temperature:         0.2,
			ContextBudgetTokens: 100000,
		},
		Provider: ProviderConfig{
			Name:        "default",
			Type:        "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			ConnTimeout: 10 * time.Second,
			RespTimeout: 120 * time.Second,
			Pool: PoolConfig{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "all-minilm",
			Dimensions: 384,
			BaseURL:    "http://localhost:11434",
			CacheSize:  1024,
		},
		Stats: StatsConfig{
			DBPath: "data/cricket_stats.db",
		},
		News: NewsConfig{
			RatePerSecond: 1,
			Burst:         3,
			Refresh: RefreshConfig{
				Schedule:    "0 */6 * * *",
				Topics:      []string{"test match", "ODI", "T20"},
				MaxArticles: 5,
			},
		},
		Search: SearchConfig{
			URL:        "http://localhost:6333",
			Collection: "cricket_articles",
			Dims:       384,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// Load reads a YAML config file, applies env overrides, and validates.
// A missing file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, domain.WrapOp("config.load", fmt.Errorf("%w: %v", domain.ErrConfigLoad, err))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.WrapOp("config.load", fmt.Errorf("%w: parse %s: %v", domain.ErrConfigLoad, path, err))
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps CRICSIGHT_* env vars to config fields.
// Env vars take precedence over file values.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRICSIGHT_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CRICSIGHT_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CRICSIGHT_LOG_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("CRICSIGHT_TRACER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = b
		}
	}
	if v := os.Getenv("CRICSIGHT_LLM_TYPE"); v != "" {
		cfg.Provider.Type = v
	}
	if v := os.Getenv("CRICSIGHT_LLM_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("CRICSIGHT_LLM_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("CRICSIGHT_LLM_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("CRICSIGHT_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("CRICSIGHT_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CRICSIGHT_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("CRICSIGHT_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("CRICSIGHT_STATS_DB"); v != "" {
		cfg.Stats.DBPath = v
	}
	if v := os.Getenv("CRICSIGHT_NEWS_API_KEY"); v != "" {
		cfg.News.APIKey = v
	}
	if v := os.Getenv("CRICSIGHT_QDRANT_URL"); v != "" {
		cfg.Search.URL = v
	}
	if v := os.Getenv("CRICSIGHT_QDRANT_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("CRICSIGHT_QDRANT_COLLECTION"); v != "" {
		cfg.Search.Collection = v
	}
	if v := os.Getenv("CRICSIGHT_MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxToolRounds = n
		}
	}
	if v := os.Getenv("CRICSIGHT_TURN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Agent.TurnTimeout = d
		}
	}
}

// Validate checks cross-field constraints after load.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Agent.MaxToolRounds <= 0 {
		problems = append(problems, "agent.max_tool_rounds must be positive")
	}
	if cfg.Agent.TurnTimeout <= 0 {
		problems = append(problems, "agent.turn_timeout must be positive")
	}
	switch cfg.Provider.Type {
	case "openai", "anthropic":
	default:
		problems = append(problems, fmt.Sprintf("provider.type %q not supported (want openai or anthropic)", cfg.Provider.Type))
	}
	if cfg.Provider.Model == "" {
		problems = append(problems, "provider.model is required")
	}
	switch cfg.Embedding.Provider {
	case "ollama", "openai":
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider %q not supported (want ollama or openai)", cfg.Embedding.Provider))
	}
	if cfg.Embedding.Dimensions <= 0 {
		problems = append(problems, "embedding.dimensions must be positive")
	}
	if cfg.Search.Dims != 0 && cfg.Search.Dims != cfg.Embedding.Dimensions {
		problems = append(problems, fmt.Sprintf("search.dims (%d) must match embedding.dimensions (%d)", cfg.Search.Dims, cfg.Embedding.Dimensions))
	}
	if cfg.Stats.DBPath == "" {
		problems = append(problems, "stats.db_path is required")
	}
	if cfg.News.Refresh.Enabled && cfg.News.APIKey == "" {
		problems = append(problems, "news.api_key is required when news.refresh.enabled is true")
	}
	for i, srv := range cfg.MCP.Servers {
		if srv.Name == "" {
			problems = append(problems, fmt.Sprintf("mcp.servers[%d].name is required", i))
		}
		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				problems = append(problems, fmt.Sprintf("mcp.servers[%d]: stdio transport requires command", i))
			}
		case "http":
			if srv.URL == "" {
				problems = append(problems, fmt.Sprintf("mcp.servers[%d]: http transport requires url", i))
			}
		default:
			problems = append(problems, fmt.Sprintf("mcp.servers[%d].transport %q not supported", i, srv.Transport))
		}
	}
	switch strings.ToLower(cfg.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logger.level %q not supported", cfg.Logger.Level))
	}

	if len(problems) > 0 {
		return domain.WrapOp("config.validate", fmt.Errorf("%w: %s", domain.ErrConfigLoad, strings.Join(problems, "; ")))
	}
	return nil
}
