package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Crew      CrewConfig       `json:"crew"`
	Stats     StatsConfig      `json:"stats"`
	Embedding EmbeddingConfig  `json:"embedding"`
	RAG       RAGConfig        `json:"rag"`
	Database  DatabaseConfig   `json:"database"`
	Gateway   GatewayConfig    `json:"gateway"`
}

type ServerConfig struct {
	Port          int    `json:"port"`
	LogLevel      string `json:"log_level"`
	MigrationsDir string `json:"migrations_dir"`
}

type ProviderConfig struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Endpoint   string            `json:"endpoint"`
	APIKey     string            `json:"api_key"`
	Models     []string          `json:"models,omitempty"`
	Fallbacks  []string          `json:"fallbacks,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
	TimeoutSec int               `json:"timeout_sec,omitempty"`
	// Default serves models no provider declares.
	Default bool `json:"default,omitempty"`
}

// CrewConfig controls graph construction and execution.
type CrewConfig struct {
	// Models maps a role key (researcher, writer_llama, ...) to a model identifier.
	Models              map[string]string `json:"models"`
	APIKey              Secret            `json:"api_key"`
	DefaultLookbackDays int               `json:"default_lookback_days"`
	TaskTimeoutSec      int               `json:"task_timeout_sec"`
	MaxToolRounds       int               `json:"max_tool_rounds"`
	Parallelism         int               `json:"parallelism"`
	DefinitionsFile     string            `json:"definitions_file"`
	SkillsDir           string            `json:"skills_dir"`
}

// TaskTimeout returns the per-task timeout as a duration.
func (c CrewConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSec) * time.Second
}

type StatsConfig struct {
	NBAEndpoint string `json:"nba_endpoint"`
	MLBEndpoint string `json:"mlb_endpoint"`
	TimeoutSec  int    `json:"timeout_sec"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
	CacheSize int    `json:"cache_size"`
}

type RAGConfig struct {
	Collection   string `json:"collection"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	TopK         int    `json:"top_k"`
	Model        string `json:"model"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL    string `json:"url"`
	Stream string `json:"stream"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type GatewayConfig struct {
	Slack        SlackGatewayConfig   `json:"slack"`
	Discord      DiscordGatewayConfig `json:"discord"`
	AnnounceRuns bool                 `json:"announce_runs"`
	// Personas override the display identity of crew agents, by agent key.
	Personas map[string]PersonaConfig `json:"personas,omitempty"`
}

type PersonaConfig struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
	Emoji   string `json:"emoji,omitempty"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	// Webhooks maps channel IDs to webhook URLs used to post as a persona.
	Webhooks map[string]string `json:"webhooks,omitempty"`
}

// Secret holds a credential that must never be logged or serialized back out.
type Secret string

// String redacts the value for fmt and zap.Stringer.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

// MarshalJSON redacts the value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Reveal returns the raw credential.
func (s Secret) Reveal() string { return string(s) }

// DefaultModels are the Groq model identifiers bound to each crew role.
var DefaultModels = map[string]string{
	"researcher":     "llama3-70b-8192",
	"statistician":   "llama3-70b-8192",
	"editor":         "llama3-70b-8192",
	"writer_llama":   "llama3-8b-8192",
	"writer_gemma":   "gemma2-9b-it",
	"writer_mixtral": "mixtral-8x7b-32768",
	"stats_writer":   "llama3-8b-8192",
	"mlb_writer":     "llama3-70b-8192",
}

// Defaults fills zero values with the built-in settings.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MigrationsDir == "" {
		c.Server.MigrationsDir = "migrations"
	}
	if c.Crew.Models == nil {
		c.Crew.Models = make(map[string]string)
	}
	for role, model := range DefaultModels {
		if c.Crew.Models[role] == "" {
			c.Crew.Models[role] = model
		}
	}
	if c.Crew.DefaultLookbackDays <= 0 {
		c.Crew.DefaultLookbackDays = 1
	}
	if c.Crew.TaskTimeoutSec <= 0 {
		c.Crew.TaskTimeoutSec = 180
	}
	if c.Crew.MaxToolRounds <= 0 {
		c.Crew.MaxToolRounds = 5
	}
	if c.Crew.Parallelism <= 0 {
		c.Crew.Parallelism = 1
	}
	if c.Stats.NBAEndpoint == "" {
		c.Stats.NBAEndpoint = "https://stats.nba.com/stats"
	}
	if c.Stats.MLBEndpoint == "" {
		c.Stats.MLBEndpoint = "https://statsapi.mlb.com/api/v1"
	}
	if c.Stats.TimeoutSec <= 0 {
		c.Stats.TimeoutSec = 30
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Endpoint == "" && c.Embedding.Provider == "local" {
		c.Embedding.Endpoint = "http://localhost:11434"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 768
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = 1024
	}
	if c.RAG.Collection == "" {
		c.RAG.Collection = "nba_cba"
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 800
	}
	if c.RAG.ChunkOverlap <= 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = 80
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.Model == "" {
		c.RAG.Model = c.Crew.Models["researcher"]
	}
	if c.Database.Redis.Stream == "" {
		c.Database.Redis.Stream = "statcrew:events"
	}
	if c.Database.Qdrant.Host == "" {
		c.Database.Qdrant.Host = "localhost"
	}
	if c.Database.Qdrant.Port == 0 {
		c.Database.Qdrant.Port = 6334
	}

	// Keyless providers inherit the shared crew credential.
	for i := range c.Providers {
		if c.Providers[i].APIKey == "" && c.Providers[i].Type != "ollama" {
			c.Providers[i].APIKey = c.Crew.APIKey.Reveal()
		}
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable references
// and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw JSON config bytes.
func Parse(data []byte) (*Config, error) {
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()
	return &cfg, nil
}
