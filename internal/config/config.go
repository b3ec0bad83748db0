package config

import "time"

// Config represents the full application configuration.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Prompt  PromptConfig  `yaml:"prompt"`
	Chat    ChatConfig    `yaml:"chat"`
	Render  RenderConfig  `yaml:"render"`
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig configures the gateway connection.
type DiscordConfig struct {
	// Token is the bot token. The bare legacy DISCORD_TOKEN environment
	// variable is honored as a fallback.
	Token string `yaml:"token"`

	// Channel is the guild channel name the bot answers in. DMs are
	// always answered.
	Channel string `yaml:"channel"`
}

// OpenAIConfig configures the completion backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL"`
}

// PromptConfig configures the system prompt source.
type PromptConfig struct {
	// File points to a prompt file that replaces the embedded default.
	// The bare PROMPT_FILE environment variable is honored as a fallback.
	File string `yaml:"file"`

	// Watch reloads the prompt file when it changes on disk.
	Watch bool `yaml:"watch"`
}

// ChatConfig tunes conversation assembly.
type ChatConfig struct {
	// TokenBudget caps the assembled chat log. The default is the 4K
	// model window minus headroom for the reply.
	TokenBudget int `yaml:"tokenBudget"`

	// HistoryPageSize is how many messages each history fetch requests.
	HistoryPageSize int `yaml:"historyPageSize"`
}

// RenderConfig tunes the LaTeX render pipeline.
type RenderConfig struct {
	Enabled       bool   `yaml:"enabled"`
	WorkDir       string `yaml:"workDir"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
	CacheSize     int    `yaml:"cacheSize"`
	CacheTTL      string `yaml:"cacheTTL"`
	Timeout       string `yaml:"timeout"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// StoreConfig configures the exchange archive.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// ParseDurationDefault parses s, falling back to def when s is empty,
// malformed, or negative.
func ParseDurationDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return def
}
