package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Chat assembly defaults: the 4K model window minus reply headroom.
const (
	defaultTokenBudget     = 4096 - 500
	defaultHistoryPageSize = 10
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment variables.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "omnitea"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "OMNITEA"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	bindLegacyEnv(v)
	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand environment variables in config values
	cfg = expandEnvVars(cfg)

	return cfg, nil
}

// bindLegacyEnv keeps the bare legacy environment variables working
// alongside the OMNITEA_-prefixed forms. The prefixed form wins when both
// are set.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("discord.token", "OMNITEA_DISCORD_TOKEN", "DISCORD_TOKEN")
	_ = v.BindEnv("discord.channel", "OMNITEA_DISCORD_CHANNEL", "CHANNEL_NAME")
	_ = v.BindEnv("openai.apikey", "OMNITEA_OPENAI_APIKEY", "OPENAI_KEY")
	_ = v.BindEnv("prompt.file", "OMNITEA_PROMPT_FILE", "PROMPT_FILE")
}

// expandEnvVars expands ${VAR} and $VAR syntax in configuration strings.
func expandEnvVars(cfg Config) Config {
	cfg.Discord.Token = expandEnvString(cfg.Discord.Token)
	cfg.Discord.Channel = expandEnvString(cfg.Discord.Channel)

	cfg.OpenAI.APIKey = expandEnvString(cfg.OpenAI.APIKey)
	cfg.OpenAI.Model = expandEnvString(cfg.OpenAI.Model)
	cfg.OpenAI.BaseURL = expandEnvString(cfg.OpenAI.BaseURL)

	cfg.Prompt.File = expandEnvString(cfg.Prompt.File)

	cfg.Render.WorkDir = expandEnvString(cfg.Render.WorkDir)

	cfg.HTTP.Timeout = expandEnvString(cfg.HTTP.Timeout)
	cfg.HTTP.InitialBackoff = expandEnvString(cfg.HTTP.InitialBackoff)
	cfg.HTTP.MaxBackoff = expandEnvString(cfg.HTTP.MaxBackoff)

	cfg.Store.Path = expandEnvString(cfg.Store.Path)

	cfg.Logging.Level = expandEnvString(cfg.Logging.Level)
	cfg.Logging.Format = expandEnvString(cfg.Logging.Format)

	return cfg
}

// expandEnvString replaces ${VAR} or $VAR with environment variable values.
func expandEnvString(s string) string {
	if s == "" {
		return s
	}

	// Replace ${VAR} syntax
	re := regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Keep original if not found
	})

	// Replace $VAR syntax (without braces)
	re = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Keep original if not found
	})

	return s
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "omnitea"))
	}
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.channel", "omnitea")

	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.baseURL", "")

	v.SetDefault("prompt.watch", true)

	v.SetDefault("chat.tokenBudget", defaultTokenBudget)
	v.SetDefault("chat.historyPageSize", defaultHistoryPageSize)

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.workDir", "")
	v.SetDefault("render.maxConcurrent", 2)
	v.SetDefault("render.cacheSize", 64)
	v.SetDefault("render.cacheTTL", "1h")
	v.SetDefault("render.timeout", "90s")

	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.maxRetries", 5)
	v.SetDefault("http.initialBackoff", "2s")
	v.SetDefault("http.maxBackoff", "32s")
	v.SetDefault("http.backoffMultiplier", 2.0)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./omnitea.db"
	}
	return filepath.Join(home, ".config", "omnitea", "omnitea.db")
}
