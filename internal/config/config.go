// Package config loads and validates the Horizon configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Plugin    PluginConfig    `yaml:"plugin"`
	Responses ResponsesConfig `yaml:"responses"`
	Session   SessionConfig   `yaml:"session"`
	Skills    SkillsConfig    `yaml:"skills"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LLMConfig configures the model provider for the turn pipeline.
type LLMConfig struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible API)
	// or "anthropic".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	MaxTokens int `yaml:"max_tokens"`

	SystemPrompt string `yaml:"system_prompt"`

	// QAPairs are fixed few-shot question/answer pairs injected after the
	// system prompt on every turn.
	QAPairs []QAPair `yaml:"qa_pairs"`
}

// QAPair is one fixed few-shot exchange.
type QAPair struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// PluginConfig holds chat trigger and behavior switches.
type PluginConfig struct {
	// TriggerMode lists enabled trigger mechanisms: "at", "keyword", "prefix".
	// Empty means at-mention only.
	TriggerMode  []string `yaml:"trigger_mode"`
	TriggerWords []string `yaml:"trigger_words"`

	EnableGroup   bool `yaml:"enable_group"`
	EnablePrivate bool `yaml:"enable_private"`

	// GroupChatIsolation keys group sessions per user instead of per group.
	GroupChatIsolation bool `yaml:"group_chat_isolation"`

	// MediaIncludeText keeps the surrounding text when a reply contains a
	// media URL; false sends the media alone.
	MediaIncludeText bool `yaml:"media_include_text"`

	Chunk ChunkConfig `yaml:"chunk"`

	// SensitiveWords are input words that cause an event to be dropped.
	SensitiveWords []string `yaml:"sensitive_words"`

	Debug bool `yaml:"debug"`
}

// ChunkConfig controls splitting long replies into separate messages.
type ChunkConfig struct {
	Enable bool `yaml:"enable"`
	Size   int  `yaml:"size"`
}

// ResponsesConfig holds every fixed user-visible string.
type ResponsesConfig struct {
	SessionBusy        string   `yaml:"session_busy"`
	Disabled           string   `yaml:"disabled"`
	EmptyMessage       []string `yaml:"empty_message"`
	SafetyBlocked      string   `yaml:"safety_blocked"`
	NotUnderstood      string   `yaml:"not_understood"`
	ToolCallFailed     string   `yaml:"tool_call_failed"`
	ToolCallFailedBare string   `yaml:"tool_call_failed_bare"`
	TokenLimitError    string   `yaml:"token_limit_error"`
	GeneralError       string   `yaml:"general_error"`
}

// SessionConfig tunes session lifecycle and concurrency control.
type SessionConfig struct {
	// CleanupInterval is both the idle expiry TTL and the sweep cadence.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// ProcessingTimeout is how long a turn may hold the processing flag
	// before the next acquirer reclaims it.
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`

	// LockTimeout bounds the wait for the per-session lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// MaxHistoryMessages bounds the trimmed context window per turn.
	MaxHistoryMessages int `yaml:"max_history_messages"`

	// HistoryPath enables the SQLite-backed conversation store when set;
	// empty keeps history in memory.
	HistoryPath string `yaml:"history_path"`
}

// SkillsConfig configures skill discovery.
type SkillsConfig struct {
	Dir string `yaml:"dir"`

	// Defaults are the skills active on newly created sessions.
	Defaults []string `yaml:"defaults"`
}

// ChannelsConfig configures the IM adapters.
type ChannelsConfig struct {
	OneBot   OneBotConfig   `yaml:"onebot"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// OneBotConfig configures the OneBot v11 WebSocket adapter.
type OneBotConfig struct {
	Enabled     bool     `yaml:"enabled"`
	URL         string   `yaml:"url"`
	AccessToken string   `yaml:"access_token"`
	Superusers  []string `yaml:"superusers"`
}

// TelegramConfig configures the Telegram long-polling adapter.
type TelegramConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Token      string   `yaml:"token"`
	Superusers []string `yaml:"superusers"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads the configuration file, expands environment variables and
// applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Plugin.EnableGroup = true
	cfg.Plugin.EnablePrivate = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4096
	}

	if c.Session.CleanupInterval <= 0 {
		c.Session.CleanupInterval = 600 * time.Second
	}
	if c.Session.ProcessingTimeout <= 0 {
		c.Session.ProcessingTimeout = 60 * time.Second
	}
	if c.Session.LockTimeout <= 0 {
		c.Session.LockTimeout = time.Second
	}
	if c.Session.MaxHistoryMessages <= 0 {
		c.Session.MaxHistoryMessages = 10
	}

	if c.Plugin.Chunk.Size <= 0 {
		c.Plugin.Chunk.Size = 1000
	}

	if c.Skills.Dir == "" {
		c.Skills.Dir = "skills"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}

	r := &c.Responses
	if r.SessionBusy == "" {
		r.SessionBusy = "I'm still working on your previous message, try again in a moment."
	}
	if r.Disabled == "" {
		r.Disabled = "Chat is currently disabled."
	}
	if len(r.EmptyMessage) == 0 {
		r.EmptyMessage = []string{"Yes?", "I'm listening."}
	}
	if r.SafetyBlocked == "" {
		r.SafetyBlocked = "The reply was blocked by the safety policy."
	}
	if r.NotUnderstood == "" {
		r.NotUnderstood = "Sorry, I didn't understand your question."
	}
	if r.ToolCallFailed == "" {
		r.ToolCallFailed = "Tool call failed: %s"
	}
	if r.ToolCallFailedBare == "" {
		r.ToolCallFailedBare = "Tool call failed with no error detail."
	}
	if r.TokenLimitError == "" {
		r.TokenLimitError = "The conversation grew too large and was reset, please start over."
	}
	if r.GeneralError == "" {
		r.GeneralError = "Something went wrong, the conversation has been reset."
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Channels.OneBot.Enabled && c.Channels.OneBot.URL == "" {
		return fmt.Errorf("channels.onebot.url is required when enabled")
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token == "" {
		return fmt.Errorf("channels.telegram.token is required when enabled")
	}
	return nil
}
