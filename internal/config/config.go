package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	ConfigPathEnv = "SUPPLYRADAR_CONFIG"

	databaseDSNEnv    = "DATABASE_DSN"
	signalDSNEnv      = "SIGNAL_DSN"
	ledgerDSNEnv      = "LEDGER_DSN"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	fixturesPathEnv   = "SUPPLYRADAR_FIXTURES"
	logLevelEnv       = "LOG_LEVEL"
	httpAddrEnv       = "HTTP_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Log           LogConfig          `yaml:"log"`
	Database      DatabaseConfig     `yaml:"database"`
	Fixtures      FixturesConfig     `yaml:"fixtures"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Correlator    CorrelatorConfig   `yaml:"correlator"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Embedding     EmbeddingConfig    `yaml:"embedding"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Gemini        GeminiConfig       `yaml:"gemini"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
}

// LogConfig selects slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details. SignalDSN and
// LedgerDSN fall back to DSN when empty.
type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	SignalDSN string `yaml:"signalDsn"`
	LedgerDSN string `yaml:"ledgerDsn"`
}

// Offline reports whether the run uses fixtures instead of Postgres.
func (d DatabaseConfig) Offline() bool {
	return d.DSN == ""
}

// FixturesConfig points at offline data. LedgerPath keeps offline feedback
// between invocations; empty means in-memory only.
type FixturesConfig struct {
	Path       string `yaml:"path"`
	LedgerPath string `yaml:"ledgerPath"`
}

// PipelineConfig holds screening and rating thresholds.
type PipelineConfig struct {
	Threshold       float64       `yaml:"threshold"`
	FloorCover      float64       `yaml:"floorCover"`
	StrongRelevance float64       `yaml:"strongRelevance"`
	CallTimeout     time.Duration `yaml:"callTimeout"`
}

// CorrelatorConfig bounds the evidence lookup fan-out. MinRelevance drops
// snippets the signal store ranked as near but unrelated.
type CorrelatorConfig struct {
	TopK             int      `yaml:"topK"`
	MinRelevance     float64  `yaml:"minRelevance"`
	Concurrency      int      `yaml:"concurrency"`
	QueriesPerSecond float64  `yaml:"queriesPerSecond"`
	Burst            int      `yaml:"burst"`
	Strategies       []string `yaml:"strategies"`
}

// SchedulerConfig defines how often scheduled runs fire.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// EmbeddingConfig describes the OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// GeminiConfig defines the secondary narrator.
type GeminiConfig struct {
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BaseURL  string `yaml:"baseUrl"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether digests can be delivered.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// HTTPConfig configures the operator API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration over the defaults and applies environment
// overrides. An empty path falls back to SUPPLYRADAR_CONFIG; with neither
// set the defaults are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.fillDerived()

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(signalDSNEnv); v != "" {
		c.Database.SignalDSN = v
	}
	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Database.LedgerDSN = v
	}

	if v := os.Getenv(fixturesPathEnv); v != "" {
		c.Fixtures.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}
	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("config: unknown timezone, reverting to default", "timezone", tz, "default", defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func (c *Config) fillDerived() {
	if c.Database.SignalDSN == "" {
		c.Database.SignalDSN = c.Database.DSN
	}
	if c.Database.LedgerDSN == "" {
		c.Database.LedgerDSN = c.Database.DSN
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	p := c.Pipeline
	if p.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.threshold must be positive, got %v", p.Threshold))
	}
	if p.FloorCover <= 0 || p.FloorCover > p.Threshold {
		errs = append(errs, fmt.Errorf("pipeline.floorCover must be in (0, threshold], got %v", p.FloorCover))
	}
	if p.StrongRelevance <= 0 || p.StrongRelevance > 1 {
		errs = append(errs, fmt.Errorf("pipeline.strongRelevance must be in (0, 1], got %v", p.StrongRelevance))
	}
	if p.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.callTimeout must be positive, got %v", p.CallTimeout))
	}

	cr := c.Correlator
	if cr.TopK < 1 {
		errs = append(errs, fmt.Errorf("correlator.topK must be at least 1, got %d", cr.TopK))
	}
	if cr.MinRelevance < 0 || cr.MinRelevance > 1 {
		errs = append(errs, fmt.Errorf("correlator.minRelevance must be in [0, 1], got %v", cr.MinRelevance))
	}
	if cr.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("correlator.concurrency must be at least 1, got %d", cr.Concurrency))
	}
	if cr.QueriesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("correlator.queriesPerSecond must not be negative"))
	}

	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must be positive, got %v", c.Scheduler.Interval))
	}

	if c.Database.Offline() && c.Fixtures.Path == "" {
		errs = append(errs, errors.New("either database.dsn or fixtures.path must be set"))
	}
	if !c.Database.Offline() && c.Embedding.Endpoint == "" {
		errs = append(errs, errors.New("embedding.endpoint is required with a database"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Pipeline: PipelineConfig{
			Threshold:       4,
			FloorCover:      1,
			StrongRelevance: 0.85,
			CallTimeout:     15 * time.Second,
		},
		Correlator: CorrelatorConfig{
			TopK:         3,
			MinRelevance: 0.5,
			Concurrency:  4,
			Burst:        1,
			Strategies:   []string{"name", "supplier", "region"},
		},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Embedding: EmbeddingConfig{
			Endpoint: "https://api.openai.com/v1/embeddings",
			Model:    "text-embedding-3-small",
		},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Gemini: GeminiConfig{Model: "gemini-1.5-flash"},
		HTTP:   HTTPConfig{Addr: ":8080"},
	}
}
