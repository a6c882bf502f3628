package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSLETTER_SCANNER_CONFIG"
	notionTokenEnv  = "NOTION_TOKEN"
	notionDBEnv     = "NOTION_DATABASE_ID"
	useLLMEnv       = "USE_LLM_CATEGORIZATION"
	openAIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv  = "OPENAI_MODEL"
	openAIRPMEnv    = "OPENAI_REQUESTS_PER_MINUTE"
	logLevelEnv     = "LOG_LEVEL"
	ledgerPathEnv   = "LEDGER_PATH"
	mailboxDirEnv   = "MAILBOX_DIR"
	telegramToken   = "TELEGRAM_BOT_TOKEN"
	telegramChatID  = "TELEGRAM_CHAT_ID"

	// UncategorizedLabel is the category token used when classification fails.
	UncategorizedLabel = "Sin categoría"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Senders       []string           `yaml:"senders"`
	Categories    []CategoryConfig   `yaml:"categories"`
	Settings      Settings           `yaml:"settings"`
	LLM           LLMConfig          `yaml:"llm"`
	Notion        NotionConfig       `yaml:"notion"`
	Sink          SinkConfig         `yaml:"sink"`
	Source        SourceConfig       `yaml:"source"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CategoryConfig is one entry of the category table. Declaration order is
// significant: it breaks confidence ties.
type CategoryConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Settings tunes classification and structuring.
type Settings struct {
	CategorizationThreshold float64  `yaml:"categorization_threshold"`
	DescriptionMaxLength    int      `yaml:"description_max_length"`
	BatchSaveCount          int      `yaml:"batch_save_count"`
	HistoryDays             int      `yaml:"history_days"`
	MaxEmailsPerRun         int      `yaml:"max_emails_per_run"`
	MaxOtherCategories      int      `yaml:"max_other_categories"`
	OtherCategoriesMin      float64  `yaml:"other_categories_min"`
	UncategorizedLabel      string   `yaml:"uncategorized_label"`
	SourceFallbackURL       string   `yaml:"source_fallback_url"`
	SourceLinkPhrases       []string `yaml:"source_link_phrases"`
	IgnoreLinkPatterns      []string `yaml:"ignore_link_patterns"`
}

// LLMConfig defines how to contact the OpenAI-compatible completion API.
type LLMConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Endpoint          string  `yaml:"endpoint"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	SystemPrompt      string  `yaml:"system_prompt"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	MaxAttempts       int     `yaml:"max_attempts"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	DefaultConfidence float64 `yaml:"default_confidence"`
	MaxContentRunes   int     `yaml:"max_content_runes"`
}

// Timeout returns the per-request timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotionConfig carries opaque credentials passed through to the Notion sink.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
	Endpoint   string `yaml:"endpoint"`
	Version    string `yaml:"version"`
}

// SinkConfig picks the record sink.
type SinkConfig struct {
	Kind     string `yaml:"kind"` // notion, sql, stdout
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Attempts int    `yaml:"attempts"`
}

// SourceConfig picks the message source.
type SourceConfig struct {
	Kind string `yaml:"kind"` // mailbox
	Dir  string `yaml:"dir"`
}

// LedgerConfig locates the processed-id ledger. Kind "sql" stores it in the
// sink database given by Driver and DSN.
type LedgerConfig struct {
	Kind          string `yaml:"kind"` // file, sql
	Path          string `yaml:"path"`
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	FlushAttempts int    `yaml:"flush_attempts"`
	MaxIDs        int    `yaml:"max_ids"`
}

// MetricsConfig enables the prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// SchedulerConfig defines how often serve mode runs and which zone renders dates.
type SchedulerConfig struct {
	IntervalMinutes int            `yaml:"interval_minutes"`
	Timezone        string         `yaml:"timezone"`
	location        *time.Location `yaml:"-"`
}

// Interval returns the serve mode period.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIBase  string `yaml:"api_base"`
}

// CategoryNames lists configured category names in declaration order.
func (c Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Name)
	}
	return names
}

// Load reads YAML configuration (if present) on top of defaults and applies
// environment overrides. An empty path falls back to NEWSLETTER_SCANNER_CONFIG.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
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

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.bindTimezone()

	if len(cfg.Categories) == 0 {
		cfg.Categories = defaultCategories()
	}
	if strings.TrimSpace(cfg.Settings.UncategorizedLabel) == "" {
		cfg.Settings.UncategorizedLabel = UncategorizedLabel
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(notionTokenEnv); v != "" {
		c.Notion.Token = v
	}
	if v := os.Getenv(notionDBEnv); v != "" {
		c.Notion.DatabaseID = v
	}

	if v := os.Getenv(useLLMEnv); v != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Problems: []string{fmt.Sprintf("%s: %q is not a boolean", useLLMEnv, v)}}
		}
		c.LLM.Enabled = enabled
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(openAIRPMEnv); v != "" {
		rpm, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigError{Problems: []string{fmt.Sprintf("%s: %q is not an integer", openAIRPMEnv, v)}}
		}
		c.LLM.RequestsPerMinute = rpm
	}

	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv(mailboxDirEnv); v != "" {
		c.Source.Dir = v
	}

	if v := os.Getenv(telegramToken); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatID); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	return nil
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Senders: []string{"dan@tldrnewsletter.com"},
		Settings: Settings{
			CategorizationThreshold: 0.1,
			DescriptionMaxLength:    1990,
			BatchSaveCount:          10,
			HistoryDays:             7,
			MaxEmailsPerRun:         50,
			MaxOtherCategories:      2,
			OtherCategoriesMin:      0.05,
			UncategorizedLabel:      UncategorizedLabel,
			SourceFallbackURL:       "https://mail.google.com/mail/u/0/#inbox/{id}",
			SourceLinkPhrases: []string{
				"read more", "view article", "view online", "read online",
				"view in browser", "leer más",
			},
			IgnoreLinkPatterns: []string{"unsubscribe", "manage your subscription", "preferences"},
		},
		LLM: LLMConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-3.5-turbo",
			SystemPrompt:      "You are a helpful assistant that categorizes newsletter content.",
			RequestsPerMinute: 20,
			MaxAttempts:       3,
			TimeoutSeconds:    30,
			DefaultConfidence: 0.8,
			MaxContentRunes:   2000,
		},
		Notion: NotionConfig{
			Endpoint: "https://api.notion.com/v1",
			Version:  "2022-06-28",
		},
		Sink:      SinkConfig{Kind: "notion", Attempts: 3},
		Source:    SourceConfig{Kind: "mailbox", Dir: "./mailbox"},
		Ledger:    LedgerConfig{Kind: "file", Path: "processed_ids.json", FlushAttempts: 3},
		Scheduler: SchedulerConfig{IntervalMinutes: 5, Timezone: defaultTimezone, location: tz},
	}
}

func defaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "IA > negocio", Keywords: []string{"caso de uso", "decisión estratégica", "métrica", "impacto", "adopción", "empresa", "negocio", "ROI", "implementación", "transformación digital"}},
		{Name: "IA > políticas", Keywords: []string{"normativa", "regulación", "ética", "debate", "marco regulatorio", "implicancia social", "privacidad", "responsabilidad", "gobernanza"}},
		{Name: "IA > arquitectura + código", Keywords: []string{"buena práctica", "herramienta", "framework", "MLOps", "pipeline", "deployment", "automatización", "infraestructura", "código", "arquitectura"}},
		{Name: "IA > frontera + R&D", Keywords: []string{"investigación", "paper", "modelo", "técnica", "tendencia", "laboratorio", "avance", "innovación", "frontera", "estado del arte"}},
		{Name: "IA > as a service / product", Keywords: []string{"API", "plataforma", "herramienta", "producto", "servicio", "SaaS", "PaaS", "empaquetado", "solución"}},
		{Name: "Curiosidad de la semana", Keywords: []string{"inusual", "hack", "experimento", "lúdico", "creativo", "interesante", "curioso", "divertido", "innovador", "sorprendente"}},
	}
}
