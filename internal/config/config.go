package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

// Extraction providers.
const (
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Sheets     SheetsConfig
	Extraction ExtractionConfig
	Speech     SpeechConfig
	WhatsApp   WhatsAppConfig
	Reporting  ReportingConfig
	MongoDB    MongoDBConfig
	Redis      RedisConfig
	Telemetry  TelemetryConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port      string
	RateLimit string
	LogLevel  string
}

// StoreConfig selects the tabular store and the fuzzy match threshold.
type StoreConfig struct {
	Backend        string
	MatchThreshold int
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	Inventory       string
	Sales           string
	Maintenance     string
}

// ExtractionConfig holds settings for the LLM used to turn free text into records.
type ExtractionConfig struct {
	Provider        string
	DeepSeekKey     string
	DeepSeekBaseURL string
	DeepSeekModel   string
	AnthropicKey    string
	AnthropicModel  string
}

// SpeechConfig holds settings for Google Speech-to-Text.
type SpeechConfig struct {
	APIKey   string
	Language string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether the WhatsApp channel is configured.
func (w WhatsAppConfig) Enabled() bool { return w.AccessToken != "" }

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	Recipient          string
	CronSchedule       string
	VocabularySchedule string
	Timezone           string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Enabled reports whether stock reports are archived.
func (m MongoDBConfig) Enabled() bool { return m.URI != "" }

// RedisConfig holds settings for the shared id sequence.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether the Redis sequence replaces the in-process counter.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when the environment is set directly.
		_ = godotenv.Load()
	}

	threshold, err := getenvInt("MATCH_THRESHOLD", 80)
	if err != nil {
		return nil, err
	}
	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	deepSeekKey := os.Getenv("DEEPSEEK_API_KEY")
	if deepSeekKey == "" {
		deepSeekKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      getenvWithDefault("APP_PORT", "8080"),
			RateLimit: getenvWithDefault("RATE_LIMIT", "30-M"),
			LogLevel:  getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getenvWithDefault("STORE_BACKEND", BackendSheets)),
			MatchThreshold: threshold,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			Inventory:       getenvWithDefault("INVENTORY_SHEET", "Inventory"),
			Sales:           getenvWithDefault("SALES_SHEET", "Sales"),
			Maintenance:     getenvWithDefault("MAINTENANCE_SHEET", "Maintenance"),
		},
		Extraction: ExtractionConfig{
			Provider:        strings.ToLower(getenvWithDefault("EXTRACTION_PROVIDER", ProviderDeepSeek)),
			DeepSeekKey:     deepSeekKey,
			DeepSeekBaseURL: getenvWithDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
			DeepSeekModel:   getenvWithDefault("DEEPSEEK_MODEL", "deepseek-chat"),
			AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  getenvWithDefault("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		},
		Speech: SpeechConfig{
			APIKey:   os.Getenv("GOOGLE_SPEECH_API_KEY"),
			Language: getenvWithDefault("SPEECH_LANGUAGE", "en-GB"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Reporting: ReportingConfig{
			Recipient:          os.Getenv("REPORT_RECIPIENT"),
			CronSchedule:       getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			VocabularySchedule: getenvWithDefault("VOCABULARY_REFRESH_SCHEDULE", "@every 15m"),
			Timezone:           getenvWithDefault("TIMEZONE", "Europe/London"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "stockbook"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getenvWithDefault("SERVICE_NAME", "stockbook"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Server.RateLimit == "" {
		return errors.New("RATE_LIMIT must not be empty")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSheets:
		if c.Sheets.CredentialsPath == "" {
			return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
		}
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendSheets, BackendMemory, c.Store.Backend)
	}

	if c.Sheets.Inventory == "" || c.Sheets.Sales == "" || c.Sheets.Maintenance == "" {
		return errors.New("INVENTORY_SHEET, SALES_SHEET and MAINTENANCE_SHEET must not be empty")
	}

	if c.Store.MatchThreshold < 1 || c.Store.MatchThreshold > 100 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 1 and 100, got %d", c.Store.MatchThreshold)
	}

	switch c.Extraction.Provider {
	case ProviderDeepSeek:
		if c.Extraction.DeepSeekKey == "" {
			return errors.New("DEEPSEEK_API_KEY (or OPENAI_API_KEY) must be provided")
		}
	case ProviderAnthropic:
		if c.Extraction.AnthropicKey == "" {
			return errors.New("ANTHROPIC_API_KEY must be provided")
		}
	default:
		return fmt.Errorf("EXTRACTION_PROVIDER must be %q or %q, got %q", ProviderDeepSeek, ProviderAnthropic, c.Extraction.Provider)
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.VerifyToken == "":
			return errors.New("META_VERIFY_TOKEN must be provided")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}
	if c.Reporting.VocabularySchedule == "" {
		return errors.New("VOCABULARY_REFRESH_SCHEDULE must be provided")
	}
	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	if c.MongoDB.Enabled() && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided with MONGODB_URI")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
