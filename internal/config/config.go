package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port                 string `validate:"required,numeric"`
	DatabaseURL          string
	SQLitePath           string         `validate:"required_without=DatabaseURL"`
	SecretKey            string         `validate:"required,min=8"`
	TimezoneName         string         `validate:"required"`
	LocalTimezone        *time.Location `validate:"required"`
	LogLevel             string         `validate:"oneof=debug info warn error"`
	OpenAIAPIKey         string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioWebhookURL     string `validate:"omitempty,url"`
	WeatherAPIKey        string
	DeepLAPIKey          string
	StaticDir            string
	SpeechCommand        string
	EnableDebugRoutes    bool
	ReminderPollInterval time.Duration `validate:"gt=0"`
	SchedulerTick        time.Duration `validate:"gte=1000000000"`
	HistorySize          int           `validate:"gte=1"`
	Content              Content
}

// Content holds the user-facing lists that can be overridden from a YAML file.
type Content struct {
	Tips      []string          `yaml:"tips" validate:"min=3,dive,required"`
	Languages map[string]string `yaml:"languages" validate:"min=1"`
}

// DefaultContent returns the built-in tips and translation languages.
func DefaultContent() Content {
	return Content{
		Tips: []string{
			"Ask me: What's the weather like today?",
			"Try saying: Search Wikipedia for AI",
			"Say: Play music",
			"Say: What time is it?",
			"Try: Calculate 2 + 2",
			"Say: Set a reminder",
			"Try: Translate hello to Spanish",
		},
		Languages: map[string]string{
			"hindi":      "hi",
			"marathi":    "mr",
			"gujarati":   "gu",
			"bengali":    "bn",
			"tamil":      "ta",
			"telugu":     "te",
			"kannada":    "kn",
			"malayalam":  "ml",
			"punjabi":    "pa",
			"urdu":       "ur",
			"spanish":    "es",
			"french":     "fr",
			"german":     "de",
			"italian":    "it",
			"portuguese": "pt",
			"russian":    "ru",
			"japanese":   "ja",
			"korean":     "ko",
			"chinese":    "zh",
		},
	}
}

// Load reads configuration values and prepares defaults where applicable.
func Load() (*Config, error) {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Asia/Kolkata")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to UTC: %v", timezoneName, err)
		timezoneName, location = "UTC", time.UTC
	}

	content, err := LoadContent(getenvDefault("CONTENT_FILE", "assistant.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 getenvDefault("PORT", "5000"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SQLitePath:           getenvDefault("SQLITE_PATH", "users.db"),
		SecretKey:            getenvDefault("SECRET_KEY", "your-secret-key-here"),
		TimezoneName:         timezoneName,
		LocalTimezone:        location,
		LogLevel:             strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		TwilioWebhookURL:     os.Getenv("TWILIO_WEBHOOK_URL"),
		WeatherAPIKey:        os.Getenv("OPENWEATHER_API_KEY"),
		DeepLAPIKey:          os.Getenv("DEEPL_API_KEY"),
		StaticDir:            getenvDefault("STATIC_DIR", "."),
		SpeechCommand:        getenvDefault("SPEECH_COMMAND", "espeak"),
		EnableDebugRoutes:    ParseBoolEnv("ENABLE_DEBUG_ROUTES", false),
		ReminderPollInterval: ParseDurationEnv("REMINDER_POLL_INTERVAL", time.Second),
		SchedulerTick:        ParseDurationEnv("SCHEDULER_TICK", time.Second),
		HistorySize:          ParseIntEnv("HISTORY_SIZE", 5),
		Content:              content,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TwilioEnabled reports whether WhatsApp credentials are present.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppNumber != ""
}

// LoadContent reads tips and languages from a YAML file. A missing file yields
// the defaults; lists absent from the file keep their default values.
func LoadContent(path string) (Content, error) {
	content := DefaultContent()
	if path == "" {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return content, nil
		}
		return Content{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var overlay Content
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Content{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(overlay.Tips) > 0 {
		content.Tips = overlay.Tips
	}
	if len(overlay.Languages) > 0 {
		content.Languages = make(map[string]string, len(overlay.Languages))
		for name, code := range overlay.Languages {
			content.Languages[strings.ToLower(name)] = code
		}
	}
	return content, nil
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseDurationEnv returns the duration value for an environment variable or the provided default.
func ParseDurationEnv(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as duration: %v", key, value, err)
		return def
	}
	return parsed
}

// ParseBoolEnv returns the boolean value for an environment variable or the provided default.
func ParseBoolEnv(key string, def bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as bool: %v", key, value, err)
		return def
	}
	return parsed
}
