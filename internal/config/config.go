// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken = "TELEGRAM_TOKEN"
	KeyBotUsername   = "BOT_USERNAME"
	KeyErrorChatID   = "ERROR_CHAT_ID"
	KeyMongoURI      = "MONGO_URI"
	KeyMongoDB       = "MONGO_DB"
	KeyTextsFile     = "TEXTS_FILE"
	KeyWebhookURL    = "WEBHOOK_URL"
	KeyWebhookSecret = "WEBHOOK_SECRET"
	KeyAppEnv        = "APP_ENV"
	KeyLogLevel      = "LOG_LEVEL"
	KeyHTTPPort      = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv    = EnvProduction
	DefaultLogLevel  = "info"
	DefaultHTTPPort  = 8080
	DefaultTextsFile = "texts.json"

	// Recommended database names by environment.
	DefaultMongoDBProd = "bench_bot"
	DefaultMongoDBDev  = "bench_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotUsername,
		Example:     "BenchLocationBot",
		Required:    true,
		Description: "The bot's own username, used to recognize itself in new-member events.",
		Notes:       "Without the leading @; a leading @ is stripped when present.",
	},
	{
		Key:         KeyErrorChatID,
		Example:     "123456789",
		Required:    true,
		Description: "Chat ID that receives error reports for failed updates.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
		Notes:       "Must use the mongodb:// or mongodb+srv:// scheme.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyTextsFile,
		Example:     DefaultTextsFile,
		Default:     DefaultTextsFile,
		Description: "Path to the localized message texts file.",
	},
	{
		Key:         KeyWebhookURL,
		Example:     "https://bot.example.com/webhook",
		Description: "Public webhook URL; when set the bot serves webhook updates instead of long polling.",
	},
	{
		Key:         KeyWebhookSecret,
		Example:     "s3cret",
		Description: "Optional secret token Telegram echoes back on webhook requests.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/webhook port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	BotUsername   string
	ErrorChatID   int64
	MongoURI      string
	MongoDB       string
	TextsFile     string
	WebhookURL    string
	WebhookSecret string
	AppEnv        string
	LogLevel      string
	HTTPPort      int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		BotUsername:   strings.TrimPrefix(strings.TrimSpace(os.Getenv(KeyBotUsername)), "@"),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       strings.TrimSpace(os.Getenv(KeyMongoDB)),
		TextsFile:     firstNonEmpty(strings.TrimSpace(os.Getenv(KeyTextsFile)), DefaultTextsFile),
		WebhookURL:    strings.TrimSpace(os.Getenv(KeyWebhookURL)),
		WebhookSecret: strings.TrimSpace(os.Getenv(KeyWebhookSecret)),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	if cfg.BotUsername == "" {
		missing = append(missing, KeyBotUsername)
	}

	errorChatRaw := strings.TrimSpace(os.Getenv(KeyErrorChatID))
	if errorChatRaw == "" {
		missing = append(missing, KeyErrorChatID)
	} else {
		errorChatID, parseErr := strconv.ParseInt(errorChatRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyErrorChatID, parseErr)
		}
		cfg.ErrorChatID = errorChatID
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	} else if err := validateMongoURI(cfg.MongoURI); err != nil {
		return Config{}, err
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// UseWebhook reports whether webhook mode is configured.
func (c Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

// FormatRedacted returns a printable configuration summary with secrets masked.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"telegram_token: " + redactToken(cfg.TelegramToken),
		"bot_username: " + cfg.BotUsername,
		"error_chat_id: " + strconv.FormatInt(cfg.ErrorChatID, 10),
		"mongo_uri: " + redactMongoURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"texts_file: " + cfg.TextsFile,
		"webhook_url: " + cfg.WebhookURL,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
	}

	return strings.Join(lines, "\n")
}

func redactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "redacted"
	}

	return token[:4] + "...redacted"
}

// redactMongoURI strips the credentials part of a connection string while
// keeping the host visible for diagnostics.
func redactMongoURI(uri string) string {
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd < 0 {
		return uri
	}

	rest := uri[schemeEnd+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}

	return uri[:schemeEnd+3] + rest[at+1:]
}

func validateMongoURI(uri string) error {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return nil
	}

	return fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
