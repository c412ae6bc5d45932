package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server configuration
	Port      int    `json:"port"`
	Host      string `json:"host"`
	AppScheme string `json:"app_scheme"`

	// Notion OAuth application
	NotionClientID     string `json:"notion_client_id"`
	NotionClientSecret string `json:"notion_client_secret"`
	NotionRedirectURI  string `json:"notion_redirect_uri"`

	// Server-held secrets
	EncryptionKey string `json:"encryption_key"`
	SessionSecret string `json:"session_secret"`

	// Logging configuration
	LogLevel string `json:"log_level"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, AppScheme: %s, NotionClientID: %s, NotionClientSecret: [REDACTED], NotionRedirectURI: %s, EncryptionKey: [REDACTED], SessionSecret: [REDACTED], LogLevel: %s}",
		c.Port, c.Host, c.AppScheme, c.NotionClientID, c.NotionRedirectURI, c.LogLevel)
}

// LoadConfig reads the configuration from environment variables. The service
// fails closed: every secret it needs to operate must be present, otherwise
// an error naming the missing variables is returned and nothing starts.
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")

	config := &Config{
		Port:               GetEnvAsType("APP_PORT", 8080),
		Host:               GetEnvWithDefault("APP_HOST", "localhost"),
		AppScheme:          GetEnvWithDefault("APP_SCHEME", "notionmemo"),
		NotionClientID:     os.Getenv("NOTION_CLIENT_ID"),
		NotionClientSecret: os.Getenv("NOTION_CLIENT_SECRET"),
		NotionRedirectURI:  os.Getenv("NOTION_REDIRECT_URI"),
		EncryptionKey:      os.Getenv("ENCRYPTION_KEY"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		LogLevel:           GetEnvWithDefault("LOG_LEVEL", "info"),
	}

	var missing []string
	for name, value := range map[string]string{
		"NOTION_CLIENT_ID":     config.NotionClientID,
		"NOTION_CLIENT_SECRET": config.NotionClientSecret,
		"NOTION_REDIRECT_URI":  config.NotionRedirectURI,
		"ENCRYPTION_KEY":       config.EncryptionKey,
		"SESSION_SECRET":       config.SessionSecret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		// Map iteration order is random; keep the message deterministic
		sort.Strings(missing)
		return nil, fmt.Errorf("required environment variables missing: %s", strings.Join(missing, ", "))
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Warnf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
