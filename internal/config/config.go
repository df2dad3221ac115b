// Package config loads the ledger service configuration from environment
// variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the service configuration.
type Config struct {
	DatabaseURL string
	Port        int
	Sheets      SheetsConfig
	OutboxPath  string
	CatalogPath string
	Timezone    string
	// ResyncInterval is how often the server drains the mirror outbox.
	// Zero disables the background resync.
	ResyncInterval time.Duration
	Debug          bool
}

// SheetsConfig configures the spreadsheet mirror. An empty SpreadsheetID
// means rows are only logged.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	Endpoint        string
	OperationsRange string
	BalancesSheet   string
}

// Load reads configuration from the environment. It loads .env from the
// current directory if present, or the file named by envPath.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	interval, err := parseDurationEnv("RESYNC_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL: getEnvOrDefault("DATABASE_URL", "file:ledger.db?_pragma=foreign_keys(1)"),
		Port:        port,
		Sheets: SheetsConfig{
			SpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
			CredentialsFile: os.Getenv("SHEETS_CREDENTIALS_FILE"),
			Endpoint:        os.Getenv("SHEETS_ENDPOINT"),
			OperationsRange: getEnvOrDefault("SHEETS_OPERATIONS_RANGE", "Operations!A:M"),
			BalancesSheet:   getEnvOrDefault("SHEETS_BALANCES_SHEET", "Balances"),
		},
		OutboxPath:     getEnvOrDefault("OUTBOX_PATH", "mirror-outbox.db"),
		CatalogPath:    os.Getenv("CATALOG_PATH"),
		Timezone:       getEnvOrDefault("TIMEZONE", "Europe/Moscow"),
		ResyncInterval: interval,
		Debug:          os.Getenv("DEBUG") == "true",
	}, nil
}

// Validate checks that the named settings are set. Names are the
// environment variable keys.
func (c *Config) Validate(required ...string) error {
	var missing []string
	for _, key := range required {
		var value string
		switch key {
		case "DATABASE_URL":
			value = c.DatabaseURL
		case "SHEETS_SPREADSHEET_ID":
			value = c.Sheets.SpreadsheetID
		case "SHEETS_CREDENTIALS_FILE":
			// An emulator endpoint needs no credentials.
			value = c.Sheets.CredentialsFile + c.Sheets.Endpoint
		case "OUTBOX_PATH":
			value = c.OutboxPath
		case "CATALOG_PATH":
			value = c.CatalogPath
		case "TIMEZONE":
			value = c.Timezone
		}
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s\nPlease check your .env file or environment variables", strings.Join(missing, ", "))
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SheetsEnabled reports whether a spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool { return c.Sheets.SpreadsheetID != "" }

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return parsed, nil
}
