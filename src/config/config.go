package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	placeholderClientID = "your-plaid-client-id"
	placeholderSecret   = "your-plaid-sandbox-secret"

	defaultSQLiteFile = "transactions.db"
)

type Config struct {
	// Plaid
	PlaidClientID       string
	PlaidSecret         string
	PlaidEnv            string
	PlaidInstitutionID  string
	PlaidRequestTimeout time.Duration

	// Fetch
	LookbackDays     int
	PageSize         int
	RetryMaxAttempts int
	RetryDelay       time.Duration

	// Processing
	AmountSignConvention string

	// Files
	DataDir string

	// Durable store
	StoreBackend string
	SQLiteDBPath string
	DatabaseURL  string

	// Notifications
	AMQPURL      string
	AMQPExchange string

	// Report server
	Port               string
	JWTSecret          string
	ReportPasswordHash string
	CORSAllowedOrigins []string

	LogLevel string

	// parseProblems holds settings that were present but could not be parsed.
	parseProblems []string
}

// ConfigError lists every problem found while validating the configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n- %s", strings.Join(e.Problems, "\n- "))
}

func Load() *Config {
	// Load .env file if present
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", ".")
	var problems []string

	return &Config{
		PlaidClientID:       getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:         getEnv("PLAID_SECRET", ""),
		PlaidEnv:            strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
		PlaidInstitutionID:  getEnv("PLAID_INSTITUTION_ID", "ins_109512"),
		PlaidRequestTimeout: getEnvDuration("PLAID_REQUEST_TIMEOUT", 30*time.Second, &problems),

		LookbackDays:     getEnvInt("LOOKBACK_DAYS", 30, &problems),
		PageSize:         getEnvInt("PAGE_SIZE", 500, &problems),
		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5, &problems),
		RetryDelay:       getEnvDuration("RETRY_DELAY", 10*time.Second, &problems),

		AmountSignConvention: getEnv("AMOUNT_SIGN_CONVENTION", "outflow_positive"),

		DataDir: dataDir,

		StoreBackend: getEnv("STORE_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", filepath.Join(dataDir, defaultSQLiteFile)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendlens"),

		Port:               getEnv("PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		ReportPasswordHash: getEnv("REPORT_PASSWORD_HASH", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		parseProblems: problems,
	}
}

// SetDataDir moves the data directory. A SQLite path that was derived from the
// old directory follows it.
func (c *Config) SetDataDir(dir string) {
	if dir == c.DataDir {
		return
	}
	if c.SQLiteDBPath == filepath.Join(c.DataDir, defaultSQLiteFile) {
		c.SQLiteDBPath = filepath.Join(dir, defaultSQLiteFile)
	}
	c.DataDir = dir
}

// ValidatePlaid checks only what the fetch stage needs. It runs before any
// aggregator call is made.
func (c *Config) ValidatePlaid() error {
	var problems []string

	if c.PlaidClientID == "" || c.PlaidClientID == placeholderClientID {
		problems = append(problems, "PLAID_CLIENT_ID is missing or still the placeholder value")
	}
	if c.PlaidSecret == "" || c.PlaidSecret == placeholderSecret {
		problems = append(problems, "PLAID_SECRET is missing or still the placeholder value")
	}
	if c.PlaidEnv != "sandbox" && c.PlaidEnv != "production" {
		problems = append(problems, fmt.Sprintf("invalid PLAID_ENV '%s': must be 'sandbox' or 'production'", c.PlaidEnv))
	}
	if c.PlaidInstitutionID == "" {
		problems = append(problems, "PLAID_INSTITUTION_ID cannot be empty")
	}
	if c.PlaidRequestTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid PLAID_REQUEST_TIMEOUT %v: must be positive", c.PlaidRequestTimeout))
	}
	if c.LookbackDays < 1 {
		problems = append(problems, fmt.Sprintf("invalid LOOKBACK_DAYS %d: must be at least 1", c.LookbackDays))
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		problems = append(problems, fmt.Sprintf("invalid PAGE_SIZE %d: must be between 1 and 500", c.PageSize))
	}
	if c.RetryMaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("invalid RETRY_MAX_ATTEMPTS %d: must be at least 1", c.RetryMaxAttempts))
	}
	if c.RetryDelay < 0 {
		problems = append(problems, fmt.Sprintf("invalid RETRY_DELAY %v: must not be negative", c.RetryDelay))
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Validate checks the settings shared by every stage, including any value
// Load could not parse.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.parseProblems...)

	if c.DataDir == "" {
		problems = append(problems, "DATA_DIR cannot be empty")
	}

	switch c.AmountSignConvention {
	case "outflow_positive", "outflow_negative":
	default:
		problems = append(problems, fmt.Sprintf("invalid AMOUNT_SIGN_CONVENTION '%s': must be 'outflow_positive' or 'outflow_negative'", c.AmountSignConvention))
	}

	switch c.StoreBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when using postgres backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid STORE_BACKEND '%s': must be one of [sqlite postgres]", c.StoreBackend))
	}

	if c.AMQPURL != "" && c.AMQPExchange == "" {
		problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is provided")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// ValidateServer checks the report server settings.
func (c *Config) ValidateServer() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required to serve reports")
	}
	if c.ReportPasswordHash == "" {
		problems = append(problems, "REPORT_PASSWORD_HASH is required to serve reports")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getEnvInt returns fallback when key is unset. A value that is set but not an
// integer is recorded in problems and also yields fallback.
func getEnvInt(key string, fallback int, problems *[]string) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid %s '%s': must be a whole number", key, value))
		return fallback
	}
	return i
}

func getEnvDuration(key string, fallback time.Duration, problems *[]string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("invalid %s '%s': must be a duration such as 10s or 1m", key, value))
		return fallback
	}
	return d
}
