package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "SYNAPSE"

const minSecretLength = 32

const (
	BackendStore = "store"
	BackendMock  = "mock"
)

type Config struct {
	Address            string        `envconfig:"ADDRESS" default:"0.0.0.0"`
	Port               string        `envconfig:"PORT" default:"3000"`
	BehindNginx        bool          `envconfig:"BEHIND_NGINX" default:"false"`
	TlsCert            string        `envconfig:"TLS_CERT"`
	TlsKey             string        `envconfig:"TLS_KEY"`
	PrintHttpRequests  bool          `envconfig:"PRINT_HTTP_REQUESTS" default:"false"`
	LogToFile          bool          `envconfig:"LOG_TO_FILE" default:"false"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	JwtSecret          string        `envconfig:"JWT_SECRET"`
	PublicURL          string        `envconfig:"PUBLIC_URL"`
	ProjectID          string        `envconfig:"PROJECT_ID"`
	StorageDir         string        `envconfig:"STORAGE_DIR"`
	RedisAddress       string        `envconfig:"REDIS_ADDRESS"`
	SnowflakeWorkerID  string        `envconfig:"SNOWFLAKE_WORKER_ID"`
	SelfContained      bool          `envconfig:"SELF_CONTAINED" default:"true"`
	DbUser             string        `envconfig:"DB_USER"`
	DbPassword         string        `envconfig:"DB_PASSWORD"`
	DbAddress          string        `envconfig:"DB_ADDRESS" default:"localhost"`
	DbPort             string        `envconfig:"DB_PORT" default:"3306"`
	BackendMode        string        `envconfig:"BACKEND_MODE" default:"store"`
	MockDelay          time.Duration `envconfig:"MOCK_DELAY" default:"1500ms"`
	GoogleClientID     string        `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `envconfig:"GOOGLE_CLIENT_SECRET"`

	// WorkerID is SnowflakeWorkerID parsed, 0 when unset.
	WorkerID int64 `ignored:"true"`
	// Warnings collects non fatal findings for the caller to log once a logger exists.
	Warnings []string `ignored:"true"`
}

// Error is returned for every configuration problem. Its message is meant to be shown verbatim.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var sb strings.Builder

	if len(e.Missing) > 0 {
		sb.WriteString("CRITICAL CONFIGURATION ERROR: the server can't start because essential environment variables are missing.\n\n")
	} else {
		sb.WriteString("CRITICAL CONFIGURATION ERROR: the server can't start because some environment variables were rejected.\n\n")
	}

	sb.WriteString("Please take the following steps:\n")
	sb.WriteString("1. Make sure a '.env' file exists next to the binary or export the variables in your shell.\n")
	sb.WriteString("2. Verify that every " + Prefix + "_* variable listed below is present and not a placeholder.\n")
	sb.WriteString("3. Restart the server after changing the environment.\n")

	if len(e.Missing) > 0 {
		sb.WriteString("\nThe following critical environment variables are missing or empty:\n")
		for _, m := range e.Missing {
			sb.WriteString(m)
			sb.WriteString("\n")
		}
	}

	if len(e.Invalid) > 0 {
		sb.WriteString("\nThe following environment variables have invalid values:\n")
		for _, m := range e.Invalid {
			sb.WriteString(m)
			sb.WriteString("\n")
		}
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func envName(key string) string {
	return Prefix + "_" + key
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env file: %w", err)
	}

	return FromEnvironment()
}

func FromEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process(Prefix, &cfg)
	if err != nil {
		return nil, &Error{Invalid: []string{fmt.Sprintf("- %s", err)}}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) Validate() error {
	cfgErr := &Error{}

	critical := []struct {
		key   string
		name  string
		value string
	}{
		{"JWT_SECRET", "token signing key", cfg.JwtSecret},
		{"PUBLIC_URL", "auth domain", cfg.PublicURL},
		{"PROJECT_ID", "project namespace", cfg.ProjectID},
	}

	for _, c := range critical {
		if strings.TrimSpace(c.value) == "" {
			cfgErr.Missing = append(cfgErr.Missing, fmt.Sprintf("- %s (for %s)", envName(c.key), c.name))
		}
	}

	if cfg.JwtSecret != "" && len(cfg.JwtSecret) < minSecretLength {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
			"- %s: invalid key, it must be at least %d bytes long, got %d. Generate one with `openssl rand -base64 48`",
			envName("JWT_SECRET"), minSecretLength, len(cfg.JwtSecret)))
	}

	if cfg.PublicURL != "" {
		u, err := url.Parse(cfg.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
				"- %s: %q is not an absolute http(s) URL", envName("PUBLIC_URL"), cfg.PublicURL))
		}
	}

	if cfg.ProjectID != "" && strings.ContainsAny(cfg.ProjectID, `/\:. `) {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
			"- %s: %q may only contain letters, numbers, '-' and '_'", envName("PROJECT_ID"), cfg.ProjectID))
	}

	switch cfg.BackendMode {
	case BackendStore, BackendMock:
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
			"- %s: %q must be %q or %q", envName("BACKEND_MODE"), cfg.BackendMode, BackendStore, BackendMock))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
			"- %s: %q must be one of debug, info, warn, error", envName("LOG_LEVEL"), cfg.LogLevel))
	}

	if (cfg.TlsCert == "") != (cfg.TlsKey == "") {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
			"- %s and %s must be set together", envName("TLS_CERT"), envName("TLS_KEY")))
	}

	if !cfg.SelfContained && cfg.DbUser == "" {
		cfgErr.Missing = append(cfgErr.Missing, fmt.Sprintf("- %s (required when %s=false)", envName("DB_USER"), envName("SELF_CONTAINED")))
	}

	if cfg.SnowflakeWorkerID != "" {
		workerID, err := strconv.ParseInt(cfg.SnowflakeWorkerID, 10, 64)
		if err != nil || workerID < 0 {
			cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf(
				"- %s: %q is not a non-negative number", envName("SNOWFLAKE_WORKER_ID"), cfg.SnowflakeWorkerID))
		}
		cfg.WorkerID = workerID
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return cfgErr
	}

	cfg.applyOptionalDefaults()
	return nil
}

func (cfg *Config) applyOptionalDefaults() {
	warn := func(key string, what string) {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"optional environment variable %s for %s is missing or empty, this might affect features that use it", envName(key), what))
	}

	if cfg.StorageDir == "" {
		warn("STORAGE_DIR", "file storage")
		cfg.StorageDir = "./public"
	}
	if cfg.SnowflakeWorkerID == "" {
		warn("SNOWFLAKE_WORKER_ID", "id generation")
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET", "Google sign-in")
	}
	if cfg.RedisAddress == "" {
		if !cfg.SelfContained {
			warn("REDIS_ADDRESS", "pub/sub and caching")
		}
		cfg.RedisAddress = "localhost:6379"
	}
}

// GoogleSignIn reports whether both provider credentials are set.
func (cfg *Config) GoogleSignIn() bool {
	return cfg.GoogleClientID != "" && cfg.GoogleClientSecret != ""
}

// GoogleRedirectURL is where the provider sends the browser back after consent.
func (cfg *Config) GoogleRedirectURL() string {
	return strings.TrimSuffix(cfg.PublicURL, "/") + "/api/auth/google/callback"
}

func (cfg *Config) IsHttps() bool {
	return cfg.TlsCert != "" && cfg.TlsKey != ""
}
