package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFile is the optional runtime settings file looked up in the
// working directory.
const SettingsFile = "newscorpus.yaml"

// Settings holds runtime options that are not part of the crawl config
// document: where the corpus lives, how to fetch, and how to log.
type Settings struct {
	AssetsPath   string        `yaml:"assets_path"`
	LedgerDSN    string        `yaml:"ledger_dsn"`
	Concurrency  int           `yaml:"concurrency"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	UserAgent    string        `yaml:"user_agent"`
	LogLevel     string        `yaml:"log_level"`
	FailFast     bool          `yaml:"fail_fast"`
	MetricsFile  string        `yaml:"metrics_file"`
}

// DefaultSettings returns the settings used when neither the settings file
// nor the environment says otherwise.
func DefaultSettings() Settings {
	return Settings{
		AssetsPath:   "tmp/articles",
		LedgerDSN:    "ledger.db",
		Concurrency:  1,
		FetchTimeout: 10 * time.Second,
		UserAgent:    "newscorpus/1.0 (news corpus builder)",
		LogLevel:     "info",
	}
}

// LoadSettings starts from DefaultSettings, overlays the YAML file at path if
// it exists, then overlays NEWSCORPUS_* environment variables. A missing file
// is not an error; a file that cannot be parsed is.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only
	case err != nil:
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}

	settings.AssetsPath = getEnv("NEWSCORPUS_ASSETS", settings.AssetsPath)
	settings.LedgerDSN = getEnv("NEWSCORPUS_LEDGER_DSN", settings.LedgerDSN)
	settings.Concurrency = getEnvInt("NEWSCORPUS_CONCURRENCY", settings.Concurrency)
	settings.FetchTimeout = getEnvDuration("NEWSCORPUS_FETCH_TIMEOUT", settings.FetchTimeout)
	settings.UserAgent = getEnv("NEWSCORPUS_USER_AGENT", settings.UserAgent)
	settings.LogLevel = getEnv("NEWSCORPUS_LOG_LEVEL", settings.LogLevel)
	settings.FailFast = getEnvBool("NEWSCORPUS_FAIL_FAST", settings.FailFast)
	settings.MetricsFile = getEnv("NEWSCORPUS_METRICS_FILE", settings.MetricsFile)

	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}

	return settings, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an int from environment variable or returns default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
