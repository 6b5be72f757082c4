package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var DefaultEnvConfig *EnvConfig

type EnvConfig struct {
	// console server config
	APP_PORT          string
	UI_SETTLE_TIMEOUT time.Duration
	EVENT_QUEUE_SIZE  int
	METRICS_ENABLED   bool
	// remote employee service config
	EMPLOYEE_API_URL     string
	EMPLOYEE_API_TIMEOUT time.Duration
	// filter selector options
	FILTER_DEPARTMENTS []string
	FILTER_ROLES       []string
	// export config
	EXPORT_LAYOUT_PATH string
	// logger config
	LOG_FILE_PATH string
	LOG_LEVEL     string
}

// LoadEnvConfig reads .env (when present) and the process environment into DefaultEnvConfig.
func LoadEnvConfig(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := &EnvConfig{
		APP_PORT:             getEnvString("APP_PORT", "8080"),
		UI_SETTLE_TIMEOUT:    getEnvDuration("UI_SETTLE_TIMEOUT", 5*time.Second),
		EVENT_QUEUE_SIZE:     getEnvInt("EVENT_QUEUE_SIZE", 64),
		METRICS_ENABLED:      getEnvBool("METRICS_ENABLED", true),
		EMPLOYEE_API_URL:     getEnvString("EMPLOYEE_API_URL", "http://localhost:8000/api/employees/"),
		EMPLOYEE_API_TIMEOUT: getEnvDuration("EMPLOYEE_API_TIMEOUT", 0),
		FILTER_DEPARTMENTS:   getEnvList("FILTER_DEPARTMENTS", []string{"Engineering", "HR", "Sales", "Marketing", "Finance"}),
		FILTER_ROLES:         getEnvList("FILTER_ROLES", []string{"Developer", "Manager", "Analyst", "Designer", "Intern"}),
		EXPORT_LAYOUT_PATH:   getEnvString("EXPORT_LAYOUT_PATH", ""),
		LOG_FILE_PATH:        getEnvString("LOG_FILE_PATH", ""),
		LOG_LEVEL:            getEnvString("LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	DefaultEnvConfig = cfg
	return nil
}

// Validate checks the values that would otherwise fail late at request time.
func (c *EnvConfig) Validate() error {
	u, err := url.Parse(c.EMPLOYEE_API_URL)
	if err != nil {
		return fmt.Errorf("invalid EMPLOYEE_API_URL %q: %w", c.EMPLOYEE_API_URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid EMPLOYEE_API_URL %q: scheme must be http or https", c.EMPLOYEE_API_URL)
	}
	if port, err := strconv.Atoi(c.APP_PORT); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid APP_PORT %q: must be between 1 and 65535", c.APP_PORT)
	}
	if c.EVENT_QUEUE_SIZE < 0 {
		return fmt.Errorf("invalid EVENT_QUEUE_SIZE %d: must not be negative", c.EVENT_QUEUE_SIZE)
	}
	if c.EMPLOYEE_API_TIMEOUT < 0 {
		return fmt.Errorf("invalid EMPLOYEE_API_TIMEOUT %s: must not be negative", c.EMPLOYEE_API_TIMEOUT)
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blank items.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
