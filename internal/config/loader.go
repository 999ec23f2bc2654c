package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "wikirelay.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "WIKIRELAY_PORT")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "WIKIRELAY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "WIKIRELAY_LOG_SERVICE")

	setURLList(&cfg.Webhook.URLs, "WIKIRELAY_WEBHOOK_URLS")
	setDuration(&cfg.Webhook.ConnectTimeout, "WIKIRELAY_CONNECT_TIMEOUT")
	setDuration(&cfg.Webhook.RequestTimeout, "WIKIRELAY_REQUEST_TIMEOUT")
	setInt(&cfg.Webhook.QueueSize, "WIKIRELAY_QUEUE_SIZE")

	setStringList(&cfg.Suppression.Hooks, "WIKIRELAY_DISABLED_HOOKS")
	setIntList(&cfg.Suppression.Namespaces, "WIKIRELAY_DISABLED_NAMESPACES")
	setStringList(&cfg.Suppression.Users, "WIKIRELAY_DISABLED_USERS")
	setBool(&cfg.Suppression.NoBots, "WIKIRELAY_NO_BOTS")
	setBool(&cfg.Suppression.NoMinor, "WIKIRELAY_NO_MINOR")
	setBool(&cfg.Suppression.NoNull, "WIKIRELAY_NO_NULL")

	setInt(&cfg.Format.MaxChars, "WIKIRELAY_MAX_CHARS")
	setInt(&cfg.Format.MaxCharsUsernames, "WIKIRELAY_MAX_CHARS_USERNAMES")
	setBool(&cfg.Format.SuppressPreviews, "WIKIRELAY_SUPPRESS_PREVIEWS")

	setBool(&cfg.Dispatch.UseEmojis, "WIKIRELAY_USE_EMOJIS")
	setBool(&cfg.Dispatch.PrependTimestamp, "WIKIRELAY_PREPEND_TIMESTAMP")
	setString(&cfg.Dispatch.TimestampFormat, "WIKIRELAY_TIMESTAMP_FORMAT")
	setBool(&cfg.Dispatch.PrependSiteName, "WIKIRELAY_PREPEND_SITE_NAME")
	setString(&cfg.Dispatch.SiteName, "WIKIRELAY_SITE_NAME")

	setString(&cfg.Ingest.HMACSecret, "WIKIRELAY_HMAC_SECRET")
	setFloat64(&cfg.Ingest.RateRPS, "WIKIRELAY_RATE_RPS")
	setInt(&cfg.Ingest.RateBurst, "WIKIRELAY_RATE_BURST")
	setInt64(&cfg.Ingest.BodyLimit, "WIKIRELAY_BODY_LIMIT")
}

// validate checks hard requirements. Suppression lists and webhook URLs
// are deliberately NOT validated here: a malformed or empty value there
// degrades to the permissive behavior at construction time instead of
// failing the process.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Webhook.ConnectTimeout <= 0 {
		return errors.New("webhook.connect_timeout must be > 0")
	}
	if cfg.Webhook.RequestTimeout <= 0 {
		return errors.New("webhook.request_timeout must be > 0")
	}
	if cfg.Webhook.QueueSize < 1 {
		return errors.New("webhook.queue_size must be >= 1")
	}
	if cfg.Ingest.RateBurst < 1 {
		return errors.New("ingest.rate_burst must be >= 1")
	}
	if cfg.Ingest.BodyLimit < 1 {
		return errors.New("ingest.body_limit must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setStringList overlays a comma-separated env value onto a StringList.
func setStringList(dst *StringList, key string) {
	if v := os.Getenv(key); v != "" {
		dst.Values = splitCSV(v)
		dst.Malformed = false
	}
}

// setIntList overlays a comma-separated env value onto an IntList.
// A non-integer entry marks the list malformed, mirroring the YAML rule.
func setIntList(dst *IntList, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []int
	for _, part := range splitCSV(v) {
		n, err := strconv.Atoi(part)
		if err != nil {
			dst.Values = nil
			dst.Malformed = true
			return
		}
		out = append(out, n)
	}
	dst.Values = out
	dst.Malformed = false
}

func setURLList(dst *URLList, key string) {
	if v := os.Getenv(key); v != "" {
		dst.Values = splitCSV(v)
		dst.Malformed = false
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
