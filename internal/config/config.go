// Package config provides hierarchical configuration loading for wikirelay.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the relay service.
// It is loaded once at startup and read-only thereafter.
type Config struct {
	Server      Server      `yaml:"server"`
	NATS        NATS        `yaml:"nats"`
	Logging     Logging     `yaml:"logging"`
	Webhook     Webhook     `yaml:"webhook"`
	Suppression Suppression `yaml:"suppression"`
	Format      Format      `yaml:"format"`
	Dispatch    Dispatch    `yaml:"dispatch"`
	Ingest      Ingest      `yaml:"ingest"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port string `yaml:"port"`
}

// NATS holds the optional event bus configuration.
// An empty URL disables the NATS ingest adapter.
type NATS struct {
	URL string `yaml:"url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Webhook holds outbound delivery configuration.
type Webhook struct {
	// URLs accepts either a single YAML string or a sequence of strings.
	URLs           URLList       `yaml:"urls"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	QueueSize      int           `yaml:"queue_size"`
}

// Suppression holds the drop lists and global edit gates.
// The list fields are lenient: a malformed value leaves that dimension
// fully open instead of failing the load.
type Suppression struct {
	Hooks      StringList `yaml:"hooks"`
	Namespaces IntList    `yaml:"namespaces"`
	Users      StringList `yaml:"users"`
	NoBots     bool       `yaml:"no_bots"`
	NoMinor    bool       `yaml:"no_minor"`
	NoNull     bool       `yaml:"no_null"`
}

// Format holds text formatter configuration.
type Format struct {
	// MaxChars caps user-supplied free text; 0 disables truncation.
	MaxChars int `yaml:"max_chars"`
	// MaxCharsUsernames caps actor display names; 0 disables truncation.
	MaxCharsUsernames int `yaml:"max_chars_usernames"`
	// SuppressPreviews wraps link URLs in angle brackets so the chat
	// client does not unfurl them.
	SuppressPreviews bool `yaml:"suppress_previews"`
	// BlockTimeFormat is the Go layout used for parseable block expiries.
	BlockTimeFormat string `yaml:"block_time_format"`
}

// Dispatch holds message decoration configuration.
type Dispatch struct {
	UseEmojis        bool              `yaml:"use_emojis"`
	Emojis           map[string]string `yaml:"emojis"`
	PrependTimestamp bool              `yaml:"prepend_timestamp"`
	// TimestampFormat is a Go time layout; timestamps are rendered in UTC.
	TimestampFormat string `yaml:"timestamp_format"`
	PrependSiteName bool   `yaml:"prepend_site_name"`
	SiteName        string `yaml:"site_name"`
	// Decorations is the ordered decorator list. Each named decorator
	// prepends its fragment, so the final message reads them in reverse
	// list order. Valid names: emoji, timestamp, sitename.
	Decorations []string `yaml:"decorations"`
}

// Ingest holds the inbound HTTP surface configuration.
type Ingest struct {
	// HMACSecret enables signature verification on /api/v1/events when set.
	HMACSecret string  `yaml:"hmac_secret"`
	RateRPS    float64 `yaml:"rate_rps"`
	RateBurst  int     `yaml:"rate_burst"`
	BodyLimit  int64   `yaml:"body_limit"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "8080",
		},
		Logging: Logging{
			Level:   "info",
			Service: "wikirelay",
		},
		Webhook: Webhook{
			ConnectTimeout: 10 * time.Second,
			RequestTimeout: 10 * time.Second,
			QueueSize:      256,
		},
		Format: Format{
			MaxChars:          250,
			MaxCharsUsernames: 25,
			BlockTimeFormat:   "2006-01-02 15:04:05",
		},
		Dispatch: Dispatch{
			TimestampFormat: "2006-01-02 15:04:05",
			Decorations:     []string{"emoji", "timestamp", "sitename"},
		},
		Ingest: Ingest{
			RateRPS:   25,
			RateBurst: 50,
			BodyLimit: 64 * 1024,
		},
	}
}

// StringList is a lenient YAML string sequence. A value of the wrong shape
// marks the list malformed instead of failing the unmarshal; the consumer
// decides what "malformed" means (for the suppression lists it means the
// dimension is fully open).
type StringList struct {
	Values    []string
	Malformed bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	l.Values, l.Malformed = nil, false
	if value.Kind != yaml.SequenceNode {
		l.Malformed = true
		return nil
	}
	if err := value.Decode(&l.Values); err != nil {
		l.Values = nil
		l.Malformed = true
	}
	return nil
}

// IntList is the integer counterpart of StringList.
type IntList struct {
	Values    []int
	Malformed bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *IntList) UnmarshalYAML(value *yaml.Node) error {
	l.Values, l.Malformed = nil, false
	if value.Kind != yaml.SequenceNode {
		l.Malformed = true
		return nil
	}
	if err := value.Decode(&l.Values); err != nil {
		l.Values = nil
		l.Malformed = true
	}
	return nil
}

// URLList accepts either a single scalar URL or a sequence of URLs.
// Any other shape marks it malformed, which disables delivery entirely.
type URLList struct {
	Values    []string
	Malformed bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *URLList) UnmarshalYAML(value *yaml.Node) error {
	l.Values, l.Malformed = nil, false
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			l.Malformed = true
			return nil
		}
		if s != "" {
			l.Values = []string{s}
		}
	case yaml.SequenceNode:
		if err := value.Decode(&l.Values); err != nil {
			l.Values = nil
			l.Malformed = true
		}
	default:
		l.Malformed = true
	}
	return nil
}
