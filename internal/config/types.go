package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `json:"server"`
	Bot           BotConfig           `json:"bot"`
	Notifications NotificationsConfig `json:"notifications"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
	Storage       StorageConfig       `json:"storage"`
	Logging       LoggingConfig       `json:"logging"`
	Delivery      DeliveryConfig      `json:"delivery,omitempty"`
}

// ServerConfig controls the HTTP surface.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr         string `json:"addr,omitempty"` // default ":8080"
	SharedSecret string `json:"shared_secret"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

// BotConfig holds the Bot Framework app credentials. The password is
// usually injected through the environment rather than the file.
type BotConfig struct {
	AppID         string `json:"app_id"`
	AppPassword   string `json:"app_password,omitempty"`
	TokenEndpoint string `json:"token_endpoint,omitempty"`
}

// NotificationsConfig tunes the reminder pipeline.
type NotificationsConfig struct {
	// DaysInAdvance is how far ahead of the due date owners get their
	// preview. Default 3.
	DaysInAdvance int `json:"days_in_advance,omitempty"`
	// MinProcessingHours withholds previews for occurrences due sooner
	// than this, so owners aren't asked to skip something mid-send.
	// Default 24.
	MinProcessingHours int `json:"min_processing_hours,omitempty"`
	// TimeToPost is the local wall-clock send time, "HH:MM". Default "10:00".
	TimeToPost string `json:"time_to_post,omitempty"`
	// MaxBatch caps how many celebrations share one carousel. Default 6.
	MaxBatch int `json:"max_batch,omitempty"`

	// BaseURL prefixes card images; ManifestAppID builds tab deep links.
	BaseURL       string `json:"base_url,omitempty"`
	ManifestAppID string `json:"manifest_app_id,omitempty"`
}

// SchedulerConfig controls the internal cron triggers. The specs are
// standard cron expressions; empty means the built-in defaults.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`

	PreviewSpec string `json:"preview_spec,omitempty"`
	EventSpec   string `json:"event_spec,omitempty"`
	RetrySpec   string `json:"retry_spec,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./celebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DeliveryConfig tunes the outbound send path.
type DeliveryConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// Validate rejects configs that would misbehave at runtime. It is wired
// into the watcher so a bad edit never replaces a good config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.AppID) == "" {
		return fmt.Errorf("bot.app_id is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}

	for _, f := range []struct{ path, raw string }{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if c.Notifications.DaysInAdvance < 0 {
		return fmt.Errorf("notifications.days_in_advance must be >= 0")
	}
	if c.Notifications.MinProcessingHours < 0 {
		return fmt.Errorf("notifications.min_processing_hours must be >= 0")
	}
	if c.Notifications.MaxBatch < 0 {
		return fmt.Errorf("notifications.max_batch must be >= 0")
	}
	if tp := strings.TrimSpace(c.Notifications.TimeToPost); tp != "" {
		if _, err := time.Parse("15:04", tp); err != nil {
			return fmt.Errorf("notifications.time_to_post: want HH:MM, got %q", tp)
		}
	}

	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: unknown zone %q", tz)
		}
	}

	if c.Delivery.RatePerSec < 0 {
		return fmt.Errorf("delivery.rate_per_sec must be >= 0")
	}
	return nil
}
