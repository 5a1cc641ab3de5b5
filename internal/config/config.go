// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from
// config.yaml. Optional handler sections enable their handler when
// present: transmission for torrents, podcast for feed ingestion,
// shorts for short-video delivery. The health check is always on.
type Config struct {
	StatePath string `yaml:"state_path"`
	TmpDir    string `yaml:"tmp_dir"`

	Poll      PollConfig      `yaml:"poll"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Journal   JournalConfig   `yaml:"journal"`

	Transmission *TransmissionConfig `yaml:"transmission"`
	Podcast      *PodcastConfig      `yaml:"podcast"`
	Shorts       *ShortsConfig       `yaml:"shorts"`
	Digest       *DigestConfig       `yaml:"digest"`
	Status       *StatusConfig       `yaml:"status"`
}

// PollConfig tunes the long-poll loop.
type PollConfig struct {
	TimeoutSec    int `yaml:"timeout_sec"`
	RetryDelaySec int `yaml:"retry_delay_sec"`
}

// ExtractorConfig holds settings for the yt-dlp subprocess tool.
type ExtractorConfig struct {
	Binary  string `yaml:"binary"`
	Proxy   string `yaml:"proxy"`
	Cookies string `yaml:"cookies"`
}

// JournalConfig locates the outcome database.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// TransmissionConfig points at the torrent daemon's RPC endpoint.
type TransmissionConfig struct {
	Address string `yaml:"address"`
}

// PodcastConfig holds the object storage the podcast feeds live in.
type PodcastConfig struct {
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig is an S3-compatible bucket location.
type StorageConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
}

// ShortsConfig enables the short-video handler. It has no settings of
// its own; presence of the section (`shorts: {}`) turns the handler on.
type ShortsConfig struct{}

// DigestConfig schedules the daily activity summary.
type DigestConfig struct {
	Cron   string `yaml:"cron"`
	ChatID int64  `yaml:"chat_id"`
}

// StatusConfig enables the HTTP status endpoint.
type StatusConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.StatePath == "" {
		c.StatePath = "switchboard.state"
	}
	if c.Poll.TimeoutSec == 0 {
		c.Poll.TimeoutSec = 60
	}
	if c.Poll.RetryDelaySec == 0 {
		c.Poll.RetryDelaySec = 1
	}
	if c.Extractor.Binary == "" {
		c.Extractor.Binary = "yt-dlp"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "switchboard.db"
	}
	if c.Podcast != nil && c.Podcast.Storage.Region == "" {
		c.Podcast.Storage.Region = "us-east-1"
	}
	if c.Status != nil && c.Status.Port == 0 {
		c.Status.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Transmission != nil && c.Transmission.Address == "" {
		errs = append(errs, "transmission.address is required")
	}
	if c.Podcast != nil {
		if c.Podcast.Storage.Endpoint == "" {
			errs = append(errs, "podcast.storage.endpoint is required")
		}
		if c.Podcast.Storage.Bucket == "" {
			errs = append(errs, "podcast.storage.bucket is required")
		}
	}
	if c.Shorts != nil {
		if c.Extractor.Proxy == "" {
			errs = append(errs, "extractor.proxy is required when the shorts section is enabled")
		}
		if c.Extractor.Cookies == "" {
			errs = append(errs, "extractor.cookies is required when the shorts section is enabled")
		}
	}
	if c.Digest != nil {
		if c.Digest.Cron == "" {
			errs = append(errs, "digest.cron is required")
		}
		if c.Digest.ChatID == 0 {
			errs = append(errs, "digest.chat_id is required")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
