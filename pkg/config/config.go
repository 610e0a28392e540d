package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mercurybridge/mercury/pkg/logger"
)

type Config struct {
	Messenger MessengerConfig `yaml:"messenger"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type MessengerConfig struct {
	// SessionPath points at the persisted session state managed by the
	// client collaborator.
	SessionPath string `yaml:"session_path" env:"MERCURY_MESSENGER_SESSION_PATH"`

	// UnwrapProxiedLinks rewrites platform-proxied redirect URLs to their
	// true destination.
	UnwrapProxiedLinks bool `yaml:"unwrap_proxied_links" env:"MERCURY_MESSENGER_UNWRAP_PROXIED_LINKS"`

	// SendLinkWithDescription includes the link description when composing
	// outbound link text.
	SendLinkWithDescription bool `yaml:"send_link_with_description" env:"MERCURY_MESSENGER_SEND_LINK_WITH_DESCRIPTION"`

	ShowPendingThreads  bool `yaml:"show_pending_threads" env:"MERCURY_MESSENGER_SHOW_PENDING_THREADS"`
	ShowArchivedThreads bool `yaml:"show_archived_threads" env:"MERCURY_MESSENGER_SHOW_ARCHIVED_THREADS"`

	// ArchiveAttachments copies materialized inbound binaries into the
	// archive store under ArchivePath.
	ArchiveAttachments bool   `yaml:"archive_attachments" env:"MERCURY_MESSENGER_ARCHIVE_ATTACHMENTS"`
	ArchivePath        string `yaml:"archive_path" env:"MERCURY_MESSENGER_ARCHIVE_PATH"`

	// EchoCapacity bounds the set of self-sent message ids kept for echo
	// suppression.
	EchoCapacity int `yaml:"echo_capacity" env:"MERCURY_MESSENGER_ECHO_CAPACITY"`
}

type LoggingConfig struct {
	FileEnabled     bool   `yaml:"file_enabled" env:"MERCURY_LOGGING_FILE_ENABLED"`
	FilePath        string `yaml:"file_path" env:"MERCURY_LOGGING_FILE_PATH"`
	RotationEnabled bool   `yaml:"rotation_enabled" env:"MERCURY_LOGGING_ROTATION_ENABLED"`
	MaxAgeDays      int    `yaml:"max_age_days" env:"MERCURY_LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB       int    `yaml:"max_size_mb" env:"MERCURY_LOGGING_MAX_SIZE_MB"`
}

func DefaultConfig() *Config {
	return &Config{
		Messenger: MessengerConfig{
			SessionPath:             "~/.mercury/session.json",
			UnwrapProxiedLinks:      true,
			SendLinkWithDescription: false,
			ShowPendingThreads:      false,
			ShowArchivedThreads:     false,
			ArchiveAttachments:      false,
			ArchivePath:             "~/.mercury/attachments",
			EchoCapacity:            4096,
		},
		Logging: LoggingConfig{
			FileEnabled:     true,
			FilePath:        "~/.mercury/mercury.log",
			RotationEnabled: true,
			MaxAgeDays:      7,
			MaxSizeMB:       50,
		},
	}
}

// LoadConfig reads a YAML config file, then applies environment overrides.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			if envErr := env.Parse(cfg); envErr != nil {
				return nil, envErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyLogging configures the logger's file sink from the logging section.
func (c *Config) ApplyLogging() error {
	if !c.Logging.FileEnabled {
		logger.DisableFileLogging()
		return nil
	}
	return logger.EnableFileLoggingWithRotation(
		expandHome(c.Logging.FilePath),
		c.Logging.RotationEnabled,
		c.Logging.MaxSizeMB,
		c.Logging.MaxAgeDays,
	)
}

// SessionPath returns the messenger session path with ~ expanded.
func (c *Config) SessionPath() string {
	return expandHome(c.Messenger.SessionPath)
}

// ArchivePath returns the attachment archive root with ~ expanded.
func (c *Config) ArchivePath() string {
	return c.Messenger.ArchiveRoot()
}

// ArchiveRoot returns the attachment archive root with ~ expanded.
func (m MessengerConfig) ArchiveRoot() string {
	return expandHome(m.ArchivePath)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
