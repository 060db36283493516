package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/msghub/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Sync holds the polling tunables and the optional background interval
type Sync struct {
	path     string
	interval time.Duration
}

func (x *Sync) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sync-config",
			Usage:       "Path to a TOML file with sync limits, cooldown and backoff",
			Category:    "Sync",
			Sources:     cli.EnvVars("MSGHUB_SYNC_CONFIG"),
			Destination: &x.path,
		},
		&cli.DurationFlag{
			Name:        "sync-interval",
			Usage:       "Run a sync for every linked user at this interval (0 disables)",
			Category:    "Sync",
			Sources:     cli.EnvVars("MSGHUB_SYNC_INTERVAL"),
			Destination: &x.interval,
		},
	}
}

func (x Sync) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("config", x.path),
		slog.Duration("interval", x.interval),
	)
}

// Interval returns the background sync interval. Zero means disabled.
func (x *Sync) Interval() time.Duration {
	return x.interval
}

type syncFile struct {
	ConversationLimit    *int    `toml:"conversation_limit"`
	MessageLimit         *int    `toml:"message_limit"`
	NotificationLimit    *int    `toml:"notification_limit"`
	ConversationCooldown *string `toml:"conversation_cooldown"`
	Backoff              struct {
		MaxAttempts *int    `toml:"max_attempts"`
		BaseDelay   *string `toml:"base_delay"`
		MaxDelay    *string `toml:"max_delay"`
	} `toml:"backoff"`
}

// Configure returns the defaults overlaid with the values present in the file
func (x *Sync) Configure() (domainConfig.Sync, error) {
	cfg := domainConfig.DefaultSync()
	if x.path == "" {
		return cfg, nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(x.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, goerr.Wrap(ErrConfigNotFound, "sync config file not found", goerr.V(ConfigPathKey, x.path))
		}
		return cfg, goerr.Wrap(err, "failed to read sync config", goerr.V(ConfigPathKey, x.path))
	}

	return parseSyncConfig(data, x.path)
}

func parseSyncConfig(data []byte, path string) (domainConfig.Sync, error) {
	cfg := domainConfig.DefaultSync()

	var file syncFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg, goerr.Wrap(ErrInvalidConfig, "failed to parse sync config", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}

	setInt(&cfg.ConversationLimit, file.ConversationLimit)
	setInt(&cfg.MessageLimit, file.MessageLimit)
	setInt(&cfg.NotificationLimit, file.NotificationLimit)
	setInt(&cfg.Backoff.MaxAttempts, file.Backoff.MaxAttempts)

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"conversation_cooldown", file.ConversationCooldown, &cfg.ConversationCooldown},
		{"backoff.base_delay", file.Backoff.BaseDelay, &cfg.Backoff.BaseDelay},
		{"backoff.max_delay", file.Backoff.MaxDelay, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return cfg, goerr.Wrap(ErrInvalidConfig, "invalid duration", goerr.V(ConfigPathKey, path), goerr.V("key", d.key), goerr.V("value", *d.src))
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, goerr.Wrap(ErrInvalidConfig, "sync config validation failed", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}
	return cfg, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
