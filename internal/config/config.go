package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vertextoedge/cydia-mirror/internal/adapter/repo"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. CYDIA_MIRROR_DOWNLOAD_WORKERS
const EnvPrefix = "CYDIA_MIRROR"

// DefaultDeviceID is used for both the Cydia ID and the unique ID
const DefaultDeviceID = "00000000-0001111222233334"

// JournalOff disables the run journal when given as the journal path
const JournalOff = "off"

// Config represents the entire application configuration
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Download   DownloadConfig   `mapstructure:"download"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Journal    JournalConfig    `mapstructure:"journal"`
}

// RepositoryConfig names the source repository and the local save root
type RepositoryConfig struct {
	URL        string   `mapstructure:"url"`
	SaveDir    string   `mapstructure:"save_dir"`
	Candidates []string `mapstructure:"candidates"`
}

// IdentityConfig contains the device identity sent as request headers
type IdentityConfig struct {
	CydiaID  string `mapstructure:"cydia_id"`
	Firmware string `mapstructure:"firmware"`
	Machine  string `mapstructure:"machine"`
	UniqueID string `mapstructure:"unique_id"`
}

// DownloadConfig contains download scheduling settings
type DownloadConfig struct {
	Workers               int    `mapstructure:"workers"`
	MaxFailCount          int    `mapstructure:"max_fail_count"`
	JitterMin             string `mapstructure:"jitter_min"`
	JitterMax             string `mapstructure:"jitter_max"`
	RequestTimeout        string `mapstructure:"request_timeout"`
	ResponseHeaderTimeout string `mapstructure:"response_header_timeout"`
	MaxConnsPerHost       int    `mapstructure:"max_conns_per_host"`
	SkipTLSVerify         bool   `mapstructure:"skip_tls_verify"`
	Progress              bool   `mapstructure:"progress"`
	MinFreeMB             int    `mapstructure:"min_free_mb"`
}

// CatalogConfig contains index parsing settings
type CatalogConfig struct {
	StrictEncoding bool `mapstructure:"strict_encoding"`
}

// ArchiveConfig contains packing settings
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

// JournalConfig contains run journal settings
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"cydia-id":        "identity.cydia_id",
	"firmware":        "identity.firmware",
	"machine":         "identity.machine",
	"unique-id":       "identity.unique_id",
	"worker":          "download.workers",
	"max-fail-count":  "download.max_fail_count",
	"progress":        "download.progress",
	"strict-encoding": "catalog.strict_encoding",
	"pack":            "archive.enabled",
	"debug":           "logging.debug",
	"log-format":      "logging.format",
	"journal":         "journal.path",
}

// RegisterFlags adds every configuration flag to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional YAML config file")
	fs.Bool("debug", false, "enable debug logging")
	fs.StringP("cydia-id", "c", DefaultDeviceID, "X-Cydia-ID header value")
	fs.StringP("firmware", "f", "14.7", "X-Firmware header value")
	fs.StringP("unique-id", "u", DefaultDeviceID, "X-Unique-ID header value")
	fs.StringP("machine", "m", "iPhone11,1", "X-Machine header value")
	fs.IntP("worker", "w", runtime.NumCPU(), "number of concurrent downloads")
	fs.Int("max-fail-count", 5, "abort once more than this many packages fail")
	fs.BoolP("pack", "z", false, "zip the save directory when finished")
	fs.String("log-format", "console", "log format (console or json)")
	fs.String("journal", "", "run journal database (default <save-dir>.journal.db, \"off\" to disable)")
	fs.Bool("progress", false, "show a progress bar")
	fs.Bool("strict-encoding", false, "reject package indexes that are not valid UTF-8")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repository.url", "")
	v.SetDefault("repository.save_dir", "")
	v.SetDefault("repository.candidates", []string{})
	v.SetDefault("identity.cydia_id", DefaultDeviceID)
	v.SetDefault("identity.firmware", "14.7")
	v.SetDefault("identity.machine", "iPhone11,1")
	v.SetDefault("identity.unique_id", DefaultDeviceID)
	v.SetDefault("download.workers", runtime.NumCPU())
	v.SetDefault("download.max_fail_count", 5)
	v.SetDefault("download.jitter_min", "1s")
	v.SetDefault("download.jitter_max", "10s")
	v.SetDefault("download.request_timeout", "60s")
	v.SetDefault("download.response_header_timeout", "30s")
	v.SetDefault("download.max_conns_per_host", 16)
	v.SetDefault("download.skip_tls_verify", false)
	v.SetDefault("download.progress", false)
	v.SetDefault("download.min_free_mb", 0)
	v.SetDefault("catalog.strict_encoding", false)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.debug", false)
	v.SetDefault("journal.path", "")
}

// Load builds the configuration from defaults, an optional YAML file,
// CYDIA_MIRROR_* environment variables and flags, in increasing order of
// precedence. repoURL and saveDir, when non-empty, override everything.
func Load(configPath string, flags *pflag.FlagSet, repoURL, saveDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if repoURL != "" {
		v.Set("repository.url", repoURL)
	}
	if saveDir != "" {
		v.Set("repository.save_dir", saveDir)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Logging.Debug {
		config.Logging.Level = "debug"
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Repository.URL == "" {
		return fmt.Errorf("%w: repository url is required", domain.ErrInvalidConfig)
	}
	if _, err := repo.ParseRoot(c.Repository.URL); err != nil {
		return err
	}
	if c.Repository.SaveDir == "" {
		return fmt.Errorf("%w: save directory is required", domain.ErrInvalidConfig)
	}

	if _, err := c.Identity.ToIdentity().Headers(); err != nil {
		return err
	}

	if c.Download.Workers < 1 {
		return fmt.Errorf("%w: download.workers must be positive", domain.ErrInvalidConfig)
	}
	if c.Download.MinFreeMB < 0 {
		return fmt.Errorf("%w: download.min_free_mb must not be negative", domain.ErrInvalidConfig)
	}
	if c.Download.MaxFailCount < 0 {
		return fmt.Errorf("%w: download.max_fail_count must not be negative", domain.ErrInvalidConfig)
	}

	// Validate durations
	for key, value := range map[string]string{
		"download.jitter_min":              c.Download.JitterMin,
		"download.jitter_max":              c.Download.JitterMax,
		"download.request_timeout":         c.Download.RequestTimeout,
		"download.response_header_timeout": c.Download.ResponseHeaderTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: invalid %s: %v", domain.ErrInvalidConfig, key, err)
		}
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidConfig, key)
		}
	}
	if c.Download.GetJitterMax() < c.Download.GetJitterMin() {
		return fmt.Errorf("%w: download.jitter_max is below download.jitter_min", domain.ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid logging.level: %s", domain.ErrInvalidConfig, c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: invalid logging.format: %s", domain.ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// ToIdentity converts the identity settings for the repository client
func (c *IdentityConfig) ToIdentity() repo.Identity {
	return repo.Identity{
		CydiaID:  c.CydiaID,
		Firmware: c.Firmware,
		Machine:  c.Machine,
		UniqueID: c.UniqueID,
	}
}

// ToClientConfig converts the download settings for the repository client
func (c *DownloadConfig) ToClientConfig() *repo.ClientConfig {
	return &repo.ClientConfig{
		RequestTimeout:        parseDuration(c.RequestTimeout),
		ResponseHeaderTimeout: parseDuration(c.ResponseHeaderTimeout),
		MaxConnsPerHost:       c.MaxConnsPerHost,
		SkipTLSVerify:         c.SkipTLSVerify,
	}
}

// GetMinFreeBytes returns the free space required before a run starts
func (c *DownloadConfig) GetMinFreeBytes() uint64 {
	if c.MinFreeMB <= 0 {
		return 0
	}
	return uint64(c.MinFreeMB) * 1024 * 1024
}

// GetJitterMin returns the lower jitter bound as time.Duration
func (c *DownloadConfig) GetJitterMin() time.Duration {
	return parseDuration(c.JitterMin)
}

// GetJitterMax returns the upper jitter bound as time.Duration
func (c *DownloadConfig) GetJitterMax() time.Duration {
	return parseDuration(c.JitterMax)
}

// JournalPath returns the journal database path, or "" when disabled
func (c *Config) JournalPath() string {
	switch p := strings.TrimSpace(c.Journal.Path); {
	case strings.EqualFold(p, JournalOff):
		return ""
	case p != "":
		return p
	}
	return filepath.Clean(c.Repository.SaveDir) + ".journal.db"
}

// ArchivePath returns the zip destination, a sibling of the save directory
func (c *Config) ArchivePath() string {
	return filepath.Clean(c.Repository.SaveDir) + ".zip"
}

// IsInvalid reports whether err came from configuration validation
func IsInvalid(err error) bool {
	return errors.Is(err, domain.ErrInvalidConfig) || errors.Is(err, domain.ErrInvalidHeader)
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
