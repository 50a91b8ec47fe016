package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vertextoedge/clipkeep/internal/domain/vo"
)

// EnvPrefix prefixes environment overrides, e.g. CLIPKEEP_HISTORY_MAX_ITEMS
const EnvPrefix = "CLIPKEEP"

// Config represents the entire application configuration
type Config struct {
	History     HistoryConfig     `mapstructure:"history"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Thumbnails  ThumbnailsConfig  `mapstructure:"thumbnails"`
	FolderWatch FolderWatchConfig `mapstructure:"folder_watch"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// HistoryConfig contains the retention bounds; zero means unlimited
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	MaxItems      int `mapstructure:"max_items"`
}

// CaptureConfig contains capture loop and filter settings
type CaptureConfig struct {
	PollInterval     string   `mapstructure:"poll_interval"`
	IgnoreConcealed  bool     `mapstructure:"ignore_concealed"`
	BlacklistEnabled bool     `mapstructure:"blacklist_enabled"`
	Blacklist        []string `mapstructure:"blacklist"`
	MaxItemSize      string   `mapstructure:"max_item_size"`
}

// StorageConfig contains on-disk locations. Relative file and directory
// names are resolved against DataDir.
type StorageConfig struct {
	DataDir         string `mapstructure:"data_dir"`
	SnapshotBackend string `mapstructure:"snapshot_backend"`
	SnapshotFile    string `mapstructure:"snapshot_file"`
	SQLiteFile      string `mapstructure:"sqlite_file"`
	BlobDir         string `mapstructure:"blob_dir"`
}

// ThumbnailsConfig contains thumbnail generation and cache settings
type ThumbnailsConfig struct {
	Size            int    `mapstructure:"size"`
	Scale           int    `mapstructure:"scale"`
	Workers         int    `mapstructure:"workers"`
	QueueSize       int    `mapstructure:"queue_size"`
	CacheMaxEntries int    `mapstructure:"cache_max_entries"`
	CacheMaxBytes   string `mapstructure:"cache_max_bytes"`
}

// FolderWatchConfig contains watched folder settings
type FolderWatchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	AutoCopy bool   `mapstructure:"auto_copy"`
}

// MaintenanceConfig contains maintenance loop settings
type MaintenanceConfig struct {
	Interval      string `mapstructure:"interval"`
	SweepCooldown string `mapstructure:"sweep_cooldown"`
}

// HTTPConfig contains local API server configuration
type HTTPConfig struct {
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from the specified file path. An empty path or
// a file that does not exist yields the defaults.
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		return v, nil
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("history.retention_days", 0)
	v.SetDefault("history.max_items", 0)
	v.SetDefault("capture.poll_interval", "500ms")
	v.SetDefault("capture.ignore_concealed", true)
	v.SetDefault("capture.blacklist_enabled", false)
	v.SetDefault("capture.blacklist", []string{})
	v.SetDefault("capture.max_item_size", "10MB")
	v.SetDefault("storage.data_dir", defaultDataDir())
	v.SetDefault("storage.snapshot_backend", "json")
	v.SetDefault("storage.snapshot_file", "clipboard_history.json")
	v.SetDefault("storage.sqlite_file", "clipboard_history.db")
	v.SetDefault("storage.blob_dir", "images")
	v.SetDefault("thumbnails.size", 80)
	v.SetDefault("thumbnails.scale", 2)
	v.SetDefault("thumbnails.workers", 2)
	v.SetDefault("thumbnails.queue_size", 64)
	v.SetDefault("thumbnails.cache_max_entries", 100)
	v.SetDefault("thumbnails.cache_max_bytes", "50MB")
	v.SetDefault("folder_watch.enabled", false)
	v.SetDefault("folder_watch.path", "")
	v.SetDefault("folder_watch.auto_copy", true)
	v.SetDefault("maintenance.interval", "1m")
	v.SetDefault("maintenance.sweep_cooldown", "5s")
	v.SetDefault("http.bind_addr", "127.0.0.1:7733")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".clipkeep"
	}
	return filepath.Join(dir, "clipkeep")
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days cannot be negative")
	}
	if c.History.MaxItems < 0 {
		return fmt.Errorf("history.max_items cannot be negative")
	}

	if _, err := vo.ParseByteSize(c.Capture.MaxItemSize); err != nil {
		return fmt.Errorf("invalid capture.max_item_size: %w", err)
	}
	if _, err := vo.ParseByteSize(c.Thumbnails.CacheMaxBytes); err != nil {
		return fmt.Errorf("invalid thumbnails.cache_max_bytes: %w", err)
	}

	switch c.Storage.SnapshotBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid storage.snapshot_backend: %s", c.Storage.SnapshotBackend)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	if c.Thumbnails.Size < 1 || c.Thumbnails.Scale < 1 {
		return fmt.Errorf("thumbnails.size and thumbnails.scale must be positive")
	}
	if c.Thumbnails.Workers < 1 || c.Thumbnails.Workers > 16 {
		return fmt.Errorf("thumbnails.workers must be between 1 and 16")
	}
	if c.Thumbnails.QueueSize < 1 {
		return fmt.Errorf("thumbnails.queue_size must be positive")
	}

	if c.FolderWatch.Enabled && c.FolderWatch.Path == "" {
		return fmt.Errorf("folder_watch.path is required when folder_watch.enabled is set")
	}

	durations := map[string]string{
		"capture.poll_interval":      c.Capture.PollInterval,
		"maintenance.interval":       c.Maintenance.Interval,
		"maintenance.sweep_cooldown": c.Maintenance.SweepCooldown,
		"http.read_timeout":          c.HTTP.ReadTimeout,
		"http.write_timeout":         c.HTTP.WriteTimeout,
		"http.idle_timeout":          c.HTTP.IdleTimeout,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", key)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetPollInterval returns the capture poll interval as time.Duration
func (c *CaptureConfig) GetPollInterval() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetMaxItemSize returns the payload bound; zero means unlimited
func (c *CaptureConfig) GetMaxItemSize() vo.ByteSize {
	b, _ := vo.ParseByteSize(c.MaxItemSize)
	return b
}

// GetCacheMaxBytes returns the thumbnail cache byte bound
func (c *ThumbnailsConfig) GetCacheMaxBytes() vo.ByteSize {
	b, _ := vo.ParseByteSize(c.CacheMaxBytes)
	return b
}

func (c *StorageConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// SnapshotPath returns the JSON snapshot location
func (c *StorageConfig) SnapshotPath() string {
	return c.resolve(c.SnapshotFile)
}

// SQLitePath returns the SQLite snapshot location
func (c *StorageConfig) SQLitePath() string {
	return c.resolve(c.SQLiteFile)
}

// BlobPath returns the image blob directory
func (c *StorageConfig) BlobPath() string {
	return c.resolve(c.BlobDir)
}

// GetInterval returns the maintenance interval as time.Duration
func (c *MaintenanceConfig) GetInterval() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	if d == 0 {
		return time.Minute
	}
	return d
}

// GetSweepCooldown returns the on-demand sweep cooldown as time.Duration
func (c *MaintenanceConfig) GetSweepCooldown() time.Duration {
	d, _ := time.ParseDuration(c.SweepCooldown)
	return d
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 10 * time.Second
	}
	return d
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}
