package fitmetrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Defaults mirror the original deployment of this service.
const (
	DefaultDataDir           = "data_files"
	DefaultListen            = ":8080"
	DefaultSyncWorkers       = 8
	DefaultPresignExpirySecs = 3000
	DefaultShutdownGraceSecs = 10

	// DefaultStorePrefix is the bucket prefix metric files are published
	// under when the store URL is derived from AWS_S3_BUCKET_NAME alone.
	DefaultStorePrefix = "activity-metric-plots"
)

// Config holds the service configuration
type Config struct {
	// Store is the object store URL holding the metric files, either
	// "s3://bucket/prefix" or "file:///path/to/dir"
	Store string `yaml:"store"`

	// DataDir is the local directory metric files are synced into and
	// served from (default: data_files under the working directory)
	DataDir string `yaml:"data_dir"`

	// Listen is the HTTP listen address for the API (default: :8080)
	Listen string `yaml:"listen"`

	// SyncWorkers bounds the number of concurrent downloads during a sync
	SyncWorkers int `yaml:"sync_workers"`

	// PresignExpirySecs is the lifetime of generated upload URLs, in seconds
	PresignExpirySecs int `yaml:"presign_expiry_secs"`

	// ShutdownGraceSecs is how long in-flight requests get to finish on shutdown
	ShutdownGraceSecs int `yaml:"shutdown_grace_secs"`

	// Descriptions overrides or extends the built-in metric descriptions,
	// keyed by metric name
	Descriptions map[string]string `yaml:"descriptions"`

	// S3 holds settings for s3:// stores
	S3 S3Config `yaml:"s3"`
}

// S3Config holds settings for s3:// stores. All fields are optional: when
// empty, the AWS SDK falls back to its usual credential and region chain.
type S3Config struct {
	// Region is the bucket region
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores
	// (MinIO, localstack). Path-style addressing is used when set.
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey configure static credentials
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           DefaultDataDir,
		Listen:            DefaultListen,
		SyncWorkers:       DefaultSyncWorkers,
		PresignExpirySecs: DefaultPresignExpirySecs,
		ShutdownGraceSecs: DefaultShutdownGraceSecs,
	}
}

// LoadConfig loads the service configuration. A .env file in the working
// directory is loaded into the environment first, then defaults are applied,
// then the YAML config file (the given path, or ./fitmetrics.yaml if it
// exists), then environment variable overrides.
//
// Environment keys: FITMETRICS_STORE, FITMETRICS_DATA_DIR, FITMETRICS_LISTEN,
// FITMETRICS_SYNC_WORKERS, FITMETRICS_PRESIGN_EXPIRY_SECS and the legacy AWS
// keys AWS_S3_BUCKET_NAME, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		zlog.Debug("loaded .env file")
	}

	config := DefaultConfig()

	configPath := path
	if configPath == "" {
		configPath = "fitmetrics.yaml"
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = ""
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		zlog.Debug("loaded config file", zap.String("config_path", configPath))
	}

	config.applyEnv()

	// Ensure the data directory is absolute and expanded
	config.DataDir = ExpandPath(config.DataDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	zlog.Debug("resolved config",
		zap.String("store", config.Store),
		zap.String("data_dir", config.DataDir),
		zap.String("listen", config.Listen),
		zap.Int("sync_workers", config.SyncWorkers))

	return config, nil
}

// applyEnv overlays environment variables onto the config. FITMETRICS_* keys
// always win; the legacy AWS keys only fill fields that are still empty so a
// config file keeps precedence over ambient AWS credentials.
func (c *Config) applyEnv() {
	c.Store = getenv("FITMETRICS_STORE", c.Store)
	c.DataDir = getenv("FITMETRICS_DATA_DIR", c.DataDir)
	c.Listen = getenv("FITMETRICS_LISTEN", c.Listen)
	c.SyncWorkers = getenvInt("FITMETRICS_SYNC_WORKERS", c.SyncWorkers)
	c.PresignExpirySecs = getenvInt("FITMETRICS_PRESIGN_EXPIRY_SECS", c.PresignExpirySecs)
	c.S3.Endpoint = getenv("FITMETRICS_S3_ENDPOINT", c.S3.Endpoint)

	if c.Store == "" {
		if bucket := os.Getenv("AWS_S3_BUCKET_NAME"); bucket != "" {
			c.Store = "s3://" + bucket + "/" + DefaultStorePrefix
		}
	}
	if c.S3.AccessKeyID == "" {
		c.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.S3.SecretAccessKey == "" {
		c.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if c.S3.Region == "" {
		c.S3.Region = getenv("AWS_REGION", os.Getenv("AWS_DEFAULT_REGION"))
	}
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.SyncWorkers < 1 {
		return fmt.Errorf("sync workers must be at least 1, got %d", c.SyncWorkers)
	}
	if c.PresignExpirySecs < 1 {
		return fmt.Errorf("presign expiry must be at least 1 second, got %d", c.PresignExpirySecs)
	}
	return nil
}

// PresignExpiry returns the upload URL lifetime as a duration.
func (c *Config) PresignExpiry() time.Duration {
	return time.Duration(c.PresignExpirySecs) * time.Second
}

// ShutdownGrace returns the shutdown grace period as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSecs) * time.Second
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		zlog.Warn("ignoring non-integer environment value",
			zap.String("key", key),
			zap.String("value", value))
		return fallback
	}
	return parsed
}

// ExpandPath expands ~ to home directory and makes path absolute
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
