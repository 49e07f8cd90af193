package fitmetrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, config.Listen)
	assert.Equal(t, DefaultSyncWorkers, config.SyncWorkers)
	assert.Equal(t, DefaultPresignExpirySecs, config.PresignExpirySecs)
	assert.True(t, filepath.IsAbs(config.DataDir))
	assert.True(t, strings.HasSuffix(config.DataDir, DefaultDataDir))

	assert.Equal(t, 3000*time.Second, config.PresignExpiry())
	assert.Equal(t, 10*time.Second, config.ShutdownGrace())
}

func TestLoadConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
store: s3://my-bucket/metrics
listen: 127.0.0.1:9090
sync_workers: 3
descriptions:
  steps: Daily step count
s3:
  region: eu-west-1
`), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "s3://my-bucket/metrics", config.Store)
	assert.Equal(t, "127.0.0.1:9090", config.Listen)
	assert.Equal(t, 3, config.SyncWorkers)
	assert.Equal(t, "Daily step count", config.Descriptions["steps"])
	assert.Equal(t, "eu-west-1", config.S3.Region)

	// Unset fields keep their defaults
	assert.Equal(t, DefaultPresignExpirySecs, config.PresignExpirySecs)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("listen: 127.0.0.1:9090\n"), 0644))

	t.Setenv("FITMETRICS_LISTEN", ":7070")
	t.Setenv("FITMETRICS_SYNC_WORKERS", "2")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Environment wins over the config file
	assert.Equal(t, ":7070", config.Listen)
	assert.Equal(t, 2, config.SyncWorkers)
}

func TestLoadConfigBucketEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("AWS_S3_BUCKET_NAME", "fit-bucket")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")

	config, err := LoadConfig("")
	require.NoError(t, err)

	// The bucket env alone implies the store URL under the fixed prefix
	assert.Equal(t, "s3://fit-bucket/"+DefaultStorePrefix, config.Store)
	assert.Equal(t, "AKIATEST", config.S3.AccessKeyID)
	assert.Equal(t, "secret", config.S3.SecretAccessKey)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// godotenv loads into the process environment, clean up after ourselves
	t.Cleanup(func() { os.Unsetenv("AWS_S3_BUCKET_NAME") })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AWS_S3_BUCKET_NAME=dotenv-bucket\n"), 0644))

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "s3://dotenv-bucket/"+DefaultStorePrefix, config.Store)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.SyncWorkers = 0 },
			wantErr: "sync workers",
		},
		{
			name:    "empty listen",
			mutate:  func(c *Config) { c.Listen = "" },
			wantErr: "listen address",
		},
		{
			name:    "zero presign expiry",
			mutate:  func(c *Config) { c.PresignExpirySecs = 0 },
			wantErr: "presign expiry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
