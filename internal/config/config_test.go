package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIServer, cfg.APIServer)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.DeleteTimeout)
	assert.Equal(t, 2*time.Second, cfg.ProgressInterval)
	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, filepath.Join("/tmp/xdg", "bandsweep", "bandsweep.db"), cfg.DBPath())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BANDSWEEP_API_SERVER", "https://band.example/api")
	t.Setenv("BANDSWEEP_DELETE_TIMEOUT", "45s")
	t.Setenv("BANDSWEEP_STREAM_PROGRESS", "true")
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://band.example/api", cfg.APIServer)
	assert.Equal(t, 45*time.Second, cfg.DeleteTimeout)
	assert.True(t, cfg.StreamProgress)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api-server: http://fake:4000/api\noutput: json\nprogress-interval: 500ms\n"), 0o600))
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://fake:4000/api", cfg.APIServer)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 500*time.Millisecond, cfg.ProgressInterval)
}

func TestLoadRepairsNonPositiveDurations(t *testing.T) {
	v := viper.New()
	v.Set(KeyTimeout, "-1s")
	v.Set(KeyAPIServer, "  ")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultAPIServer, cfg.APIServer)
}
