package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAPIServer        = "http://localhost:4000/api"
	DefaultTimeout          = 30 * time.Second
	DefaultDeleteTimeout    = 2 * time.Minute
	DefaultProgressInterval = 2 * time.Second
	DefaultOutput           = "table"

	EnvPrefix = "BANDSWEEP"
	dbName    = "bandsweep.db"
)

// Keys bound to flags, the config file and BANDSWEEP_* variables.
const (
	KeyAPIServer        = "api-server"
	KeyTimeout          = "timeout"
	KeyDeleteTimeout    = "delete-timeout"
	KeyProgressInterval = "progress-interval"
	KeyDataDir          = "data-dir"
	KeyVerbose          = "verbose"
	KeyOutput           = "output"
	KeyStreamProgress   = "stream-progress"
)

// Config holds the application configuration
type Config struct {
	APIServer        string
	Timeout          time.Duration
	DeleteTimeout    time.Duration
	ProgressInterval time.Duration
	DataDir          string
	Verbose          bool
	Output           string
	StreamProgress   bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIServer, DefaultAPIServer)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyDeleteTimeout, DefaultDeleteTimeout)
	v.SetDefault(KeyProgressInterval, DefaultProgressInterval)
	v.SetDefault(KeyDataDir, DefaultDataDir())
	v.SetDefault(KeyOutput, DefaultOutput)
}

// BindEnv makes v read BANDSWEEP_API_SERVER and friends.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load loads the configuration from file and environment
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIServer:        strings.TrimSpace(v.GetString(KeyAPIServer)),
		Timeout:          v.GetDuration(KeyTimeout),
		DeleteTimeout:    v.GetDuration(KeyDeleteTimeout),
		ProgressInterval: v.GetDuration(KeyProgressInterval),
		DataDir:          strings.TrimSpace(v.GetString(KeyDataDir)),
		Verbose:          v.GetBool(KeyVerbose),
		Output:           v.GetString(KeyOutput),
		StreamProgress:   v.GetBool(KeyStreamProgress),
	}
	if cfg.APIServer == "" {
		cfg.APIServer = DefaultAPIServer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = DefaultDeleteTimeout
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	return cfg, nil
}

// DBPath is the credential database inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, dbName)
}

// EnsureDataDir creates the data directory with owner-only permissions.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bandsweep", "config.yaml")
}

// DefaultDataDir is ~/.local/share/bandsweep, or XDG_DATA_HOME/bandsweep.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bandsweep")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "bandsweep")
}

// EnsureConfigDir ensures the config directory exists
func EnsureConfigDir() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}
