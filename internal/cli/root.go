package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fslongjin/bandsweep/internal/config"
	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const serviceName = "bandsweep"

// Execute runs the root command
func Execute(version, commit, date string) error {
	root := NewRootCommand()
	root.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
	return root.Execute()
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "bandsweep",
		Short: "bandsweep - bulk-delete comments and posts from a band",
		Long: `bandsweep removes your content from a band in bulk.

It counts what a sweep would remove, asks for confirmation, runs the
deletion on the Band API and reports which items could not be deleted so
they can be retried.`,
		Version:       "dev",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file path (default: ~/.config/bandsweep/config.yaml)")
	flags.StringP(config.KeyAPIServer, "s", config.DefaultAPIServer, "Band API base URL")
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "Request timeout")
	flags.Duration(config.KeyDeleteTimeout, config.DefaultDeleteTimeout, "Maximum wait for one deletion call")
	flags.Duration(config.KeyProgressInterval, config.DefaultProgressInterval, "Progress estimate tick")
	flags.String(config.KeyDataDir, "", "Directory holding the credential database")
	flags.Bool(config.KeyStreamProgress, false, "Follow server-sent progress when the API offers it")
	flags.BoolP(config.KeyVerbose, "v", false, "Enable verbose output")
	flags.StringP(config.KeyOutput, "o", config.DefaultOutput, "Output format: table, json or yaml")

	for _, key := range []string{
		config.KeyAPIServer, config.KeyTimeout, config.KeyDeleteTimeout, config.KeyProgressInterval,
		config.KeyDataDir, config.KeyStreamProgress, config.KeyVerbose, config.KeyOutput,
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(newAuthCommand(a), newBandsCommand(a), newSweepCommand(a))
	return rootCmd
}

// initConfig reads in config file and ENV variables if set
func (a *app) initConfig(cmd *cobra.Command) error {
	config.SetDefaults(a.v)
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(filepath.Dir(config.GetConfigPath()))
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}
	config.BindEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else if a.v.GetBool(config.KeyVerbose) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.v.ConfigFileUsed())
	}
	return nil
}

func (a *app) init(cmd *cobra.Command) error {
	if err := a.initConfig(cmd); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	a.format = format

	opts := []logx.Option{logx.WithWriter(cmd.ErrOrStderr())}
	if cfg.Verbose {
		opts = append(opts, logx.WithLevel(slog.LevelDebug))
	}
	logger, closer, err := logx.Init(serviceName, logx.CLIDefaults, opts...)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	return nil
}

// requestContext bounds plain API calls by the configured timeout.
func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}
