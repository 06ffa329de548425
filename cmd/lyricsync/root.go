package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyricsync/internal/config"
	"karolbroda.com/lyricsync/internal/logging"
)

var version = "dev"

var (
	// global flags
	configFile   string
	mprisService string
	syncOffset   float64
	hideHeader   bool
	lrclibURL    string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "synced lyrics for your mpris music player",
	Long: `lyricsync follows the track playing in an mpris music player and shows its
lyrics in the terminal, highlighting and scrolling to the line being sung.

when run without a subcommand, it starts the interactive viewer.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runViewer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentPreRunE = setupCLILogging

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyricsync/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&mprisService, "mpris-service", "m", "", "mpris service or player name (e.g. spotify)")
	rootCmd.PersistentFlags().Float64VarP(&syncOffset, "sync-offset", "s", 0, "default sync offset in seconds")
	rootCmd.PersistentFlags().BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	rootCmd.PersistentFlags().StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib get endpoint")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
}

func setupCLILogging(cmd *cobra.Command, args []string) error {
	// the viewer owns the terminal and sets up file logging itself
	if cmd == rootCmd || cmd == runCmd {
		return nil
	}
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	_, err := logging.Setup(level, "")
	return err
}

// loadConfig layers the persistent flags over defaults, the config file and
// the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFrom(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	flags := cmd.Flags()
	if mprisService != "" {
		cfg.MprisService = mprisService
	}
	if lrclibURL != "" {
		cfg.LrclibURL = lrclibURL
	}
	if flags.Changed("sync-offset") {
		cfg.SyncOffset = syncOffset
	}
	if flags.Changed("hide-header") {
		cfg.HideHeader = hideHeader
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.DefaultPath()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
