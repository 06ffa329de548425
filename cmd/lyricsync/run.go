package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricsync/internal/config"
	"karolbroda.com/lyricsync/internal/controller"
	"karolbroda.com/lyricsync/internal/logging"
	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/offsets"
	"karolbroda.com/lyricsync/internal/player"
	"karolbroda.com/lyricsync/internal/position"
	"karolbroda.com/lyricsync/internal/terminal"
	"karolbroda.com/lyricsync/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive lyrics viewer",
	Long:  `starts the terminal viewer that follows the current track and highlights the active lyric line.`,
	RunE:  runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	defer terminal.Reset(os.Stdout)

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	playerService, err := player.NewService(bus, player.ResolveService(cfg.MprisService))
	if err != nil {
		return fmt.Errorf("failed to create player service: %w", err)
	}
	if err := playerService.Start(ctx); err != nil {
		log.Warn().Str("component", "run").Err(err).Msg("could not subscribe to player signals, relying on polling")
	}
	defer playerService.Stop()

	est := position.New(playerService, position.Options{
		TickInterval:   cfg.TickInterval,
		ResyncInterval: cfg.ResyncInterval,
		QueryTimeout:   cfg.QueryTimeout,
	})

	opts := controller.Options{
		EnableSyncedLyrics: cfg.EnableSyncedLyrics,
		SyncOffset:         cfg.SyncOffset,
	}
	store, err := offsets.Open(cfg.OffsetsPath())
	if err != nil {
		log.Warn().Str("component", "run").Err(err).Msg("sync offsets will not be remembered")
	} else {
		defer store.Close()
		opts.Offsets = store
	}

	ctrl := controller.New(est, lyrics.NewClient(cfg.LrclibURL), opts)
	defer ctrl.Close()

	go func() {
		if err := ctrl.Run(ctx, playerService); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Str("component", "run").Err(err).Msg("controller stopped")
		}
	}()

	offsetFromFlag := cmd.Flags().Changed("sync-offset")
	err = config.Watch(ctx, configPath(), func(next *config.Config) {
		ctrl.SetSyncedLyricsEnabled(next.EnableSyncedLyrics)
		if !offsetFromFlag {
			ctrl.SetDefaultSyncOffset(next.SyncOffset)
		}
	})
	if err != nil {
		log.Debug().Str("component", "run").Err(err).Msg("config file will not be reloaded")
	}

	log.Info().
		Str("component", "run").
		Str("player", playerService.Name()).
		Bool("synced_lyrics", cfg.EnableSyncedLyrics).
		Msg("viewer started")

	model := ui.NewModel(ui.Config{
		Controller: ctrl,
		HideHeader: cfg.HideHeader,
		TermCaps:   terminal.DetectCapabilities(),
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running bubble tea: %w", err)
	}

	return nil
}
