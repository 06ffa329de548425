package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricsync/internal/colors"
	"karolbroda.com/lyricsync/internal/player"
)

const cliTimeout = 5 * time.Second

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "mpris player utilities",
	Long:  `discover mpris-compatible music players and inspect what they are playing.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list all mpris-compatible music players currently running on the session bus.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		players, err := player.ListPlayers(ctx, bus)
		if err != nil {
			return err
		}

		if len(players) == 0 {
			fmt.Println("no mpris players found")
			fmt.Println("\ncheck if your music player is running and supports mpris")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Name", "Identity", "Service"})
		for _, p := range players {
			t.AppendRow(table.Row{p.ShortName(), p.Identity, p.Service})
		}
		t.Render()

		fmt.Println("\nuse --mpris-service <name> to pick a player")
		return nil
	},
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show the currently playing track",
	Long:  `display the track, playback state and position reported by the configured player.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		svc, err := player.NewService(bus, player.ResolveService(cfg.MprisService))
		if err != nil {
			return fmt.Errorf("failed to connect to player: %w", err)
		}

		trk, err := svc.CurrentTrack(ctx)
		if err != nil {
			return fmt.Errorf("could not read track from %s: %w", svc.Name(), err)
		}
		if !trk.IsValid() {
			fmt.Println("no track currently playing")
			return nil
		}

		fmt.Printf("player:   %s\n", svc.Name())
		fmt.Printf("title:    %s\n", trk.Title)
		fmt.Printf("artist:   %s\n", trk.Artist)
		if trk.Album != "" {
			fmt.Printf("album:    %s\n", trk.Album)
		}
		if d, ok := trk.KnownDuration(); ok {
			fmt.Printf("duration: %s\n", colors.FormatTime(d))
		}
		if trk.ArtworkURL != "" {
			fmt.Printf("artwork:  %s\n", trk.ArtworkURL)
		}

		playing, err := svc.Playing(ctx)
		if err == nil {
			if playing {
				fmt.Println("state:    playing")
			} else {
				fmt.Println("state:    paused")
			}
		}
		if pos, err := svc.Position(ctx); err == nil {
			fmt.Printf("position: %s\n", colors.FormatTime(pos))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerCurrentCmd)
}
