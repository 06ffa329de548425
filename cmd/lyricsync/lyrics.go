package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/track"
)

var (
	// flags shared by lyrics search and preview
	lyricsAlbum    string
	lyricsDuration float64
	previewAt      float64
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "look up lyrics on lrclib",
	Long:  `search lrclib.net for a track and preview its lyrics in the terminal.`,
}

var lyricsSearchCmd = &cobra.Command{
	Use:   "search <artist> <title>",
	Short: "search for lyrics on lrclib",
	Long:  `search for lyrics on lrclib.net and display availability information.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := fetchForArgs(cmd, args)
		if err != nil {
			return err
		}

		fmt.Printf("found lyrics:\n")
		fmt.Printf("  track:        %s\n", payload.TrackName)
		fmt.Printf("  artist:       %s\n", payload.ArtistName)
		if payload.AlbumName != "" {
			fmt.Printf("  album:        %s\n", payload.AlbumName)
		}
		if payload.Duration > 0 {
			fmt.Printf("  duration:     %.0fs\n", payload.Duration)
		}
		fmt.Printf("  instrumental: %v\n", payload.Instrumental)

		if idx := lyrics.ParseSynced(payload.SyncedLyrics); !idx.IsEmpty() {
			fmt.Printf("  synced lines: %d\n", idx.Len())
		} else {
			fmt.Printf("  synced lines: none\n")
		}
		if plain := lyrics.PlainLines(payload.PlainLyrics); len(plain) > 0 {
			fmt.Printf("  plain lines:  %d\n", len(plain))
		} else {
			fmt.Printf("  plain lines:  none\n")
		}

		fmt.Println("\nuse 'lyricsync lyrics preview' to print them")
		return nil
	},
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "print lyrics with timestamps",
	Long: `print the lyrics of a track with their timestamps. with --at, the line that
would be active at that position is marked.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := fetchForArgs(cmd, args)
		if err != nil {
			return err
		}

		if payload.Instrumental {
			fmt.Println("♪ instrumental ♪")
			return nil
		}

		at := math.NaN()
		if cmd.Flags().Changed("at") {
			at = previewAt
		}

		idx := lyrics.ParseSynced(payload.SyncedLyrics)
		if !idx.IsEmpty() {
			for _, line := range previewLines(idx, at) {
				fmt.Println(line)
			}
			return nil
		}

		plain := lyrics.PlainLines(payload.PlainLyrics)
		if len(plain) == 0 {
			return lyrics.ErrNoLyrics
		}
		fmt.Println("(no timing available)")
		for _, line := range plain {
			fmt.Println(line)
		}
		return nil
	},
}

func fetchForArgs(cmd *cobra.Command, args []string) (*lyrics.Payload, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	trk := &track.Info{
		Artist:   args[0],
		Title:    args[1],
		Album:    lyricsAlbum,
		Duration: time.Duration(lyricsDuration * float64(time.Second)),
	}

	fmt.Printf("searching for: %s\n\n", trk)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	payload, err := lyrics.NewClient(cfg.LrclibURL).FetchLyrics(ctx, trk)
	if err != nil {
		if errors.Is(err, lyrics.ErrNoLyrics) {
			return nil, err
		}
		return nil, fmt.Errorf("lyrics lookup failed: %w", err)
	}
	if payload.IsEmpty() {
		return nil, lyrics.ErrNoLyrics
	}
	return payload, nil
}

// previewLines formats every line as "[m:ss.cc] text", marking the line
// active at position with "▶". A NaN position marks nothing.
func previewLines(idx *lyrics.Index, position float64) []string {
	active := idx.ActiveIndex(position)

	return lo.Map(idx.Lines(), func(line lyrics.Line, i int) string {
		marker := "  "
		if i == active {
			marker = "▶ "
		}
		text := line.Text
		if text == "" {
			text = "♪"
		}
		return fmt.Sprintf("%s[%s] %s", marker, formatStamp(line.TimeSeconds), text)
	})
}

func formatStamp(seconds float64) string {
	centis := int64(math.Round(seconds * 100))
	return fmt.Sprintf("%d:%02d.%02d", centis/6000, (centis/100)%60, centis%100)
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsSearchCmd)
	lyricsCmd.AddCommand(lyricsPreviewCmd)

	for _, c := range []*cobra.Command{lyricsSearchCmd, lyricsPreviewCmd} {
		c.Flags().StringVar(&lyricsAlbum, "album", "", "album name to narrow the search")
		c.Flags().Float64Var(&lyricsDuration, "duration", 0, "track length in seconds to narrow the search")
	}
	lyricsPreviewCmd.Flags().Float64Var(&previewAt, "at", 0, "mark the line active at this position (seconds)")
}
