package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"karolbroda.com/lyricsync/internal/offsets"
)

const maxSuggestions = 5

var (
	offsetsSortBy  string
	offsetsConfirm bool
)

var offsetsCmd = &cobra.Command{
	Use:   "offsets",
	Short: "manage remembered sync offsets",
	Long:  `list, inspect and remove the per-track sync offsets saved while adjusting timing in the viewer.`,
}

var offsetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all remembered offsets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store *offsets.Store) error {
			entries, err := store.List()
			if err != nil {
				return fmt.Errorf("failed to list offsets: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no offsets remembered yet")
				return nil
			}

			sortEntries(entries, offsetsSortBy)

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Artist", "Title", "Offset", "Updated"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.Artist, e.Title, fmt.Sprintf("%+.2fs", e.Offset), e.Updated().Format("2006-01-02 15:04")})
			}
			t.AppendFooter(table.Row{"", "total", len(entries), ""})
			t.Render()
			return nil
		})
	},
}

var offsetsShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show the offset remembered for a track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store *offsets.Store) error {
			entry, err := lookupEntry(store, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("artist:  %s\n", entry.Artist)
			fmt.Printf("title:   %s\n", entry.Title)
			fmt.Printf("offset:  %+.2fs\n", entry.Offset)
			fmt.Printf("created: %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
			fmt.Printf("updated: %s\n", entry.Updated().Format("2006-01-02 15:04:05"))
			return nil
		})
	},
}

var offsetsDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "forget the offset for a track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store *offsets.Store) error {
			entry, err := lookupEntry(store, args[0], args[1])
			if err != nil {
				return err
			}
			if err := store.Delete(entry.Artist, entry.Title); err != nil {
				return fmt.Errorf("failed to delete offset: %w", err)
			}
			fmt.Printf("forgot offset for '%s - %s'\n", entry.Artist, entry.Title)
			return nil
		})
	},
}

var offsetsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "forget all remembered offsets",
	Long:  `remove every remembered sync offset. use --confirm to skip the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !offsetsConfirm {
			fmt.Print("are you sure you want to forget all offsets? (y/n): ")
			var response string
			_, _ = fmt.Scanln(&response)
			if r := strings.ToLower(response); r != "y" && r != "yes" {
				fmt.Println("cancelled")
				return nil
			}
		}

		return withStore(cmd, func(store *offsets.Store) error {
			n, err := store.Clear()
			if err != nil {
				return fmt.Errorf("failed to clear offsets: %w", err)
			}
			fmt.Printf("forgot %d offset(s)\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(offsetsCmd)

	offsetsCmd.AddCommand(offsetsListCmd)
	offsetsCmd.AddCommand(offsetsShowCmd)
	offsetsCmd.AddCommand(offsetsDeleteCmd)
	offsetsCmd.AddCommand(offsetsClearCmd)

	offsetsListCmd.Flags().StringVar(&offsetsSortBy, "sort", "date", "sort by: date, artist, title")
	offsetsClearCmd.Flags().BoolVar(&offsetsConfirm, "confirm", false, "skip confirmation prompt")
}

func withStore(cmd *cobra.Command, fn func(*offsets.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := offsets.Open(cfg.OffsetsPath())
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

// lookupEntry finds the stored entry for artist and title. When there is
// none, the error lists similar entries.
func lookupEntry(store *offsets.Store, artist, title string) (*offsets.Entry, error) {
	entry, err := store.Get(artist, title)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, offsets.ErrNotFound) {
		return nil, err
	}

	all, listErr := store.List()
	if listErr != nil {
		return nil, err
	}

	similar := similarEntries(all, artist, title)
	if len(similar) == 0 {
		return nil, fmt.Errorf("no offset remembered for '%s - %s'", artist, title)
	}

	names := lo.Map(similar, func(e *offsets.Entry, _ int) string {
		return "  " + e.Artist + " - " + e.Title
	})
	return nil, fmt.Errorf("no offset remembered for '%s - %s', did you mean:\n%s", artist, title, strings.Join(names, "\n"))
}

func similarEntries(entries []*offsets.Entry, artist, title string) []*offsets.Entry {
	artist, title = strings.ToLower(artist), strings.ToLower(title)
	overlaps := func(a, b string) bool {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}

	// exact artist first, then loose matches on both
	matches := lo.Filter(entries, func(e *offsets.Entry, _ int) bool {
		return strings.ToLower(e.Artist) == artist && overlaps(strings.ToLower(e.Title), title)
	})
	if len(matches) == 0 {
		matches = lo.Filter(entries, func(e *offsets.Entry, _ int) bool {
			return overlaps(strings.ToLower(e.Artist), artist) && overlaps(strings.ToLower(e.Title), title)
		})
	}

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return matches
}

func sortEntries(entries []*offsets.Entry, sortBy string) {
	switch sortBy {
	case "artist":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Artist) < strings.ToLower(entries[j].Artist)
		})
	case "title":
		sort.SliceStable(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].Title) < strings.ToLower(entries[j].Title)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].UpdatedAt > entries[j].UpdatedAt
		})
	}
}
