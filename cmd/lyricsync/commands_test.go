package main

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/offsets"
)

func TestFormatStamp(t *testing.T) {
	require.Equal(t, "0:00.00", formatStamp(0))
	require.Equal(t, "1:05.25", formatStamp(65.25))
	require.Equal(t, "2:00.00", formatStamp(119.999))
}

func TestPreviewLines(t *testing.T) {
	idx := lyrics.NewIndex([]lyrics.Line{
		{TimeSeconds: 9, Text: "three"},
		{TimeSeconds: 1, Text: "one"},
		{TimeSeconds: 5.5, Text: ""},
	})

	lines := previewLines(idx, 6)
	require.Equal(t, []string{
		"  [0:01.00] one",
		"▶ [0:05.50] ♪",
		"  [0:09.00] three",
	}, lines)

	for _, line := range previewLines(idx, math.NaN()) {
		require.NotContains(t, line, "▶")
	}
	for _, line := range previewLines(idx, 0.5) {
		require.NotContains(t, line, "▶", "nothing is active before the first line")
	}
}

func TestSimilarEntries(t *testing.T) {
	entries := []*offsets.Entry{
		{Artist: "Band", Title: "Song (Live)"},
		{Artist: "Band", Title: "Other"},
		{Artist: "The Band", Title: "Song"},
	}

	got := similarEntries(entries, "band", "song")
	require.Len(t, got, 1)
	require.Equal(t, "Song (Live)", got[0].Title)

	got = similarEntries(entries, "the band", "song")
	require.Len(t, got, 1)
	require.Equal(t, "The Band", got[0].Artist)

	require.Empty(t, similarEntries(entries, "nobody", "nothing"))
}

func TestLookupEntry_Suggests(t *testing.T) {
	store, err := offsets.Open(filepath.Join(t.TempDir(), "offsets.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set("Band", "Song (Live)", 0.5))

	entry, err := lookupEntry(store, "band", "song (live)")
	require.NoError(t, err)
	require.Equal(t, 0.5, entry.Offset)

	_, err = lookupEntry(store, "Band", "Song")
	require.ErrorContains(t, err, "did you mean")
	require.ErrorContains(t, err, "Band - Song (Live)")

	_, err = lookupEntry(store, "Nobody", "Nothing")
	require.ErrorContains(t, err, "no offset remembered")
}

func TestSortEntries(t *testing.T) {
	entries := []*offsets.Entry{
		{Artist: "b", Title: "y", UpdatedAt: 1},
		{Artist: "A", Title: "z", UpdatedAt: 3},
		{Artist: "c", Title: "x", UpdatedAt: 2},
	}

	sortEntries(entries, "artist")
	require.Equal(t, "A", entries[0].Artist)

	sortEntries(entries, "title")
	require.Equal(t, "x", entries[0].Title)

	sortEntries(entries, "date")
	require.Equal(t, int64(3), entries[0].UpdatedAt)
}
