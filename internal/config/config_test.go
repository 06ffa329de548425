package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MPRIS_SERVICE", "LRCLIB_GET_URL", "SYNC_OFFSET", "HIDE_HEADER", "SYNCED_LYRICS",
		"TICK_INTERVAL", "RESYNC_INTERVAL", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Path)
	require.Equal(t, DefaultMprisService, cfg.MprisService)
	require.Equal(t, DefaultLrclibGetURL, cfg.LrclibURL)
	require.True(t, cfg.EnableSyncedLyrics)
	require.Equal(t, DefaultTickInterval, cfg.TickInterval)
	require.Equal(t, DefaultResyncInterval, cfg.ResyncInterval)
	require.Equal(t, DefaultQueryTimeout, cfg.QueryTimeout)
}

func TestLoadFrom_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), `
[player]
service = "org.mpris.MediaPlayer2.mpv"

[lyrics]
synced_lyrics = false
sync_offset = -0.4

[sync]
tick_interval = "50ms"
resync_interval = "5s"

[ui]
hide_header = true

[data]
dir = "/tmp/lyricsync-data"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path)
	require.Equal(t, "org.mpris.MediaPlayer2.mpv", cfg.MprisService)
	require.False(t, cfg.EnableSyncedLyrics)
	require.Equal(t, -0.4, cfg.SyncOffset)
	require.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	require.Equal(t, 5*time.Second, cfg.ResyncInterval)
	require.Equal(t, DefaultQueryTimeout, cfg.QueryTimeout)
	require.True(t, cfg.HideHeader)
	require.Equal(t, "/tmp/lyricsync-data/offsets.db", cfg.OffsetsPath())
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), `
[player]
service = "org.mpris.MediaPlayer2.mpv"
[lyrics]
sync_offset = 1.5
`)
	t.Setenv("MPRIS_SERVICE", "org.mpris.MediaPlayer2.spotify")
	t.Setenv("SYNC_OFFSET", "0.25")
	t.Setenv("SYNCED_LYRICS", "no")
	t.Setenv("HIDE_HEADER", "yes")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, "org.mpris.MediaPlayer2.spotify", cfg.MprisService)
	require.Equal(t, 0.25, cfg.SyncOffset)
	require.False(t, cfg.EnableSyncedLyrics)
	require.True(t, cfg.HideHeader)
}

func TestLoadFrom_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadFrom(writeConfig(t, dir, "[player\nservice ="))
	require.Error(t, err)

	_, err = LoadFrom(writeConfig(t, dir, "[sync]\ntick_interval = \"-1s\""))
	require.ErrorContains(t, err, "sync.tick_interval")

	t.Setenv("SYNC_OFFSET", "abc")
	_, err = LoadFrom(filepath.Join(dir, "missing.toml"))
	require.ErrorContains(t, err, "SYNC_OFFSET")
}

func TestDefaultPath_FollowsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	require.Equal(t, "/xdg/config/lyricsync/config.toml", DefaultPath())

	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	require.Equal(t, "/xdg/state/lyricsync/lyricsync.log", Defaults().LogFile)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "[lyrics]\nsynced_lyrics = true\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }))

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	writeConfig(t, dir, "[lyrics]\nsynced_lyrics = false\nsync_offset = 0.7\n")

	select {
	case cfg := <-reloaded:
		require.False(t, cfg.EnableSyncedLyrics)
		require.Equal(t, 0.7, cfg.SyncOffset)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "config.toml"), func(*Config) {})
	require.Error(t, err)
}
