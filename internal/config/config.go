package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

const (
	AppName             = "lyricsync"
	DefaultMprisService = "org.mpris.MediaPlayer2.spotify"
	DefaultLrclibGetURL = "https://lrclib.net/api/get"
	DefaultLogLevel     = "info"

	DefaultTickInterval   = 67 * time.Millisecond
	DefaultResyncInterval = 3 * time.Second
	DefaultQueryTimeout   = time.Second
)

type Config struct {
	MprisService       string
	LrclibURL          string
	SyncOffset         float64
	HideHeader         bool
	EnableSyncedLyrics bool
	TickInterval       time.Duration
	ResyncInterval     time.Duration
	QueryTimeout       time.Duration
	LogLevel           string
	LogFile            string
	DataDir            string

	// Path is the config file that was read, empty when none exists.
	Path string
}

// fileConfig mirrors config.toml. Pointers distinguish "unset" from a zero
// value the user wrote on purpose.
type fileConfig struct {
	Player struct {
		Service string `toml:"service"`
	} `toml:"player"`

	Lyrics struct {
		LrclibURL    string   `toml:"lrclib_url"`
		SyncedLyrics *bool    `toml:"synced_lyrics"`
		SyncOffset   *float64 `toml:"sync_offset"`
	} `toml:"lyrics"`

	Sync struct {
		TickInterval   string `toml:"tick_interval"`
		ResyncInterval string `toml:"resync_interval"`
		QueryTimeout   string `toml:"query_timeout"`
	} `toml:"sync"`

	UI struct {
		HideHeader *bool `toml:"hide_header"`
	} `toml:"ui"`

	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`

	Data struct {
		Dir string `toml:"dir"`
	} `toml:"data"`
}

func Defaults() *Config {
	return &Config{
		MprisService:       DefaultMprisService,
		LrclibURL:          DefaultLrclibGetURL,
		EnableSyncedLyrics: true,
		TickInterval:       DefaultTickInterval,
		ResyncInterval:     DefaultResyncInterval,
		QueryTimeout:       DefaultQueryTimeout,
		LogLevel:           DefaultLogLevel,
		LogFile:            filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), AppName, AppName+".log"),
		DataDir:            filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), AppName),
	}
}

// DefaultPath is $XDG_CONFIG_HOME/lyricsync/config.toml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), AppName, "config.toml")
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{homeDir}, fallback...)...)
}

// Load reads defaults, then the default config file, then the environment.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom is Load with an explicit file. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	if path == "" {
		return nil
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("component", "config").Str("path", path).Msg("config file not found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	c.Path = path

	if fc.Player.Service != "" {
		c.MprisService = fc.Player.Service
	}
	if fc.Lyrics.LrclibURL != "" {
		c.LrclibURL = fc.Lyrics.LrclibURL
	}
	if fc.Lyrics.SyncedLyrics != nil {
		c.EnableSyncedLyrics = *fc.Lyrics.SyncedLyrics
	}
	if fc.Lyrics.SyncOffset != nil {
		c.SyncOffset = *fc.Lyrics.SyncOffset
	}
	if fc.UI.HideHeader != nil {
		c.HideHeader = *fc.UI.HideHeader
	}
	if fc.Log.Level != "" {
		c.LogLevel = fc.Log.Level
	}
	if fc.Log.File != "" {
		c.LogFile = fc.Log.File
	}
	if fc.Data.Dir != "" {
		c.DataDir = fc.Data.Dir
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"sync.tick_interval", fc.Sync.TickInterval, &c.TickInterval},
		{"sync.resync_interval", fc.Sync.ResyncInterval, &c.ResyncInterval},
		{"sync.query_timeout", fc.Sync.QueryTimeout, &c.QueryTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := parsePositiveDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.key, path, err)
		}
		*d.dst = parsed
	}

	log.Debug().Str("component", "config").Str("path", path).Msg("loaded config file")
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("MPRIS_SERVICE"); ok {
		c.MprisService = v
	}
	if v, ok := lookupEnv("LRCLIB_GET_URL"); ok {
		c.LrclibURL = v
	}
	if v, ok := lookupEnv("SYNC_OFFSET"); ok {
		offset, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SYNC_OFFSET %q: %w", v, err)
		}
		c.SyncOffset = offset
	}
	if v, ok := lookupEnv("HIDE_HEADER"); ok {
		c.HideHeader = parseBool(v)
	}
	if v, ok := lookupEnv("SYNCED_LYRICS"); ok {
		c.EnableSyncedLyrics = parseBool(v)
	}
	if v, ok := lookupEnv("TICK_INTERVAL"); ok {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	if v, ok := lookupEnv("RESYNC_INTERVAL"); ok {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RESYNC_INTERVAL: %w", err)
		}
		c.ResyncInterval = d
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("LOG_FILE"); ok {
		c.LogFile = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// OffsetsPath is where per-track sync offsets are stored.
func (c *Config) OffsetsPath() string {
	return filepath.Join(c.DataDir, "offsets.db")
}
