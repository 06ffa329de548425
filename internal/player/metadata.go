package player

import (
	"time"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyricsync/internal/track"
)

func parseMetadata(metadata map[string]dbus.Variant) *track.Info {
	info := &track.Info{
		Title:      extractString(metadata, "xesam:title"),
		Artist:     extractArtist(metadata, "xesam:artist"),
		Album:      extractString(metadata, "xesam:album"),
		ArtworkURL: extractString(metadata, "mpris:artUrl"),
		TrackID:    extractTrackID(metadata, "mpris:trackid"),
	}

	if variant, ok := metadata["mpris:length"]; ok {
		if micros, ok := asMicroseconds(variant.Value()); ok && micros > 0 {
			info.Duration = time.Duration(micros) * time.Microsecond
		}
	}

	return info
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	text, ok := variant.Value().(string)
	if ok {
		return text
	}

	return ""
}

// extractTrackID accepts both the object path MPRIS mandates and
// the plain string some players send.
func extractTrackID(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case dbus.ObjectPath:
		return string(typed)
	case string:
		return typed
	default:
		return ""
	}
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

// asMicroseconds normalises the integer types players use for lengths and
// positions. Negative values are treated as zero.
func asMicroseconds(raw any) (int64, bool) {
	var micros int64
	switch typed := raw.(type) {
	case int64:
		micros = typed
	case uint64:
		micros = int64(typed)
	case int32:
		micros = int64(typed)
	case uint32:
		micros = int64(typed)
	case float64:
		micros = int64(typed)
	default:
		return 0, false
	}

	if micros < 0 {
		micros = 0
	}
	return micros, true
}

func microsToSeconds(micros int64) float64 {
	return float64(micros) / 1e6
}
