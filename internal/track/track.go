package track

import "time"

type Info struct {
	Title      string
	Artist     string
	Album      string
	Duration   time.Duration
	ArtworkURL string
	TrackID    string
	Playing    bool
}

func (t *Info) IsValid() bool {
	if t == nil {
		return false
	}
	return t.Title != "" && t.Artist != ""
}

func (t *Info) IsSameTrack(other *Info) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.TrackID != "" && other.TrackID != "" {
		return t.TrackID == other.TrackID
	}
	return t.Title == other.Title && t.Artist == other.Artist
}

// KnownDuration reports the track length in seconds. Players that do not
// publish a length leave Duration at zero.
func (t *Info) KnownDuration() (float64, bool) {
	if t == nil || t.Duration <= 0 {
		return 0, false
	}
	return t.Duration.Seconds(), true
}

func (t *Info) String() string {
	if t == nil {
		return ""
	}
	return t.Artist + " - " + t.Title
}

type EventKind int

const (
	EventTrackChanged EventKind = iota
	EventPlayPause
	EventSeeked
)

func (k EventKind) String() string {
	switch k {
	case EventTrackChanged:
		return "track-changed"
	case EventPlayPause:
		return "play-pause"
	case EventSeeked:
		return "seeked"
	default:
		return "unknown"
	}
}

// Event is what a transport delivers to the sync controller. Track is nil on
// EventTrackChanged when the player has nothing loaded.
type Event struct {
	Kind        EventKind
	Track       *Info
	Playing     bool
	Position    float64
	HasPosition bool
}
