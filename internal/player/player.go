package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"

	"karolbroda.com/lyricsync/internal/track"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"

	// TrackPollInterval is how often metadata is re-read in case the player
	// does not emit PropertiesChanged.
	TrackPollInterval = 2 * time.Second
	queryTimeout      = time.Second
)

type State struct {
	Track   *track.Info
	Playing bool
}

// Service watches one MPRIS player on the session bus and turns its signals
// into track events.
type Service struct {
	bus          *dbus.Conn
	service      string
	pollInterval time.Duration
	signalChan   chan *dbus.Signal
	stopChan     chan struct{}
	stopOnce     sync.Once
	eventChan    chan track.Event
	state        State
	mu           sync.RWMutex
}

func NewService(bus *dbus.Conn, mprisService string) (*Service, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if mprisService == "" {
		return nil, errors.New("empty mpris service name")
	}

	return newService(bus, mprisService), nil
}

func newService(bus *dbus.Conn, mprisService string) *Service {
	return &Service{
		bus:          bus,
		service:      mprisService,
		pollInterval: TrackPollInterval,
		stopChan:     make(chan struct{}),
		eventChan:    make(chan track.Event, 16),
	}
}

func (s *Service) Name() string {
	return s.service
}

// Start subscribes to player signals, reports the track that is already
// playing and begins the metadata poll fallback.
func (s *Service) Start(ctx context.Context) error {
	signalChan := make(chan *dbus.Signal, 10)
	s.signalChan = signalChan
	s.bus.Signal(signalChan)

	matchPropertiesChanged := fmt.Sprintf(
		"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
		s.service, mprisPath,
	)
	matchSeeked := fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
		s.service, mprisPlayerIface, mprisPath,
	)

	var matchErr error
	for _, rule := range []string{matchPropertiesChanged, matchSeeked} {
		call := s.bus.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.AddMatch", 0, rule)
		if call.Err != nil {
			matchErr = fmt.Errorf("failed to add match %q: %w", rule, call.Err)
			break
		}
	}
	if matchErr == nil {
		go s.signalLoop()
	}

	if err := s.Poll(ctx); err != nil {
		log.Debug().Str("component", "player").Err(err).Msg("initial poll failed")
	}
	go s.pollLoop()

	return matchErr
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.signalChan != nil {
			s.bus.RemoveSignal(s.signalChan)
		}
	})
}

func (s *Service) Events() <-chan track.Event {
	return s.eventChan
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{Playing: s.state.Playing}
	if s.state.Track != nil {
		trackCopy := *s.state.Track
		state.Track = &trackCopy
	}
	return state
}

func (s *Service) getProperty(ctx context.Context, name string) (dbus.Variant, error) {
	var value dbus.Variant
	obj := s.bus.Object(s.service, mprisPath)
	err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerIface, name).Store(&value)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("failed to get %s property: %w", name, err)
	}
	return value, nil
}

func (s *Service) CurrentTrack(ctx context.Context) (*track.Info, error) {
	prop, err := s.getProperty(ctx, "Metadata")
	if err != nil {
		return nil, err
	}

	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}

	info := parseMetadata(metadata)
	if !info.IsValid() {
		return nil, fmt.Errorf("missing title or artist in metadata (title=%q, artist=%q)", info.Title, info.Artist)
	}

	return info, nil
}

// Position reads the player's position in seconds with microsecond
// precision.
func (s *Service) Position(ctx context.Context) (float64, error) {
	prop, err := s.getProperty(ctx, "Position")
	if err != nil {
		return 0, err
	}

	micros, ok := asMicroseconds(prop.Value())
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}
	return microsToSeconds(micros), nil
}

func (s *Service) Playing(ctx context.Context) (bool, error) {
	prop, err := s.getProperty(ctx, "PlaybackStatus")
	if err != nil {
		return false, err
	}

	status, ok := prop.Value().(string)
	if !ok {
		return false, fmt.Errorf("unexpected playback status type %T", prop.Value())
	}
	return status == "Playing", nil
}

// Poll re-reads metadata and playback status and emits events for anything
// the signals missed.
func (s *Service) Poll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	playing, err := s.Playing(ctx)
	if err != nil {
		return err
	}

	trk, err := s.CurrentTrack(ctx)
	if err != nil {
		// nothing loaded
		trk = nil
	}

	s.updatePlaying(playing)
	s.updateTrack(trk)

	return nil
}

func (s *Service) pollLoop() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.Poll(context.Background()); err != nil {
				log.Debug().Str("component", "player").Err(err).Msg("poll failed")
			}
		}
	}
}

func (s *Service) signalLoop() {
	for {
		select {
		case sig, ok := <-s.signalChan:
			if !ok {
				return
			}
			s.handleSignal(sig)
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}

	switch sig.Name {
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		s.handlePropertiesChanged(sig)
	case mprisPlayerIface + ".Seeked":
		s.handleSeeked(sig)
	}
}

func (s *Service) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != mprisPlayerIface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	// status first so a new track carries the right playing flag
	if playbackVariant, exists := changedProps["PlaybackStatus"]; exists {
		if status, ok := playbackVariant.Value().(string); ok {
			s.updatePlaying(status == "Playing")
		}
	}

	if metadataVariant, exists := changedProps["Metadata"]; exists {
		metadata, ok := metadataVariant.Value().(map[string]dbus.Variant)
		if !ok {
			return
		}

		info := parseMetadata(metadata)
		if !info.IsValid() {
			info = nil
		}
		s.updateTrack(info)
	}
}

func (s *Service) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}

	micros, ok := asMicroseconds(sig.Body[0])
	if !ok {
		return
	}

	s.emitEvent(track.Event{
		Kind:        track.EventSeeked,
		Position:    microsToSeconds(micros),
		HasPosition: true,
	})
}

func (s *Service) updatePlaying(playing bool) {
	s.mu.Lock()
	if s.state.Playing == playing {
		s.mu.Unlock()
		return
	}
	s.state.Playing = playing
	if s.state.Track != nil {
		s.state.Track.Playing = playing
	}
	s.mu.Unlock()

	s.emitEvent(track.Event{Kind: track.EventPlayPause, Playing: playing})
}

// updateTrack emits a change only when the track identity differs; players
// resend metadata for artwork and rating updates.
func (s *Service) updateTrack(info *track.Info) {
	s.mu.Lock()
	if info.IsSameTrack(s.state.Track) {
		s.mu.Unlock()
		return
	}

	var event track.Event
	event.Kind = track.EventTrackChanged
	event.Playing = s.state.Playing
	if info != nil {
		info.Playing = s.state.Playing
		trackCopy := *info
		s.state.Track = info
		event.Track = &trackCopy
	} else {
		s.state.Track = nil
	}
	s.mu.Unlock()

	s.emitEvent(event)
}

func (s *Service) emitEvent(event track.Event) {
	select {
	case s.eventChan <- event:
	default:
		log.Warn().Str("component", "player").Stringer("event", event.Kind).Msg("event queue full, dropping event")
	}
}
