// Package controller binds a lyric index to a live position estimate and
// produces render snapshots, including the auto-scroll state that cooperates
// with manual scrolling.
package controller

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/position"
	"karolbroda.com/lyricsync/internal/track"
)

const DefaultFetchTimeout = 30 * time.Second

type Estimator interface {
	Begin(ctx context.Context, playing bool, onTick position.TickFunc)
	Halt()
	SetPlaying(ctx context.Context, playing bool, known *float64)
	Sync(positionSeconds float64, at time.Time) bool
	Estimate() float64
}

type Supply interface {
	FetchLyrics(ctx context.Context, trk *track.Info) (*lyrics.Payload, error)
}

// OffsetStore remembers the sync offset a user picked for a track.
type OffsetStore interface {
	Lookup(trk *track.Info) (float64, bool)
	Remember(trk *track.Info, offset float64) error
}

type EventSource interface {
	Events() <-chan track.Event
}

type Options struct {
	EnableSyncedLyrics bool
	// SyncOffset applies to tracks without a remembered offset.
	SyncOffset   float64
	Offsets      OffsetStore
	FetchTimeout time.Duration
	Now          func() time.Time
}

type autoScroll struct {
	enabled      bool
	lastScrolled int
}

type Controller struct {
	est          Estimator
	supply       Supply
	offsets      OffsetStore
	fetchTimeout time.Duration
	now          func() time.Time

	// trackMu serializes track-level transitions and is never taken on the
	// tick path.
	trackMu     sync.Mutex
	fetchCancel context.CancelFunc
	fetches     sync.WaitGroup
	closed      bool

	mu            sync.Mutex
	gen           uint64
	mode          Mode
	track         *track.Info
	session       string
	index         *lyrics.Index
	plain         []string
	position      float64
	playing       bool
	active        int
	auto          autoScroll
	syncOffset    float64
	defaultOffset float64
	syncedEnabled bool
	trackSynced   bool
	err           error
	current       Snapshot
	done          bool

	snapshots chan Snapshot
}

func New(est Estimator, supply Supply, opts Options) *Controller {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		est:           est,
		supply:        supply,
		offsets:       opts.Offsets,
		fetchTimeout:  opts.FetchTimeout,
		now:           opts.Now,
		mode:          ModeIdle,
		active:        lyrics.NoLine,
		auto:          autoScroll{enabled: true, lastScrolled: lyrics.NoLine},
		syncOffset:    opts.SyncOffset,
		defaultOffset: opts.SyncOffset,
		syncedEnabled: opts.EnableSyncedLyrics,
		snapshots:     make(chan Snapshot, 1),
	}
	c.current = c.snapshotLocked(lyrics.NoLine)
	return c
}

// Snapshots delivers render states. Only the latest unread snapshot is kept;
// a pending scroll target survives being replaced.
func (c *Controller) Snapshots() <-chan Snapshot {
	return c.snapshots
}

// Current returns the latest render state without a scroll target.
func (c *Controller) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.current
	snap.ScrollTo = lyrics.NoLine
	return snap
}

// Run feeds events from src into the controller until ctx is done or the
// source closes.
func (c *Controller) Run(ctx context.Context, src EventSource) error {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(ctx, ev)
		}
	}
}

func (c *Controller) Handle(ctx context.Context, ev track.Event) {
	log.Debug().Str("component", "controller").Stringer("event", ev.Kind).Msg("player event")

	switch ev.Kind {
	case track.EventTrackChanged:
		c.TrackChanged(ctx, ev.Track)
	case track.EventPlayPause:
		var known *float64
		if ev.HasPosition {
			known = lo.ToPtr(ev.Position)
		}
		c.PlayPauseChanged(ctx, ev.Playing, known)
	case track.EventSeeked:
		if ev.HasPosition {
			c.Seeked(ev.Position)
		}
	}
}

// TrackChanged resets all per-track state, restarts position tracking and
// requests lyrics in the background. A nil or incomplete track puts the
// controller into idle mode.
func (c *Controller) TrackChanged(ctx context.Context, trk *track.Info) {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()

	if c.closed {
		return
	}

	c.cancelFetchLocked()
	c.est.Halt()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.index = nil
	c.plain = nil
	c.position = 0
	c.active = lyrics.NoLine
	c.auto = autoScroll{enabled: true, lastScrolled: lyrics.NoLine}
	c.err = nil

	if !trk.IsValid() {
		c.track = nil
		c.session = ""
		c.playing = false
		c.mode = ModeIdle
		c.syncOffset = c.defaultOffset
		c.publishLocked(lyrics.NoLine)
		c.mu.Unlock()
		log.Info().Str("component", "controller").Msg("no track playing")
		return
	}

	trackCopy := *trk
	c.track = &trackCopy
	c.session = uuid.NewString()
	c.playing = trk.Playing
	c.mode = ModeLoading
	c.trackSynced = c.syncedEnabled
	c.syncOffset = c.defaultOffset
	if c.offsets != nil {
		if offset, ok := c.offsets.Lookup(&trackCopy); ok {
			c.syncOffset = offset
		}
	}
	session := c.session
	c.publishLocked(lyrics.NoLine)
	c.mu.Unlock()

	log.Info().
		Str("component", "controller").
		Str("session", session).
		Str("track", trackCopy.String()).
		Bool("playing", trackCopy.Playing).
		Msg("track changed")

	c.est.Begin(ctx, trackCopy.Playing, func(s position.Sample) {
		c.onTick(gen, s)
	})

	fetchCtx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	c.fetchCancel = cancel
	c.fetches.Add(1)
	go c.fetch(fetchCtx, cancel, gen, &trackCopy)
}

func (c *Controller) cancelFetchLocked() {
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, trk *track.Info) {
	defer c.fetches.Done()
	defer cancel()

	payload, err := c.supply.FetchLyrics(ctx, trk)
	c.completeFetch(gen, payload, err)
}

func (c *Controller) completeFetch(gen uint64, payload *lyrics.Payload, err error) {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		log.Debug().Str("component", "controller").Uint64("generation", gen).Msg("discarded stale lyrics result")
		return
	}

	switch {
	case err != nil:
		c.mode = ModeUnavailable
		c.err = err
	case payload == nil:
		c.mode = ModeUnavailable
		c.err = lyrics.ErrNoLyrics
	case payload.Instrumental:
		c.mode = ModeInstrumental
	default:
		idx := lyrics.ParseSynced(payload.SyncedLyrics)
		plain := lyrics.PlainLines(payload.PlainLyrics)
		if len(plain) == 0 {
			plain = lo.Map(idx.Lines(), func(l lyrics.Line, _ int) string { return l.Text })
		}

		switch {
		case c.trackSynced && !idx.IsEmpty():
			c.mode = ModeSynced
			c.index = idx
		case len(plain) > 0:
			c.mode = ModePlain
			c.plain = plain
		default:
			c.mode = ModeUnavailable
			c.err = lyrics.ErrNoLyrics
		}
	}

	mode := c.mode
	session := c.session
	logEvent := log.Info().Str("component", "controller").Str("session", session).Stringer("mode", mode)
	if c.err != nil {
		logEvent = logEvent.AnErr("reason", c.err)
	}
	logEvent.Msg("lyrics resolved")

	if mode == ModeSynced {
		c.position = c.est.Estimate()
		scroll := c.refreshLocked(false)
		c.publishLocked(scroll)
		c.mu.Unlock()
		return
	}

	c.publishLocked(lyrics.NoLine)
	c.mu.Unlock()

	// nothing left to track for this song
	c.est.Halt()
}

// PlayPauseChanged forwards a transport state change. known is the position
// the player reported alongside it, if any.
func (c *Controller) PlayPauseChanged(ctx context.Context, playing bool, known *float64) {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()

	if c.closed {
		return
	}

	c.mu.Lock()
	c.playing = playing
	tracking := c.mode.Tracking()
	if !tracking {
		c.publishLocked(lyrics.NoLine)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.est.SetPlaying(ctx, playing, known)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = c.est.Estimate()
	c.publishLocked(c.refreshLocked(false))
}

// Seeked applies a position the player reported out of band.
func (c *Controller) Seeked(positionSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mode.Tracking() {
		return
	}

	c.est.Sync(positionSeconds, c.now())
	c.position = c.est.Estimate()
	c.publishLocked(c.refreshLocked(false))
}

func (c *Controller) onTick(gen uint64, s position.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || !c.mode.Tracking() {
		return
	}

	c.position = s.Position
	c.playing = s.Playing
	c.publishLocked(c.refreshLocked(false))
}

// NotifyManualScroll disables auto-follow. It only matters while lyrics are
// synced.
func (c *Controller) NotifyManualScroll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeSynced || !c.auto.enabled {
		return
	}

	c.auto.enabled = false
	c.publishLocked(lyrics.NoLine)
}

// SnapToCurrent re-enables auto-follow and recenters on the active line even
// when it has not changed.
func (c *Controller) SnapToCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeSynced {
		return
	}

	c.auto.enabled = true
	c.position = c.est.Estimate()
	c.publishLocked(c.refreshLocked(true))
}

func (c *Controller) SyncOffset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncOffset
}

func (c *Controller) SetSyncOffset(offset float64) {
	c.mu.Lock()
	trk := c.setSyncOffsetLocked(offset)
	offset = c.syncOffset
	c.mu.Unlock()

	c.rememberOffset(trk, offset)
}

func (c *Controller) AdjustSyncOffset(delta float64) float64 {
	c.mu.Lock()
	trk := c.setSyncOffsetLocked(c.syncOffset + delta)
	offset := c.syncOffset
	c.mu.Unlock()

	c.rememberOffset(trk, offset)
	return offset
}

// SetDefaultSyncOffset changes the offset used for tracks without a
// remembered one. The current track keeps its offset.
func (c *Controller) SetDefaultSyncOffset(offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultOffset = roundOffset(offset)
}

func (c *Controller) setSyncOffsetLocked(offset float64) *track.Info {
	c.syncOffset = roundOffset(offset)
	if c.mode == ModeSynced {
		c.publishLocked(c.refreshLocked(false))
	} else {
		c.publishLocked(lyrics.NoLine)
	}
	return c.track
}

func (c *Controller) rememberOffset(trk *track.Info, offset float64) {
	if c.offsets == nil || !trk.IsValid() {
		return
	}
	if err := c.offsets.Remember(trk, offset); err != nil {
		log.Warn().Str("component", "controller").Err(err).Msg("failed to remember sync offset")
	}
}

// SetSyncedLyricsEnabled affects the next track; the current one keeps the
// mode it was given.
func (c *Controller) SetSyncedLyricsEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.syncedEnabled == enabled {
		return
	}
	c.syncedEnabled = enabled
	c.publishLocked(lyrics.NoLine)
}

func (c *Controller) ToggleSyncedLyrics() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.syncedEnabled = !c.syncedEnabled
	c.publishLocked(lyrics.NoLine)
	return c.syncedEnabled
}

// Close stops tracking, waits for outstanding fetches and closes the
// snapshot channel.
func (c *Controller) Close() {
	c.trackMu.Lock()
	if c.closed {
		c.trackMu.Unlock()
		return
	}
	c.closed = true
	c.cancelFetchLocked()
	c.est.Halt()
	c.trackMu.Unlock()

	c.fetches.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	close(c.snapshots)
}

// refreshLocked recomputes the active line and returns the scroll target to
// publish, or lyrics.NoLine.
func (c *Controller) refreshLocked(force bool) int {
	if c.mode != ModeSynced {
		return lyrics.NoLine
	}

	active := c.index.ActiveIndex(c.position + c.syncOffset)
	changed := active != c.active
	c.active = active

	if (!changed && !force) || !c.auto.enabled || active == lyrics.NoLine {
		return lyrics.NoLine
	}

	c.auto.lastScrolled = active
	return active
}

func (c *Controller) snapshotLocked(scrollTo int) Snapshot {
	snap := Snapshot{
		Mode:          c.mode,
		Track:         c.track,
		Session:       c.session,
		Position:      c.position,
		Playing:       c.playing,
		Active:        c.active,
		ScrollTo:      scrollTo,
		AutoScroll:    c.auto.enabled,
		SyncOffset:    c.syncOffset,
		SyncedEnabled: c.syncedEnabled,
		Err:           c.err,
		Plain:         c.plain,
	}
	if c.mode == ModeSynced {
		snap.Lines = buildLineViews(c.index, c.position+c.syncOffset, c.active)
	}
	return snap
}

func (c *Controller) publishLocked(scrollTo int) {
	if c.done {
		return
	}

	snap := c.snapshotLocked(scrollTo)
	c.current = snap

	select {
	case c.snapshots <- snap:
		return
	default:
	}

	select {
	case old := <-c.snapshots:
		// a pending target survives only while auto-follow is still on
		if snap.AutoScroll && snap.ScrollTo == lyrics.NoLine && old.ScrollTo != lyrics.NoLine && old.Session == snap.Session {
			snap.ScrollTo = old.ScrollTo
		}
	default:
	}

	select {
	case c.snapshots <- snap:
	default:
	}
}

func roundOffset(v float64) float64 {
	return math.Round(v*1000) / 1000
}
