// Package position keeps a smooth playback position between infrequent,
// authoritative reads from the player.
package position

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTickInterval   = 67 * time.Millisecond
	DefaultResyncInterval = 3 * time.Second
	DefaultQueryTimeout   = time.Second
)

// Source answers "where is the player right now", in seconds. Calls may be
// slow or fail.
type Source interface {
	Position(ctx context.Context) (float64, error)
}

type SourceFunc func(ctx context.Context) (float64, error)

func (f SourceFunc) Position(ctx context.Context) (float64, error) {
	return f(ctx)
}

// Sample is one published estimate.
type Sample struct {
	Position float64
	At       time.Time
	Playing  bool
}

type TickFunc func(Sample)

type Options struct {
	TickInterval   time.Duration
	ResyncInterval time.Duration
	QueryTimeout   time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.ResyncInterval <= 0 {
		o.ResyncInterval = DefaultResyncInterval
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Estimator extrapolates from the last authoritative sample while playing.
// A fast ticker publishes estimates; a slow ticker re-queries the Source to
// bound drift.
type Estimator struct {
	source Source
	opts   Options

	mu         sync.RWMutex
	synced     float64
	syncedAt   time.Time
	playing    bool
	generation uint64
	// issue time of the applied reference; older results lose
	order time.Time

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(source Source, opts Options) *Estimator {
	return &Estimator{
		source: source,
		opts:   opts.withDefaults(),
	}
}

// Begin starts tracking a new track: any running loop is cancelled and
// awaited, one authoritative sample is taken (0 when the query fails), and
// then the tick and resync loop starts. onTick may be nil.
func (e *Estimator) Begin(ctx context.Context, playing bool, onTick TickFunc) {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	e.haltLocked()

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	issued := e.opts.Now()
	pos, err := e.query(ctx)
	if err != nil {
		log.Debug().Str("component", "estimator").Err(err).Msg("initial position query failed, starting at zero")
		pos = 0
	}
	at := midpoint(issued, e.opts.Now())

	e.mu.Lock()
	e.synced = clampPosition(pos)
	e.syncedAt = at
	e.order = issued
	e.playing = playing
	e.mu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	log.Debug().
		Str("component", "estimator").
		Uint64("generation", gen).
		Float64("position", pos).
		Bool("playing", playing).
		Msg("tracking started")

	go e.run(loopCtx, gen, onTick, done)
}

// Halt cancels both periodic triggers and waits for the loop to exit. The
// position is frozen at its current estimate. Safe to call repeatedly.
func (e *Estimator) Halt() {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	e.haltLocked()
}

func (e *Estimator) haltLocked() {
	if e.cancel == nil {
		return
	}

	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil

	now := e.opts.Now()
	e.mu.Lock()
	// in-flight resyncs belong to the old generation and will be dropped
	e.generation++
	e.synced = e.estimateLocked(now)
	e.syncedAt = now
	e.order = now
	e.playing = false
	e.mu.Unlock()
}

func (e *Estimator) Running() bool {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	return e.cancel != nil
}

// Sync installs an authoritative sample taken at wall-clock at. A sample
// older than the one already applied is ignored. Play state is untouched.
func (e *Estimator) Sync(positionSeconds float64, at time.Time) bool {
	e.mu.RLock()
	gen := e.generation
	e.mu.RUnlock()
	return e.apply(gen, positionSeconds, at, at)
}

// SetPlaying handles a play/pause transition. known, when non-nil, is the
// position the player reported with the transition. Pausing freezes at known
// or the current estimate; resuming uses known or a fresh query, and falls
// back to the frozen value when the query fails.
func (e *Estimator) SetPlaying(ctx context.Context, playing bool, known *float64) {
	e.mu.RLock()
	current := e.playing
	e.mu.RUnlock()

	if playing == current && known == nil {
		return
	}

	if !playing {
		now := e.opts.Now()
		e.mu.Lock()
		pos := e.estimateLocked(now)
		if known != nil {
			pos = clampPosition(*known)
		}
		e.synced = pos
		e.syncedAt = now
		e.order = now
		e.playing = false
		e.mu.Unlock()
		return
	}

	var pos float64
	fresh := false
	if known != nil {
		pos, fresh = *known, true
	} else {
		p, err := e.query(ctx)
		if err != nil {
			log.Debug().Str("component", "estimator").Err(err).Msg("resume query failed, continuing from frozen position")
		} else {
			pos, fresh = p, true
		}
	}

	now := e.opts.Now()
	e.mu.Lock()
	if fresh {
		e.synced = clampPosition(pos)
	} else {
		e.synced = e.estimateLocked(now)
	}
	e.syncedAt = now
	e.order = now
	e.playing = true
	e.mu.Unlock()
}

func (e *Estimator) Estimate() float64 {
	return e.EstimateAt(e.opts.Now())
}

func (e *Estimator) EstimateAt(t time.Time) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.estimateLocked(t)
}

func (e *Estimator) Snapshot() Sample {
	now := e.opts.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Sample{
		Position: e.estimateLocked(now),
		At:       now,
		Playing:  e.playing,
	}
}

func (e *Estimator) Playing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.playing
}

func (e *Estimator) estimateLocked(t time.Time) float64 {
	if !e.playing {
		return e.synced
	}
	return clampPosition(e.synced + t.Sub(e.syncedAt).Seconds())
}

func (e *Estimator) run(ctx context.Context, gen uint64, onTick TickFunc, done chan struct{}) {
	defer close(done)

	fast := time.NewTicker(e.opts.TickInterval)
	defer fast.Stop()
	slow := time.NewTicker(e.opts.ResyncInterval)
	defer slow.Stop()

	e.emit(onTick)

	for {
		select {
		case <-ctx.Done():
			return
		case <-fast.C:
			// both cases can be ready at once; never tick after cancel
			if ctx.Err() != nil {
				return
			}
			e.emit(onTick)
		case <-slow.C:
			if ctx.Err() != nil {
				return
			}
			go e.resync(ctx, gen)
		}
	}
}

func (e *Estimator) emit(onTick TickFunc) {
	if onTick == nil {
		return
	}
	onTick(e.Snapshot())
}

// resync runs outside the loop so a hung query never delays a tick.
func (e *Estimator) resync(ctx context.Context, gen uint64) {
	issued := e.opts.Now()
	pos, err := e.query(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Debug().Str("component", "estimator").Err(err).Msg("resync failed, extrapolating")
		}
		return
	}

	if !e.apply(gen, pos, midpoint(issued, e.opts.Now()), issued) {
		log.Debug().
			Str("component", "estimator").
			Uint64("generation", gen).
			Float64("position", pos).
			Msg("discarded stale resync")
	}
}

func (e *Estimator) apply(gen uint64, pos float64, at time.Time, issued time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || issued.Before(e.order) {
		return false
	}

	e.synced = clampPosition(pos)
	e.syncedAt = at
	e.order = issued
	return true
}

// midpoint is when a queried position was most likely read: halfway
// through the round trip.
func midpoint(issued, completed time.Time) time.Time {
	return issued.Add(completed.Sub(issued) / 2)
}

func (e *Estimator) query(ctx context.Context) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()
	return e.source.Position(qctx)
}

func clampPosition(p float64) float64 {
	if p < 0 || p != p {
		return 0
	}
	return p
}
