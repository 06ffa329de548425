package controller

import (
	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/track"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeLoading
	ModeSynced
	ModePlain
	ModeUnavailable
	ModeInstrumental
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeLoading:
		return "loading"
	case ModeSynced:
		return "synced"
	case ModePlain:
		return "plain"
	case ModeUnavailable:
		return "unavailable"
	case ModeInstrumental:
		return "instrumental"
	default:
		return "unknown"
	}
}

// Tracking reports whether the position estimator runs in this mode.
func (m Mode) Tracking() bool {
	return m == ModeLoading || m == ModeSynced
}

type VisualState int

const (
	StatePast VisualState = iota
	StateCurrent
	StateFuture
)

func (s VisualState) String() string {
	switch s {
	case StatePast:
		return "past"
	case StateCurrent:
		return "current"
	case StateFuture:
		return "future"
	default:
		return "unknown"
	}
}

type LineView struct {
	Index       int
	TimeSeconds float64
	Text        string
	State       VisualState
}

// Snapshot is one render state for the presentation layer. ScrollTo is
// lyrics.NoLine unless the viewport should recenter on that line.
type Snapshot struct {
	Mode          Mode
	Track         *track.Info
	Session       string
	Position      float64
	Playing       bool
	Lines         []LineView
	Plain         []string
	Active        int
	ScrollTo      int
	AutoScroll    bool
	SyncOffset    float64
	SyncedEnabled bool
	Err           error
}

func buildLineViews(idx *lyrics.Index, pos float64, active int) []LineView {
	if idx.IsEmpty() {
		return nil
	}

	views := make([]LineView, idx.Len())
	for i := range views {
		line := idx.Line(i)
		state := StatePast
		switch {
		case i == active:
			state = StateCurrent
		case line.TimeSeconds > pos:
			state = StateFuture
		}
		views[i] = LineView{
			Index:       i,
			TimeSeconds: line.TimeSeconds,
			Text:        line.Text,
			State:       state,
		}
	}
	return views
}
