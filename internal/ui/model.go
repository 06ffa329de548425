package ui

import (
	"context"
	"image"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/lyricsync/internal/artwork"
	"karolbroda.com/lyricsync/internal/controller"
	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/terminal"
)

const (
	frameInterval  = 60 * time.Millisecond
	artworkTimeout = 5 * time.Second
)

// Controller is the part of the sync controller the view drives.
type Controller interface {
	Snapshots() <-chan controller.Snapshot
	Current() controller.Snapshot
	NotifyManualScroll()
	SnapToCurrent()
	AdjustSyncOffset(delta float64) float64
	SetSyncOffset(offset float64)
	ToggleSyncedLyrics() bool
}

type ArtworkLoader func(ctx context.Context, url string) (image.Image, error)

type FrameMsg time.Time

type SnapshotMsg struct {
	Snapshot controller.Snapshot
}

type snapshotsClosedMsg struct{}

type ArtworkMsg struct {
	URL     string
	Image   image.Image
	Palette *artwork.Palette
	Err     error
}

type Config struct {
	Controller Controller
	HideHeader bool
	TermCaps   *terminal.Capabilities
	// LoadArtwork defaults to fetching over http with a short timeout.
	LoadArtwork ArtworkLoader
}

type Model struct {
	ctrl        Controller
	loadArtwork ArtworkLoader
	hideHeader  bool
	termCaps    *terminal.Capabilities

	snap       controller.Snapshot
	artworkURL string
	image      image.Image
	palette    *artwork.Palette
	scroll     ScrollAnim
	// set by a manual scroll; targets already in flight are ignored until
	// the user snaps back or the session changes
	manual bool
	notice string

	quitting  bool
	width     int
	height    int
	tickCount int
}

func NewModel(cfg Config) Model {
	m := Model{
		ctrl:        cfg.Controller,
		loadArtwork: cfg.LoadArtwork,
		hideHeader:  cfg.HideHeader,
		termCaps:    cfg.TermCaps,
		palette:     artwork.DefaultPalette(),
	}

	if m.loadArtwork == nil {
		client := &http.Client{Timeout: artworkTimeout}
		m.loadArtwork = func(ctx context.Context, url string) (image.Image, error) {
			return artwork.Fetch(ctx, client, url)
		}
	}
	if m.termCaps == nil {
		m.termCaps = terminal.DetectCapabilities()
	}
	if m.ctrl != nil {
		m.snap = m.ctrl.Current()
	} else {
		m.snap = controller.Snapshot{Active: lyrics.NoLine, ScrollTo: lyrics.NoLine}
	}

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(frameCmd(), m.waitForSnapshot())
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

func (m Model) waitForSnapshot() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}

	ch := m.ctrl.Snapshots()
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return snapshotsClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (m Model) fetchArtworkCmd(url string) tea.Cmd {
	load := m.loadArtwork
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artworkTimeout)
		defer cancel()

		img, err := load(ctx, url)
		if err != nil {
			return ArtworkMsg{URL: url, Err: err}
		}
		return ArtworkMsg{URL: url, Image: img, Palette: artwork.ExtractPalette(img)}
	}
}

func (m Model) Snapshot() controller.Snapshot { return m.snap }
func (m Model) Palette() *artwork.Palette     { return m.palette }
func (m Model) ScrollPosition() float64       { return m.scroll.Position }
func (m Model) HideHeader() bool              { return m.hideHeader }
func (m Model) IsQuitting() bool              { return m.quitting }
