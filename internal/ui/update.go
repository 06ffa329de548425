package ui

import (
	"fmt"
	"math"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"karolbroda.com/lyricsync/internal/artwork"
	"karolbroda.com/lyricsync/internal/controller"
	"karolbroda.com/lyricsync/internal/lyrics"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg.Snapshot)

	case snapshotsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case ArtworkMsg:
		return m.handleArtwork(msg)

	case FrameMsg:
		m.tickCount++
		m.scroll.Step()
		return m, frameCmd()
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		m.scrollBy(-1)
	case "down", "j":
		m.scrollBy(1)
	case "pgup", "ctrl+u":
		m.scrollBy(-m.pageSize())
	case "pgdown", "ctrl+d":
		m.scrollBy(m.pageSize())
	case "home", "g":
		m.scrollBy(-m.lineCount())
	case "end", "G":
		m.scrollBy(m.lineCount())

	case "c", " ":
		m.manual = false
		if m.ctrl != nil {
			m.ctrl.SnapToCurrent()
		}

	case "]":
		m.adjustOffset(0.1)
	case "[":
		m.adjustOffset(-0.1)
	case "}":
		m.adjustOffset(0.5)
	case "{":
		m.adjustOffset(-0.5)
	case "0":
		if m.ctrl != nil {
			m.ctrl.SetSyncOffset(0)
			m.notice = "offset reset"
		}

	case "tab", "i":
		m.hideHeader = !m.hideHeader

	case "s":
		if m.ctrl != nil {
			if m.ctrl.ToggleSyncedLyrics() {
				m.notice = "synced lyrics on from next track"
			} else {
				m.notice = "synced lyrics off from next track"
			}
		}
	}

	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.scrollBy(-1)
	case tea.MouseButtonWheelDown:
		m.scrollBy(1)
	}
	return m, nil
}

func (m *Model) adjustOffset(delta float64) {
	if m.ctrl == nil {
		return
	}
	offset := m.ctrl.AdjustSyncOffset(delta)
	m.notice = fmt.Sprintf("offset %+.1fs", offset)
}

func (m Model) lineCount() int {
	switch m.snap.Mode {
	case controller.ModeSynced:
		return len(m.snap.Lines)
	case controller.ModePlain:
		return len(m.snap.Plain)
	default:
		return 0
	}
}

func (m Model) pageSize() int {
	return max(1, m.lyricsHeight()/4)
}

// scrollBy moves the viewport by whole lines. While synced this is a manual
// scroll and stops auto-follow until the user snaps back.
func (m *Model) scrollBy(delta int) {
	n := m.lineCount()
	if n == 0 || delta == 0 {
		return
	}

	target := clamp(math.Round(m.scroll.Target())+float64(delta), 0, float64(n-1))
	m.scroll.MoveTo(target)

	if m.snap.Mode == controller.ModeSynced {
		m.manual = true
		if m.ctrl != nil {
			m.ctrl.NotifyManualScroll()
		}
	}
}

func (m Model) handleSnapshot(snap controller.Snapshot) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitForSnapshot()}

	if snap.Session != m.snap.Session {
		m.scroll.Jump(0)
		m.manual = false
		m.notice = ""
	}
	m.snap = snap

	url := ""
	if snap.Track != nil {
		url = snap.Track.ArtworkURL
	}
	if url != m.artworkURL {
		m.artworkURL = url
		m.image = nil
		m.palette = artwork.DefaultPalette()
		if url != "" {
			cmds = append(cmds, m.fetchArtworkCmd(url))
		}
	}

	if m.following() && snap.ScrollTo != lyrics.NoLine {
		m.scroll.MoveTo(float64(snap.ScrollTo))
	}

	return m, tea.Batch(cmds...)
}

func (m Model) following() bool {
	return m.snap.Mode == controller.ModeSynced && m.snap.AutoScroll && !m.manual
}

func (m Model) handleArtwork(msg ArtworkMsg) (tea.Model, tea.Cmd) {
	if msg.URL != m.artworkURL {
		return m, nil
	}

	if msg.Err != nil {
		log.Debug().Str("component", "ui").Str("url", msg.URL).Err(msg.Err).Msg("artwork unavailable")
		return m, nil
	}

	m.image = msg.Image
	if msg.Palette != nil {
		m.palette = msg.Palette
	}
	return m, nil
}
