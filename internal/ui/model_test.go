package ui

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"karolbroda.com/lyricsync/internal/artwork"
	"karolbroda.com/lyricsync/internal/controller"
	"karolbroda.com/lyricsync/internal/lyrics"
	"karolbroda.com/lyricsync/internal/terminal"
	"karolbroda.com/lyricsync/internal/track"
)

type fakeController struct {
	mu       sync.Mutex
	ch       chan controller.Snapshot
	manual   int
	snaps    int
	offset   float64
	synced   bool
	artCalls []string
}

func newFakeController() *fakeController {
	return &fakeController{ch: make(chan controller.Snapshot, 1), synced: true}
}

func (f *fakeController) Snapshots() <-chan controller.Snapshot { return f.ch }

func (f *fakeController) Current() controller.Snapshot {
	return controller.Snapshot{Active: lyrics.NoLine, ScrollTo: lyrics.NoLine, SyncedEnabled: true}
}

func (f *fakeController) NotifyManualScroll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manual++
}

func (f *fakeController) SnapToCurrent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps++
}

func (f *fakeController) AdjustSyncOffset(delta float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset += delta
	return f.offset
}

func (f *fakeController) SetSyncOffset(offset float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset = offset
}

func (f *fakeController) ToggleSyncedLyrics() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = !f.synced
	return f.synced
}

func newTestModel(t *testing.T, ctrl *fakeController) Model {
	t.Helper()
	m := NewModel(Config{
		Controller: ctrl,
		TermCaps:   &terminal.Capabilities{},
		LoadArtwork: func(ctx context.Context, url string) (image.Image, error) {
			ctrl.mu.Lock()
			ctrl.artCalls = append(ctrl.artCalls, url)
			ctrl.mu.Unlock()
			return nil, errors.New("offline")
		},
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func settle(m Model) Model {
	for m.scroll.Animating() {
		m.scroll.Step()
	}
	return m
}

var song = &track.Info{Title: "Song", Artist: "Band", Album: "Record", Duration: 200e9}

func syncedSnapshot(session string, active, scrollTo int) controller.Snapshot {
	texts := []string{"first line", "second line", "third line", "fourth line", "fifth line"}
	lines := make([]controller.LineView, len(texts))
	for i, text := range texts {
		state := controller.StatePast
		switch {
		case i == active:
			state = controller.StateCurrent
		case i > active:
			state = controller.StateFuture
		}
		lines[i] = controller.LineView{Index: i, TimeSeconds: float64(i * 5), Text: text, State: state}
	}
	return controller.Snapshot{
		Mode:          controller.ModeSynced,
		Track:         song,
		Session:       session,
		Position:      float64(active*5) + 1,
		Playing:       true,
		Lines:         lines,
		Active:        active,
		ScrollTo:      scrollTo,
		AutoScroll:    true,
		SyncedEnabled: true,
	}
}

func TestModel_IdleView(t *testing.T) {
	m := newTestModel(t, newFakeController())

	view := m.View()
	require.Contains(t, view, "waiting for a player")
	require.Len(t, strings.Split(view, "\n"), 30)
}

func TestModel_SnapshotScrollsToTarget(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m, cmd := step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 2, 2)})
	require.NotNil(t, cmd)
	require.True(t, m.scroll.Animating())

	m = settle(m)
	require.Equal(t, 2.0, m.ScrollPosition())
	require.Contains(t, m.View(), "second line")

	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 3, lyrics.NoLine)})
	m = settle(m)
	require.Equal(t, 2.0, m.ScrollPosition(), "no scroll target keeps the viewport")
}

func TestModel_ManualScrollNotifiesController(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 1, 1)})
	m = settle(m)

	m, _ = step(t, m, key("down"))
	m, _ = step(t, m, key("j"))
	m = settle(m)
	require.Equal(t, 3.0, m.ScrollPosition())
	require.Equal(t, 2, ctrl.manual)

	m, _ = step(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	m = settle(m)
	require.Equal(t, 2.0, m.ScrollPosition())
	require.Equal(t, 3, ctrl.manual)

	m, _ = step(t, m, key("end"))
	m, _ = step(t, m, key("G"))
	m = settle(m)
	require.Equal(t, 4.0, m.ScrollPosition(), "clamped to the last line")

	notAuto := syncedSnapshot("s1", 2, lyrics.NoLine)
	notAuto.AutoScroll = false
	m, _ = step(t, m, SnapshotMsg{Snapshot: notAuto})
	require.Contains(t, m.View(), "manual scroll")

	m, _ = step(t, m, key("c"))
	require.Equal(t, 1, ctrl.snaps)
}

func TestModel_ManualScrollIgnoresTargetsInFlight(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 0, 0)})
	m = settle(m)

	m, _ = step(t, m, key("down"))
	m, _ = step(t, m, key("down"))
	m, _ = step(t, m, key("down"))
	m = settle(m)
	require.Equal(t, 3.0, m.ScrollPosition())

	// published before the controller saw the manual scroll
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 1, 1)})
	m = settle(m)
	require.Equal(t, 3.0, m.ScrollPosition())

	stale := syncedSnapshot("s1", 1, 1)
	stale.AutoScroll = false
	m, _ = step(t, m, SnapshotMsg{Snapshot: stale})
	m = settle(m)
	require.Equal(t, 3.0, m.ScrollPosition())

	m, _ = step(t, m, key("c"))
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 1, 1)})
	m = settle(m)
	require.Equal(t, 1.0, m.ScrollPosition(), "snapping back follows again")

	m, _ = step(t, m, key("down"))
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s2", 2, 2)})
	m = settle(m)
	require.Equal(t, 2.0, m.ScrollPosition(), "a new session follows again")
}

func TestModel_PlainScrollDoesNotNotify(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	snap := controller.Snapshot{
		Mode:     controller.ModePlain,
		Track:    song,
		Session:  "s1",
		Plain:    []string{"alpha", "beta", "gamma"},
		Active:   lyrics.NoLine,
		ScrollTo: lyrics.NoLine,
	}
	m, _ = step(t, m, SnapshotMsg{Snapshot: snap})
	require.Contains(t, m.View(), "alpha")

	m, _ = step(t, m, key("down"))
	m = settle(m)
	require.Equal(t, 1.0, m.ScrollPosition())
	require.Zero(t, ctrl.manual)
}

func TestModel_NewSessionResetsScroll(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 4, 4)})
	m = settle(m)
	require.Equal(t, 4.0, m.ScrollPosition())

	m, _ = step(t, m, SnapshotMsg{Snapshot: controller.Snapshot{
		Mode:     controller.ModeLoading,
		Track:    &track.Info{Title: "Other", Artist: "Band"},
		Session:  "s2",
		Active:   lyrics.NoLine,
		ScrollTo: lyrics.NoLine,
	}})
	require.Zero(t, m.ScrollPosition())
	require.Contains(t, m.View(), "loading lyrics")
}

func TestModel_OffsetKeys(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m, _ = step(t, m, key("]"))
	m, _ = step(t, m, key("}"))
	require.InDelta(t, 0.6, ctrl.offset, 1e-9)
	require.Contains(t, m.notice, "+0.6s")

	m, _ = step(t, m, key("["))
	m, _ = step(t, m, key("{"))
	require.InDelta(t, 0, ctrl.offset, 1e-9)

	ctrl.offset = 2
	m, _ = step(t, m, key("0"))
	require.Zero(t, ctrl.offset)
	require.Equal(t, "offset reset", m.notice)
}

func TestModel_ToggleKeys(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)
	m, _ = step(t, m, SnapshotMsg{Snapshot: syncedSnapshot("s1", 0, 0)})

	require.True(t, m.showHeader())
	m, _ = step(t, m, key("tab"))
	require.True(t, m.HideHeader())
	require.NotContains(t, m.View(), "Record")

	m, _ = step(t, m, key("s"))
	require.False(t, ctrl.synced)
	require.Contains(t, m.notice, "off")

	m, cmd := step(t, m, key("q"))
	require.True(t, m.IsQuitting())
	require.NotNil(t, cmd)
	require.Empty(t, m.View())
}

func TestModel_ModeViews(t *testing.T) {
	m := newTestModel(t, newFakeController())

	base := controller.Snapshot{Track: song, Session: "s1", Active: lyrics.NoLine, ScrollTo: lyrics.NoLine}

	inst := base
	inst.Mode = controller.ModeInstrumental
	m, _ = step(t, m, SnapshotMsg{Snapshot: inst})
	require.Contains(t, m.View(), "instrumental")

	missing := base
	missing.Mode = controller.ModeUnavailable
	missing.Err = lyrics.ErrNoLyrics
	m, _ = step(t, m, SnapshotMsg{Snapshot: missing})
	view := m.View()
	require.Contains(t, view, "no lyrics found")
	require.Contains(t, view, "Song")
}

func TestModel_ArtworkResults(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	withArt := syncedSnapshot("s1", 0, 0)
	withArt.Track = &track.Info{Title: "Song", Artist: "Band", ArtworkURL: "file:///cover.png"}

	m, cmd := step(t, m, SnapshotMsg{Snapshot: withArt})
	require.NotNil(t, cmd)

	palette := &artwork.Palette{Primary: "#FF0000", Secondary: "#00FF00", Accent: "#0000FF", Dim: "#333333"}

	m, _ = step(t, m, ArtworkMsg{URL: "file:///stale.png", Palette: palette})
	require.Equal(t, artwork.DefaultPalette().Primary, m.Palette().Primary, "results for another track are ignored")

	m, _ = step(t, m, ArtworkMsg{URL: "file:///cover.png", Err: errors.New("gone")})
	require.Equal(t, artwork.DefaultPalette().Primary, m.Palette().Primary)

	m, _ = step(t, m, ArtworkMsg{URL: "file:///cover.png", Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), Palette: palette})
	require.Equal(t, "#FF0000", m.Palette().Primary)

	msg := m.fetchArtworkCmd("file:///cover.png")()
	require.Error(t, msg.(ArtworkMsg).Err)
	require.Equal(t, []string{"file:///cover.png"}, ctrl.artCalls)
}

func TestModel_WaitForSnapshot(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	ctrl.ch <- syncedSnapshot("s1", 0, 0)
	msg := m.waitForSnapshot()()
	require.Equal(t, "s1", msg.(SnapshotMsg).Snapshot.Session)

	close(ctrl.ch)
	m, cmd := step(t, m, m.waitForSnapshot()())
	require.True(t, m.IsQuitting())
	require.NotNil(t, cmd)
}

func TestViewport(t *testing.T) {
	blocks := [][]string{{"a"}, {"b1", "b2"}, {"c"}}

	out := viewport(blocks, 0, 3, false)
	require.Equal(t, []string{"a", "", "b1"}, out)

	out = viewport(blocks, 2, 5, true)
	require.Equal(t, "c", out[2])

	require.Len(t, viewport(nil, 0, 4, true), 4)
}

func TestLineRendererWrap(t *testing.T) {
	r := newLineRenderer(nil, 20)

	rows := r.wrap("the quick brown fox jumps over")
	for _, row := range rows {
		require.LessOrEqual(t, len(row), 12)
	}
	require.Equal(t, "the quick brown fox jumps over", strings.Join(rows, " "))

	require.Equal(t, []string{breakMarker}, r.wrap("   "))
	require.Equal(t, []string{"abcdefghijkl", "mn"}, r.wrap("abcdefghijklmn"))
}
