package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"

	"karolbroda.com/lyricsync/internal/artwork"
	"karolbroda.com/lyricsync/internal/colors"
	"karolbroda.com/lyricsync/internal/config"
	"karolbroda.com/lyricsync/internal/controller"
)

const errorColor = "#FF6B6B"

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width, height := m.size()
	palette := m.palette
	if palette == nil {
		palette = artwork.DefaultPalette()
	}

	var rows []string
	if m.showHeader() {
		rows = append(rows, m.renderHeader(palette, width)...)
	}

	rows = append(rows, m.renderBody(palette, width, m.lyricsHeight())...)
	rows = append(rows, m.renderStatus(palette, width))

	for len(rows) < height {
		rows = append(rows, "")
	}
	if len(rows) > height {
		rows = rows[:height]
	}
	return strings.Join(rows, "\n")
}

func (m Model) size() (int, int) {
	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}
	return width, height
}

func (m Model) showHeader() bool {
	return !m.hideHeader && m.snap.Track != nil
}

func (m Model) artSize() (int, int) {
	width, height := m.size()
	switch {
	case width >= 80 && height >= 25:
		return 12, 6
	case width >= 50 && height >= 20:
		return 8, 4
	default:
		return 0, 0
	}
}

func (m Model) showArt() bool {
	_, artHeight := m.artSize()
	return artHeight > 0 && m.image != nil && m.termCaps != nil && m.termCaps.Artwork
}

func (m Model) headerHeight() int {
	if !m.showHeader() {
		return 0
	}

	body := len(m.trackInfo(artwork.DefaultPalette(), 80))
	if m.showArt() {
		_, artHeight := m.artSize()
		body = max(body, artHeight)
	}

	rows := 1 + body + 1
	if _, ok := m.snap.Track.KnownDuration(); ok {
		rows++
	}
	return rows + 1
}

func (m Model) lyricsHeight() int {
	_, height := m.size()
	return max(1, height-m.headerHeight()-1)
}

func (m Model) renderHeader(palette *artwork.Palette, width int) []string {
	lines := []string{""}

	var art []string
	artWidth := 0
	if m.showArt() {
		w, h := m.artSize()
		art = artwork.HalfBlocks(m.image, w, h)
		artWidth = w
	}

	info := m.trackInfo(palette, width-artWidth-6)
	rows := max(len(info), len(art))
	for i := 0; i < rows; i++ {
		var line strings.Builder
		line.WriteString("  ")
		if artWidth > 0 {
			if i < len(art) {
				line.WriteString(art[i])
			} else {
				line.WriteString(strings.Repeat(" ", artWidth))
			}
			line.WriteString("  ")
		}
		if i < len(info) {
			line.WriteString(info[i])
		}
		lines = append(lines, line.String())
	}

	lines = append(lines, "")
	if _, ok := m.snap.Track.KnownDuration(); ok {
		lines = append(lines, m.renderProgress(palette, width))
	}
	return append(lines, "")
}

func truncate(s string, limit int) string {
	limit = max(limit, 4)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func (m Model) trackInfo(palette *artwork.Palette, width int) []string {
	trk := m.snap.Track
	if trk == nil {
		return nil
	}

	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary)).Bold(true)
	artistStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	lines := []string{
		titleStyle.Render(truncate(trk.Title, width)),
		artistStyle.Render(truncate(trk.Artist, width)),
	}
	if trk.Album != "" {
		lines = append(lines, dimStyle.Render(truncate(trk.Album, width)))
	}

	state := "⏸ paused"
	if m.snap.Playing {
		state = "▶ playing"
	}
	lines = append(lines, dimStyle.Render(state+" · "+m.snap.Mode.String()))

	return lines
}

func (m Model) renderProgress(palette *artwork.Palette, width int) string {
	duration, ok := m.snap.Track.KnownDuration()
	if !ok {
		return ""
	}

	barWidth := max(20, width-20)
	progress := clamp(m.snap.Position/duration, 0, 1)
	filled := int(float64(barWidth) * progress)

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Faint(true)
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteString(filledStyle.Render("━"))
		case i == filled:
			bar.WriteString(filledStyle.Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	return fmt.Sprintf("  %s  %s  %s",
		timeStyle.Render(colors.FormatTime(m.snap.Position)),
		bar.String(),
		timeStyle.Render(colors.FormatTime(duration)))
}

func (m Model) renderBody(palette *artwork.Palette, width int, height int) []string {
	r := newLineRenderer(palette, width)

	switch m.snap.Mode {
	case controller.ModeSynced:
		blocks := make([][]string, len(m.snap.Lines))
		for i, line := range m.snap.Lines {
			distance := i - m.snap.Active
			if distance < 0 {
				distance = -distance
			}
			blocks[i] = r.renderSynced(line, distance)
		}
		return viewport(blocks, m.scroll.Position, height, true)

	case controller.ModePlain:
		blocks := make([][]string, len(m.snap.Plain))
		for i, text := range m.snap.Plain {
			blocks[i] = r.renderPlain(text)
		}
		return viewport(blocks, m.scroll.Position, height, false)

	case controller.ModeLoading:
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		spinner := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).Render(frames[m.tickCount%len(frames)])
		text := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Render(" loading lyrics")
		return middle([]string{r.center(spinner + text)}, height)

	case controller.ModeInstrumental:
		text := colors.GradientText("♪  instrumental  ♪", palette.Gradient, true)
		return middle([]string{r.center(text)}, height)

	case controller.ModeUnavailable:
		rows := []string{r.center(lipgloss.NewStyle().Foreground(lipgloss.Color(errorColor)).Render("no lyrics found"))}
		if m.snap.Err != nil {
			detail := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Render(truncate(m.snap.Err.Error(), width-2*sideMargin))
			rows = append(rows, "", r.center(detail))
		}
		return middle(rows, height)

	default:
		return middle(m.renderIdle(palette, r), height)
	}
}

func (m Model) renderIdle(palette *artwork.Palette, r lineRenderer) []string {
	var rows []string

	banner := figure.NewFigure(config.AppName, "", true).Slicify()
	bannerWidth := 0
	for _, line := range banner {
		bannerWidth = max(bannerWidth, lipgloss.Width(line))
	}

	if bannerWidth > 0 && bannerWidth <= r.width-2*sideMargin {
		for _, line := range banner {
			if strings.TrimSpace(line) == "" {
				continue
			}
			padded := line + strings.Repeat(" ", bannerWidth-lipgloss.Width(line))
			rows = append(rows, r.center(colors.GradientText(padded, palette.Gradient, false)))
		}
	} else {
		rows = append(rows, r.center(colors.GradientText(config.AppName, palette.Gradient, true)))
	}

	pulse := []string{"·", "•", "●", "•"}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Italic(true)
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).Render(pulse[(m.tickCount/4)%len(pulse)])

	return append(rows, "", r.center(dim.Render("waiting for a player")), r.center(dot))
}

// middle centers rows vertically in height.
func middle(rows []string, height int) []string {
	out := make([]string, height)
	top := max(0, (height-len(rows))/2)
	for i, row := range rows {
		if top+i < height {
			out[top+i] = row
		}
	}
	return out
}

func (m Model) renderStatus(palette *artwork.Palette, width int) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Accent))

	var left []string
	if m.snap.Mode == controller.ModeSynced && !m.snap.AutoScroll {
		left = append(left, accent.Render("manual scroll · c to follow"))
	}
	if m.notice != "" {
		left = append(left, dim.Render(m.notice))
	}

	var right []string
	if m.snap.SyncOffset != 0 {
		right = append(right, fmt.Sprintf("offset %+.1fs", m.snap.SyncOffset))
	}
	if !m.snap.SyncedEnabled {
		right = append(right, "synced off")
	}

	l := " " + strings.Join(left, dim.Render(" · "))
	rt := dim.Render(strings.Join(right, " · ")) + " "
	gap := max(1, width-lipgloss.Width(l)-lipgloss.Width(rt))
	return l + strings.Repeat(" ", gap) + rt
}
