package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/lyricsync/internal/artwork"
	"karolbroda.com/lyricsync/internal/colors"
	"karolbroda.com/lyricsync/internal/controller"
)

const (
	lineGap     = 1
	sideMargin  = 4
	breakMarker = "♪"
)

// lineRenderer turns lyric lines into centered, colored terminal rows.
type lineRenderer struct {
	palette *artwork.Palette
	width   int
}

func newLineRenderer(palette *artwork.Palette, width int) lineRenderer {
	if palette == nil {
		palette = artwork.DefaultPalette()
	}
	return lineRenderer{palette: palette, width: width}
}

// wrap breaks text on spaces so no row is wider than the screen minus
// margins. Words longer than a row are split.
func (r lineRenderer) wrap(text string) []string {
	limit := max(8, r.width-2*sideMargin)

	var rows []string
	var cur strings.Builder
	curWidth := 0

	flush := func() {
		if cur.Len() > 0 {
			rows = append(rows, cur.String())
			cur.Reset()
			curWidth = 0
		}
	}

	for _, word := range strings.Fields(text) {
		w := lipgloss.Width(word)

		for w > limit {
			flush()
			runes := []rune(word)
			cut := 0
			for cut < len(runes) && lipgloss.Width(string(runes[:cut+1])) <= limit {
				cut++
			}
			cut = max(cut, 1)
			rows = append(rows, string(runes[:cut]))
			word = string(runes[cut:])
			w = lipgloss.Width(word)
		}
		if w == 0 {
			continue
		}

		if curWidth > 0 && curWidth+1+w > limit {
			flush()
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += w
	}
	flush()

	if len(rows) == 0 {
		return []string{breakMarker}
	}
	return rows
}

func (r lineRenderer) center(s string) string {
	return lipgloss.PlaceHorizontal(r.width, lipgloss.Center, s)
}

// color picks the foreground for a non-current line. Lines fade toward the
// dim color the further they are from the active one.
func (r lineRenderer) color(state controller.VisualState, distance int) string {
	fade := clamp(0.25+0.15*float64(distance-1), 0, 0.85)
	switch state {
	case controller.StatePast:
		return colors.Blend(r.palette.Accent, r.palette.Dim, fade+0.15)
	default:
		return colors.Blend(r.palette.Primary, r.palette.Dim, fade)
	}
}

func (r lineRenderer) renderSynced(line controller.LineView, distance int) []string {
	rows := r.wrap(line.Text)

	out := make([]string, len(rows))
	for i, row := range rows {
		if line.State == controller.StateCurrent {
			out[i] = r.center(colors.GradientText(row, r.palette.Gradient, true))
			continue
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(r.color(line.State, distance)))
		out[i] = r.center(style.Render(row))
	}
	return out
}

func (r lineRenderer) renderPlain(text string) []string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(r.palette.Primary))

	rows := r.wrap(text)
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = r.center(style.Render(row))
	}
	return out
}

// viewport lays blocks out top to bottom with a gap between them and cuts
// height rows around the fractional block position pos. centered puts that
// block in the middle of the window instead of at the top.
func viewport(blocks [][]string, pos float64, height int, centered bool) []string {
	out := make([]string, height)
	if len(blocks) == 0 || height <= 0 {
		return out
	}

	var all []string
	starts := make([]int, len(blocks))
	for i, block := range blocks {
		if i > 0 {
			for range lineGap {
				all = append(all, "")
			}
		}
		starts[i] = len(all)
		all = append(all, block...)
	}

	pos = clamp(pos, 0, float64(len(blocks)-1))
	i := int(pos)
	frac := pos - float64(i)

	anchor := float64(starts[i])
	if centered {
		anchor += float64(len(blocks[i]) / 2)
	}
	if i+1 < len(blocks) && frac > 0 {
		next := float64(starts[i+1])
		if centered {
			next += float64(len(blocks[i+1]) / 2)
		}
		anchor = lerp(anchor, next, frac)
	}

	top := int(anchor + 0.5)
	if centered {
		top -= height / 2
	}

	for row := range out {
		src := top + row
		if src >= 0 && src < len(all) {
			out[row] = all[src]
		}
	}
	return out
}
