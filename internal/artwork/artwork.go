// Package artwork loads album art and derives the lyric view's palette from it.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"

	"karolbroda.com/lyricsync/internal/colors"
)

const (
	gradientSteps = 20
	// k-means runs on a thumbnail no larger than this on either side
	sampleSize = 96
	dimColor   = "#6272A4"
)

var ErrNoArtwork = errors.New("no artwork url")

type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Dim       string
	Gradient  []string
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Accent:    "#B8A8E8",
		Dim:       dimColor,
		Gradient:  colors.Gradient("#8BA4E8", "#E8A4C8", gradientSteps),
	}
}

// Fetch loads the image behind an MPRIS artUrl. file:// urls are read from
// disk, anything else goes over http.
func Fetch(ctx context.Context, client *http.Client, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, ErrNoArtwork
	}

	if strings.HasPrefix(artworkURL, "file://") {
		u, err := url.Parse(artworkURL)
		if err != nil {
			return nil, fmt.Errorf("invalid artwork url: %w", err)
		}
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("could not open artwork: %w", err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("could not decode artwork: %w", err)
		}
		return img, nil
	}

	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create artwork request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not decode artwork: %w", err)
	}
	return img, nil
}

type swatch struct {
	hex        string
	saturation float64
	brightness float64
	score      float64
}

func newSwatch(c prominentcolor.ColorItem) swatch {
	r := float64(c.Color.R) / 255
	g := float64(c.Color.G) / 255
	b := float64(c.Color.B) / 255

	hi := math.Max(math.Max(r, g), b)
	lo := math.Min(math.Min(r, g), b)

	sat := 0.0
	if hi > 0 {
		sat = (hi - lo) / hi
	}

	return swatch{
		hex:        boost(c.Color.R, c.Color.G, c.Color.B, hi),
		saturation: sat,
		brightness: hi,
		// favour saturated colors of medium brightness
		score: sat * (1 - math.Abs(hi-0.6)),
	}
}

// ExtractPalette clusters the dominant colors of img. Images that are too
// flat to yield three usable colors get the default palette.
func ExtractPalette(img image.Image) *Palette {
	if img == nil {
		return DefaultPalette()
	}

	sample := resize.Thumbnail(sampleSize, sampleSize, img, resize.Bilinear)

	items, err := prominentcolor.KmeansWithAll(5, sample, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(items) < 3 {
		return DefaultPalette()
	}

	swatches := make([]swatch, len(items))
	for i, item := range items {
		swatches[i] = newSwatch(item)
	}

	sort.SliceStable(swatches, func(i, j int) bool {
		return swatches[i].score > swatches[j].score
	})

	picked := make([]swatch, 0, 3)
	taken := func(s swatch) bool {
		for _, p := range picked {
			if p.hex == s.hex {
				return true
			}
		}
		return false
	}
	for _, minSat := range []float64{0.2, 0.1, 0} {
		for _, s := range swatches {
			if len(picked) == 3 {
				break
			}
			if s.saturation >= minSat && s.brightness > 0.25 && !taken(s) {
				picked = append(picked, s)
			}
		}
	}
	if len(picked) < 3 {
		return DefaultPalette()
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].brightness > picked[j].brightness
	})

	primary, accent, secondary := picked[0].hex, picked[1].hex, picked[2].hex
	start, end := smoothestPair(primary, secondary, accent)

	return &Palette{
		Primary:   primary,
		Secondary: secondary,
		Accent:    accent,
		Dim:       dimColor,
		Gradient:  colors.Gradient(start, end, gradientSteps),
	}
}

// smoothestPair picks the ordered pair of colors whose gradient has the
// smallest worst step. Near ties go to the pair that starts brighter.
func smoothestPair(candidates ...string) (string, string) {
	type pair struct {
		start, end string
		step       float64
	}

	var pairs []pair
	for _, a := range candidates {
		for _, b := range candidates {
			if a == b {
				continue
			}
			pairs = append(pairs, pair{a, b, colors.MaxStep(colors.Gradient(a, b, gradientSteps))})
		}
	}
	if len(pairs) == 0 {
		return candidates[0], candidates[0]
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.step < best.step {
			best = p
		}
	}
	for _, p := range pairs {
		if p.step-best.step < 5 && colors.Lightness(p.start) > colors.Lightness(best.start) {
			best = p
		}
	}
	return best.start, best.end
}

// boost lifts dark colors and mutes near-white ones so lyrics stay readable
// on a dark terminal.
func boost(r, g, b uint32, brightness float64) string {
	fr, fg, fb := float64(r), float64(g), float64(b)

	if brightness > 0 && brightness < 0.4 {
		factor := math.Min(0.4/brightness, 2.5)
		fr, fg, fb = fr*factor, fg*factor, fb*factor
	}

	if brightness > 0.85 {
		avg := (fr + fg + fb) / 3
		fr = avg + (fr-avg)*0.7
		fg = avg + (fg-avg)*0.7
		fb = avg + (fb-avg)*0.7
	}

	return colors.RGBToHex(int(math.Min(255, fr)), int(math.Min(255, fg)), int(math.Min(255, fb)))
}

// HalfBlocks renders img as width x height cells, two pixels per cell using
// the upper half block.
func HalfBlocks(img image.Image, width int, height int) []string {
	if img == nil || width < 4 || height < 2 {
		return nil
	}

	scaled := resize.Resize(uint(width), uint(height*2), img, resize.Lanczos3)
	bounds := scaled.Bounds()

	pixel := func(x, y int) (string, bool) {
		if y >= bounds.Dy() {
			y = bounds.Dy() - 1
		}
		r, g, b, a := scaled.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
		return colors.RGBToHex(int(r>>8), int(g>>8), int(b>>8)), a>>8 >= 128
	}

	lines := make([]string, height)
	for row := range lines {
		var line strings.Builder
		for x := 0; x < bounds.Dx(); x++ {
			top, topOpaque := pixel(x, row*2)
			bottom, bottomOpaque := pixel(x, row*2+1)

			if !topOpaque && !bottomOpaque {
				line.WriteByte(' ')
				continue
			}

			line.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
		lines[row] = line.String()
	}
	return lines
}
