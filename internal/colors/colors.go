// Package colors does perceptual color math on "#RRGGBB" strings for the
// lyric view and the artwork palette.
package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type rgb struct {
	r, g, b int
}

type lch struct {
	l, c, h float64
}

func parseHex(hex string) rgb {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return rgb{255, 255, 255}
	}

	channel := func(s string) int {
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return 255
		}
		return int(v)
	}

	return rgb{channel(hex[0:2]), channel(hex[2:4]), channel(hex[4:6])}
}

func (c rgb) hex() string {
	return fmt.Sprintf("#%02X%02X%02X", clampByte(c.r), clampByte(c.g), clampByte(c.b))
}

func RGBToHex(r int, g int, b int) string {
	return rgb{r, g, b}.hex()
}

func clampByte(v int) int {
	return max(0, min(255, v))
}

// Gradient interpolates from start to end in LCH space along the shorter
// hue arc. Very different endpoints get an eased curve so the middle does
// not wash out.
func Gradient(startHex string, endHex string, steps int) []string {
	steps = max(steps, 2)

	from := parseHex(startHex).toLCH()
	to := parseHex(endHex).toLCH()

	eased := math.Abs(to.c-from.c) > 30 ||
		math.Abs(hueDelta(from.h, to.h)) > 60 ||
		math.Abs(to.l-from.l) > 30

	out := make([]string, steps)
	for i := range out {
		t := float64(i) / float64(steps-1)
		if eased {
			t = smoothStep(smoothStep(t))
		}
		out[i] = from.lerp(to, t).toRGB().hex()
	}
	return out
}

// Blend mixes two colors perceptually; t=0 is a, t=1 is b.
func Blend(a string, b string, t float64) string {
	t = math.Max(0, math.Min(1, t))
	return parseHex(a).toLCH().lerp(parseHex(b).toLCH(), t).toRGB().hex()
}

// Lightness is the LCH L component, 0 to 100.
func Lightness(hex string) float64 {
	return parseHex(hex).toLCH().l
}

// MaxStep is the largest perceptual jump (redmean distance) between
// neighbouring colors of a gradient. Lower is smoother.
func MaxStep(gradient []string) float64 {
	worst := 0.0
	for i := 1; i < len(gradient); i++ {
		worst = math.Max(worst, distance(parseHex(gradient[i-1]), parseHex(gradient[i])))
	}
	return worst
}

func distance(a, b rgb) float64 {
	rmean := (a.r + b.r) / 2
	dr, dg, db := a.r-b.r, a.g-b.g, a.b-b.b
	return math.Sqrt(float64((2+rmean/256)*dr*dr + 4*dg*dg + (2+(255-rmean)/256)*db*db))
}

// GradientText colors each rune of text along gradient.
func GradientText(text string, gradient []string, bold bool) string {
	runes := []rune(text)
	if len(runes) == 0 || len(gradient) == 0 {
		return text
	}

	var b strings.Builder
	for i, r := range runes {
		idx := 0
		if len(runes) > 1 {
			idx = i * (len(gradient) - 1) / (len(runes) - 1)
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[idx])).Bold(bold)
		b.WriteString(style.Render(string(r)))
	}
	return b.String()
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func hueDelta(from, to float64) float64 {
	d := to - from
	switch {
	case d > 180:
		d -= 360
	case d < -180:
		d += 360
	}
	return d
}

func smoothStep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

func (a lch) lerp(b lch, t float64) lch {
	h := math.Mod(a.h+t*hueDelta(a.h, b.h)+360, 360)
	return lch{
		l: a.l + t*(b.l-a.l),
		c: a.c + t*(b.c-a.c),
		h: h,
	}
}

// D65 reference white
const (
	whiteX = 0.95047
	whiteY = 1.0
	whiteZ = 1.08883
)

func toLinear(v int) float64 {
	f := float64(v) / 255
	if f > 0.04045 {
		return math.Pow((f+0.055)/1.055, 2.4)
	}
	return f / 12.92
}

func fromLinear(f float64) int {
	if f > 0.0031308 {
		f = 1.055*math.Pow(f, 1/2.4) - 0.055
	} else {
		f *= 12.92
	}
	return clampByte(int(f*255 + 0.5))
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labFInv(t float64) float64 {
	if t3 := t * t * t; t3 > 0.008856 {
		return t3
	}
	return (t - 16.0/116.0) / 7.787
}

func (c rgb) toLCH() lch {
	r, g, b := toLinear(c.r), toLinear(c.g), toLinear(c.b)

	x := labF((r*0.4124564 + g*0.3575761 + b*0.1804375) / whiteX)
	y := labF((r*0.2126729 + g*0.7151522 + b*0.0721750) / whiteY)
	z := labF((r*0.0193339 + g*0.1191920 + b*0.9503041) / whiteZ)

	labA := 500 * (x - y)
	labB := 200 * (y - z)

	h := math.Atan2(labB, labA) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return lch{l: 116*y - 16, c: math.Hypot(labA, labB), h: h}
}

func (c lch) toRGB() rgb {
	rad := c.h * math.Pi / 180
	labA := c.c * math.Cos(rad)
	labB := c.c * math.Sin(rad)

	fy := (c.l + 16) / 116
	x := labFInv(labA/500+fy) * whiteX
	y := labFInv(fy) * whiteY
	z := labFInv(fy-labB/200) * whiteZ

	return rgb{
		r: fromLinear(x*3.2404542 - y*1.5371385 - z*0.4985314),
		g: fromLinear(-x*0.9692660 + y*1.8760108 + z*0.0415560),
		b: fromLinear(x*0.0556434 - y*0.2040259 + z*1.0572252),
	}
}
