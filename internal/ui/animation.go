package ui

import (
	"math"
)

// scrollTicks is how many frames a recenter takes.
const scrollTicks = 8

// ScrollAnim eases the viewport between line positions. Position is
// fractional so a recenter glides across the rows in between.
type ScrollAnim struct {
	Position float64
	from     float64
	target   float64
	progress float64
}

func (a *ScrollAnim) Target() float64 {
	return a.target
}

// MoveTo starts a glide from wherever the viewport currently is.
func (a *ScrollAnim) MoveTo(target float64) {
	if target == a.target && a.progress < 1 {
		return
	}
	a.from = a.Position
	a.target = target
	a.progress = 0
}

// Jump places the viewport without animating.
func (a *ScrollAnim) Jump(target float64) {
	a.Position = target
	a.from = target
	a.target = target
	a.progress = 1
}

func (a *ScrollAnim) Animating() bool {
	return a.progress < 1
}

// Step advances one frame and reports whether the position moved.
func (a *ScrollAnim) Step() bool {
	if a.progress >= 1 {
		return false
	}

	a.progress = math.Min(1, a.progress+1.0/scrollTicks)
	prev := a.Position
	a.Position = lerp(a.from, a.target, easeOutCubic(a.progress))
	return a.Position != prev
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}

func lerp(a float64, b float64, t float64) float64 {
	return a + (b-a)*t
}

func clamp(val float64, lo float64, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
