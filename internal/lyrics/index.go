package lyrics

import (
	"math"
	"sort"
)

// NoLine is returned by lookups when no line is active.
const NoLine = -1

type Line struct {
	TimeSeconds float64
	Text        string
}

// Index is an immutable, timestamp-ordered view over parsed lyric lines.
type Index struct {
	lines []Line
}

// NewIndex copies lines and sorts them by timestamp. Equal timestamps keep
// their input order.
func NewIndex(lines []Line) *Index {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeSeconds < sorted[j].TimeSeconds
	})
	return &Index{lines: sorted}
}

func (x *Index) IsEmpty() bool {
	return x == nil || len(x.lines) == 0
}

func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.lines)
}

func (x *Index) Line(i int) Line {
	return x.lines[i]
}

func (x *Index) Lines() []Line {
	if x == nil {
		return nil
	}
	out := make([]Line, len(x.lines))
	copy(out, x.lines)
	return out
}

// ActiveIndex returns the position of the last line whose timestamp is at or
// before positionSeconds, or NoLine. When several lines share a timestamp the
// last of them wins.
func (x *Index) ActiveIndex(positionSeconds float64) int {
	if x.IsEmpty() || math.IsNaN(positionSeconds) {
		return NoLine
	}

	// first line strictly after the position, minus one
	return sort.Search(len(x.lines), func(i int) bool {
		return x.lines[i].TimeSeconds > positionSeconds
	}) - 1
}

func (x *Index) ActiveLineAt(positionSeconds float64) (Line, bool) {
	idx := x.ActiveIndex(positionSeconds)
	if idx == NoLine {
		return Line{}, false
	}
	return x.lines[idx], true
}
