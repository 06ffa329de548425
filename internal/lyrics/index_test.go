package lyrics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// linearActive is the obvious reference: scan for the last line at or before pos.
func linearActive(lines []Line, pos float64) int {
	idx := NoLine
	for i, l := range lines {
		if l.TimeSeconds <= pos {
			idx = i
		}
	}
	return idx
}

func TestActiveIndex_MatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		lines := make([]Line, rng.Intn(30))
		for i := range lines {
			// coarse timestamps so ties are common
			lines[i] = Line{TimeSeconds: float64(rng.Intn(20)) / 2, Text: "l"}
		}
		idx := NewIndex(lines)
		sorted := idx.Lines()

		for probe := 0; probe < 40; probe++ {
			pos := rng.Float64()*12 - 1
			require.Equal(t, linearActive(sorted, pos), idx.ActiveIndex(pos), "pos %v", pos)
		}
		for _, l := range sorted {
			require.Equal(t, linearActive(sorted, l.TimeSeconds), idx.ActiveIndex(l.TimeSeconds))
		}
	}
}

func TestActiveIndex_EdgeCases(t *testing.T) {
	var nilIndex *Index
	require.True(t, nilIndex.IsEmpty())
	require.Equal(t, NoLine, nilIndex.ActiveIndex(3))
	require.Equal(t, 0, nilIndex.Len())

	idx := NewIndex([]Line{{TimeSeconds: 1, Text: "a"}, {TimeSeconds: 2, Text: "b"}})
	require.Equal(t, NoLine, idx.ActiveIndex(0.999))
	require.Equal(t, 0, idx.ActiveIndex(1))
	require.Equal(t, 1, idx.ActiveIndex(2))
	require.Equal(t, 1, idx.ActiveIndex(math.Inf(1)))
	require.Equal(t, NoLine, idx.ActiveIndex(math.Inf(-1)))
	require.Equal(t, NoLine, idx.ActiveIndex(math.NaN()))
}

func TestNewIndex_DoesNotAliasInput(t *testing.T) {
	input := []Line{{TimeSeconds: 2, Text: "b"}, {TimeSeconds: 1, Text: "a"}}
	idx := NewIndex(input)

	input[0].Text = "changed"
	require.Equal(t, "b", idx.Line(1).Text)
	require.Equal(t, 2.0, input[0].TimeSeconds, "input order untouched by sorting")

	out := idx.Lines()
	out[0].Text = "mutated"
	require.Equal(t, "a", idx.Line(0).Text)
}
