package lyrics

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSynced_ThreeLines(t *testing.T) {
	idx := ParseSynced("[00:12.00]First line\n[00:17.50]Second line\n[00:23.00]Third line")

	require.Equal(t, 3, idx.Len())
	require.Equal(t, 12.0, idx.Line(0).TimeSeconds)
	require.Equal(t, 17.5, idx.Line(1).TimeSeconds)
	require.Equal(t, 23.0, idx.Line(2).TimeSeconds)

	line, ok := idx.ActiveLineAt(20.0)
	require.True(t, ok)
	require.Equal(t, "Second line", line.Text)

	_, ok = idx.ActiveLineAt(5.0)
	require.False(t, ok, "nothing is active before the first timestamp")

	line, ok = idx.ActiveLineAt(100.0)
	require.True(t, ok)
	require.Equal(t, "Third line", line.Text, "last line stays active past the end")
}

func TestParseSynced_OutOfOrder(t *testing.T) {
	idx := ParseSynced("[00:20.00]Second\n[00:10.00]First")

	require.Equal(t, []Line{
		{TimeSeconds: 10, Text: "First"},
		{TimeSeconds: 20, Text: "Second"},
	}, idx.Lines())
}

func TestParseSynced_SkipsNoise(t *testing.T) {
	raw := strings.Join([]string{
		"[ar:Some Artist]",
		"[ti:Some Title]",
		"[length: 03:12]",
		"[00:01.00]",
		"[00:02.00]   ",
		"plain text without a tag",
		"",
		"   [00:03.5]  padded line  \r",
		"[1:04]short minutes",
		"[00:05.abc]bad fraction",
		"[00:123]too many second digits",
		"[-1:00.00]negative",
		"[00:06.25]kept",
	}, "\n")

	idx := ParseSynced(raw)

	require.Equal(t, []Line{
		{TimeSeconds: 3.5, Text: "padded line"},
		{TimeSeconds: 6.25, Text: "kept"},
		{TimeSeconds: 64, Text: "short minutes"},
	}, idx.Lines())
}

func TestParseSynced_NoTagsYieldsEmptyIndex(t *testing.T) {
	inputs := []string{
		"",
		"just some words",
		"[ar:artist]\n[al:album]",
		"\n\n\n",
		"[]text",
		"[:]text",
		"[xx:yy]text",
	}

	for _, in := range inputs {
		idx := ParseSynced(in)
		require.NotNil(t, idx, "input %q", in)
		require.True(t, idx.IsEmpty(), "input %q", in)
		require.Equal(t, NoLine, idx.ActiveIndex(10))
	}
}

func TestParseSynced_AlwaysSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		var b strings.Builder
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			b.WriteString("[")
			b.WriteString(pad2(rng.Intn(10)))
			b.WriteString(":")
			b.WriteString(pad2(rng.Intn(60)))
			b.WriteString(".")
			b.WriteString(pad2(rng.Intn(100)))
			b.WriteString("]line\n")
		}

		lines := ParseSynced(b.String()).Lines()
		require.Len(t, lines, n)
		for i := 1; i < len(lines); i++ {
			require.LessOrEqual(t, lines[i-1].TimeSeconds, lines[i].TimeSeconds)
		}
	}
}

func TestParseSynced_TiesKeepInputOrder(t *testing.T) {
	idx := ParseSynced("[00:05.00]a\n[00:01.00]x\n[00:05.00]b\n[00:05.00]c")

	require.Equal(t, []string{"x", "a", "b", "c"}, texts(idx.Lines()))

	line, ok := idx.ActiveLineAt(5.0)
	require.True(t, ok)
	require.Equal(t, "c", line.Text, "last of the tied lines is active")
}

func TestPlainLines(t *testing.T) {
	require.Nil(t, PlainLines("  \n \n"))
	require.Equal(t, []string{"one", "", "two"}, PlainLines("\r\none  \r\n\r\ntwo\n"))
}

func pad2(n int) string {
	if n < 10 {
		return "0" + string(rune('0'+n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
