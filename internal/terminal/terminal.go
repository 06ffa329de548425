package terminal

import (
	"io"
	"os"
	"strings"
)

type Capabilities struct {
	TrueColor bool
	// Artwork is false when half-block album art would render as noise:
	// no truecolor, NO_COLOR set, or a dumb terminal.
	Artwork bool
	Term    string
}

func DetectCapabilities() *Capabilities {
	return detect(os.Getenv)
}

func detect(getenv func(string) string) *Capabilities {
	term := getenv("TERM")
	colorterm := strings.ToLower(getenv("COLORTERM"))

	caps := &Capabilities{
		Term:      term,
		TrueColor: colorterm == "truecolor" || colorterm == "24bit" || strings.Contains(term, "direct"),
	}
	caps.Artwork = caps.TrueColor && getenv("NO_COLOR") == "" && term != "dumb"

	switch strings.ToLower(getenv("LYRICSYNC_ARTWORK")) {
	case "1", "true", "yes", "on":
		caps.Artwork = true
	case "0", "false", "no", "off":
		caps.Artwork = false
	}

	return caps
}

// Reset undoes the alt screen, mouse reporting and hidden cursor in case the
// TUI exited without restoring them.
func Reset(w io.Writer) {
	seqs := []string{
		"\033[?25h",
		"\033[0m",
		"\033[?1049l",
		"\033[?1000l",
		"\033[?1002l",
		"\033[?1003l",
		"\033[?1006l",
	}
	_, _ = io.WriteString(w, strings.Join(seqs, ""))
	if f, ok := w.(*os.File); ok {
		_ = f.Sync()
	}
}
