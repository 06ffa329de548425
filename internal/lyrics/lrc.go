package lyrics

import (
	"strconv"
	"strings"
)

// ParseSynced turns LRC text into an Index. Lines without a leading
// [mm:ss] or [mm:ss.xx] tag, and tagged lines with no text, are dropped.
// The result is never nil; an empty Index means no usable synced lyrics.
func ParseSynced(raw string) *Index {
	if raw == "" {
		return NewIndex(nil)
	}

	rawLines := strings.Split(raw, "\n")
	result := make([]Line, 0, len(rawLines))

	for _, line := range rawLines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		timePart, text := splitLrcLine(trimmed)
		if timePart == "" || text == "" {
			continue
		}

		seconds, ok := parseLrcTime(timePart)
		if !ok {
			continue
		}

		result = append(result, Line{
			TimeSeconds: seconds,
			Text:        text,
		})
	}

	return NewIndex(result)
}

// PlainLines splits unsynced lyrics for display, keeping blank lines as
// stanza breaks but dropping leading and trailing ones.
func PlainLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.Trim(raw, "\n")
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return lines
}

func splitLrcLine(line string) (string, string) {
	if !strings.HasPrefix(line, "[") {
		return "", ""
	}

	endIndex := strings.Index(line, "]")
	if endIndex <= 1 {
		return "", ""
	}

	timePart := line[1:endIndex]
	textPart := strings.TrimSpace(line[endIndex+1:])
	if textPart == "" {
		return "", ""
	}

	return timePart, textPart
}

// parseLrcTime accepts minutes:seconds with an optional fraction. Anything
// else, including metadata tags like "ar:Someone", is rejected.
func parseLrcTime(raw string) (float64, bool) {
	minutePart, secondPart, found := strings.Cut(raw, ":")
	if !found || !allDigits(minutePart) {
		return 0, false
	}

	whole, fraction, hasFraction := strings.Cut(secondPart, ".")
	if len(whole) == 0 || len(whole) > 2 || !allDigits(whole) {
		return 0, false
	}
	if hasFraction && !allDigits(fraction) {
		return 0, false
	}

	minutes, err := strconv.Atoi(minutePart)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(secondPart, 64)
	if err != nil {
		return 0, false
	}

	return float64(minutes)*60 + seconds, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
