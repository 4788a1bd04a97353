package stamp

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"
)

// measureFunc returns the rendered width of text in points
type measureFunc func(text, fontName string, fontSize int) float64

// textWidth measures text with the metrics of pdfcpu's core fonts
func textWidth(text, fontName string, fontSize int) float64 {
	return font.TextWidth(text, fontName, fontSize)
}

// wrapText breaks text into lines no wider than maxWidth. Explicit newlines
// always start a new line. A single word wider than maxWidth gets a line of
// its own. A maxWidth of zero disables wrapping.
func wrapText(text string, maxWidth float64, fontName string, fontSize int, measure measureFunc) []string {
	var lines []string

	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		if maxWidth <= 0 {
			lines = append(lines, strings.Join(words, " "))
			continue
		}

		line := words[0]
		for _, word := range words[1:] {
			candidate := line + " " + word
			if measure(candidate, fontName, fontSize) <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = word
		}
		lines = append(lines, line)
	}

	// Trailing blank lines draw nothing
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
