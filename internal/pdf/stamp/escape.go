package stamp

import "strings"

// placeholderVerbs follow a '%' in text that pdfcpu expands while stamping
const placeholderVerbs = "pPtv"

// segment is a piece of a line drawn as an overlay of its own
type segment struct {
	start int    // byte offset of the piece within the line
	text  string // overlay text, escaped for pdfcpu
}

// overlaySegments splits line where pdfcpu would rewrite it and escapes
// each piece so that pdfcpu's placeholder expansion yields it verbatim.
//
// pdfcpu replaces %p, %P, %t and %v, drops a lone '%', and reads a literal
// backslash-n as a line break. A run of n '%' written as n+1 renders as n,
// but leaves the expansion armed for the next byte, so a run followed by a
// verb and a backslash followed by 'n' both end the current piece.
func overlaySegments(line string) []segment {
	var segs []segment
	start := 0

	cut := func(end int) {
		segs = append(segs, segment{start: start, text: escapePercent(line[start:end])})
		start = end
	}

	for i := 0; i < len(line); {
		switch {
		case line[i] == '%':
			j := i
			for j < len(line) && line[j] == '%' {
				j++
			}
			if j < len(line) && strings.IndexByte(placeholderVerbs, line[j]) >= 0 {
				cut(j)
			}
			i = j
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == 'n':
			cut(i + 1)
			i++
		default:
			i++
		}
	}

	if start < len(line) {
		cut(len(line))
	}
	return segs
}

// escapePercent writes every run of '%' one longer
func escapePercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		if s[i] == '%' && (i+1 == len(s) || s[i+1] != '%') {
			b.WriteByte('%')
		}
	}
	return b.String()
}
