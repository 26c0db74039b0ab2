package blockpatch

import "strings"

// Document is a configuration file held in memory as an ordered sequence of
// lines. Each line keeps its terminator, so joining the lines reproduces the
// original text byte for byte.
type Document struct {
	lines []string
}

// ParseDocument splits text into lines.
func ParseDocument(text string) *Document {
	if text == "" {
		return &Document{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &Document{lines: lines}
}

// Len returns the number of lines.
func (d *Document) Len() int {
	return len(d.lines)
}

// Line returns the raw line at index i, including its terminator.
func (d *Document) Line(i int) string {
	return d.lines[i]
}

// String joins the lines back into text.
func (d *Document) String() string {
	return strings.Join(d.lines, "")
}

// content strips the line terminator, leaving leading whitespace intact.
func content(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// terminator returns the line ending of line ("\r\n", "\n" or "").
func terminator(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	default:
		return ""
	}
}

// lineEnding picks the terminator for a line inserted before index i.
func (d *Document) lineEnding(i int) string {
	if t := terminator(d.lines[i]); t != "" {
		return t
	}
	if i > 0 {
		if t := terminator(d.lines[i-1]); t != "" {
			return t
		}
	}
	return "\n"
}
