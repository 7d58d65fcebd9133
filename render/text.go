package render

import (
	"fmt"
	"io"
	"strings"
)

// WriteText prints a page state for a terminal.
func WriteText(w io.Writer, s PageState) error {
	tw := &textWriter{w: w}

	if s.Notice != "" {
		tw.line(0, s.Notice)
		return tw.err
	}
	if len(s.Cards) == 0 {
		tw.line(0, "No activities available.")
		return tw.err
	}

	for i, c := range s.Cards {
		if i > 0 {
			tw.line(0, "")
		}
		tw.line(0, c.Name)
		if c.Description != "" {
			tw.line(1, c.Description)
		}
		tw.line(1, "Schedule: "+c.Schedule)
		tw.line(1, fmt.Sprintf("Availability: %d %s left", c.SpotsLeft, spotsWord(c.SpotsLeft)))
		tw.line(1, "Participants:")
		if c.Empty() {
			tw.line(2, EmptyRosterText)
			continue
		}
		for _, r := range c.Rows {
			tw.line(2, fmt.Sprintf("[%-2s] %s <%s>", r.Initials, r.DisplayName, r.Identifier))
		}
	}
	return tw.err
}

// WriteOptions prints the selection options, placeholder first.
func WriteOptions(w io.Writer, s PageState) error {
	tw := &textWriter{w: w}
	tw.line(0, "  "+s.Placeholder.Label)
	for i, o := range s.Options {
		tw.line(0, fmt.Sprintf("%d) %s", i+1, o))
	}
	return tw.err
}

func spotsWord(n int) string {
	if n == 1 || n == -1 {
		return "spot"
	}
	return "spots"
}

// textWriter remembers the first write error so callers check once.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) line(indent int, s string) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, "%s%s\n", strings.Repeat("  ", indent), s)
}
