package crew

import (
	"regexp"
	"strings"
)

// ResultMarker separates raw data from the summary in a leaders answer.
const ResultMarker = "---"

// Split is a result divided at the first marker. Without a marker, OK is
// false and Raw holds the whole text.
type Split struct {
	Raw     string `json:"raw"`
	Summary string `json:"summary"`
	OK      bool   `json:"ok"`
}

// SplitResult divides s at the first "---". When OK,
// Raw + "---" + Summary == s.
func SplitResult(s string) Split {
	i := strings.Index(s, ResultMarker)
	if i < 0 {
		return Split{Raw: s}
	}
	return Split{Raw: s[:i], Summary: s[i+len(ResultMarker):], OK: true}
}

// separatorTail matches dashes left on the marker's line by a longer
// separator such as "-----".
var separatorTail = regexp.MustCompile(`^-*[ \t]*\r?\n`)

// Format renders the labelled display. Dashes left over from a longer
// separator line are dropped; the summary text itself is kept as is.
func (s Split) Format() string {
	if !s.OK {
		return s.Raw
	}
	summary := strings.TrimSpace(separatorTail.ReplaceAllString(s.Summary, ""))
	return "Raw Data:\n" + strings.TrimSpace(s.Raw) + "\n\nHuman-Readable Summary:\n" + summary
}

// Display formats a graph's output for a human. Only the leaders graph is
// split.
func Display(name GraphName, output string) string {
	if name == GraphPlayerStats {
		return SplitResult(output).Format()
	}
	return output
}
