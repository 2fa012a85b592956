package rag

import "strings"

// DefaultSeparators are tried in order: paragraphs, lines, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size runes, preferring the
// coarsest separator that fits, and carries Overlap runes of trailing
// context into the next chunk.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter. An overlap outside [0, size) becomes a
// tenth of size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunks of text. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, c := range s.split(text, s.Separators) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Splitter) split(text string, seps []string) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, sep)
	}

	var chunks, pending []string
	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
	}
	for _, p := range pieces {
		if runeLen(p) <= s.Size {
			pending = append(pending, p)
			continue
		}
		flush()
		if len(rest) == 0 {
			chunks = append(chunks, p)
		} else {
			chunks = append(chunks, s.split(p, rest)...)
		}
	}
	flush()
	return chunks
}

// merge joins small pieces into chunks up to Size, keeping a tail of up to
// Overlap runes as the start of the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		chunks []string
		window []string
		total  int
	)
	for _, p := range pieces {
		n := runeLen(p)
		extra := 0
		if len(window) > 0 {
			extra = sepLen
		}
		if total+n+extra > s.Size && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > s.Overlap || (total+n+sepLen > s.Size && total > 0)) {
				total -= runeLen(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}
	return chunks
}

func runeLen(s string) int { return len([]rune(s)) }
