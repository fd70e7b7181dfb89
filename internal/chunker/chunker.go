package chunker

import (
	"strings"
	"unicode/utf8"
)

// Boundary preference, coarsest first: paragraph, line, sentence, word.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter splits raw document text into overlapping passages sized for
// embedding. Separators stay attached to the preceding fragment, so the
// produced chunks concatenate back to the input once overlaps are removed.
type Splitter struct {
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 5000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split breaks text into chunks of at most chunkSize characters, each chunk
// after the first sharing roughly overlap characters with the previous
// chunk's tail. Whitespace-only input yields no chunks. Deterministic.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.assemble(s.fragment(text, 0))
}

// fragment recursively breaks text on the coarsest boundary that produces
// fragments no longer than chunkSize.
func (s *Splitter) fragment(text string, level int) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if level >= len(separators) {
		return s.hardSplit(text)
	}

	parts := strings.SplitAfter(text, separators[level])
	if len(parts) == 1 {
		return s.fragment(text, level+1)
	}

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > s.chunkSize {
			out = append(out, s.fragment(part, level+1)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// hardSplit cuts a boundary-less fragment at rune-safe positions.
func (s *Splitter) hardSplit(text string) []string {
	var out []string
	for len(text) > s.chunkSize {
		cut := s.chunkSize
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = s.chunkSize
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// assemble merges fragments into chunks, carrying the trailing fragments of
// each emitted chunk (at least overlap characters' worth, when available)
// into the next one.
func (s *Splitter) assemble(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, p := range pieces {
		if total+len(p) > s.chunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for len(window) > 0 && (total+len(p) > s.chunkSize || total-len(window[0]) >= s.overlap) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += len(p)
	}

	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}
