// Package chunker splits chapter text into bounded-size segments for the
// translation and speech providers, preferring paragraph and sentence
// boundaries so no provider call starts mid-sentence.
package chunker

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"
)

var (
	ErrInvalidLimit = errors.New("chunk limit must be positive")
	ErrEmptyInput   = errors.New("no text to chunk")
)

// sentence-terminal runes for latin and CJK scripts.
const terminals = ".!?。！？"

// Split cuts text into ordered chunks of at most maxChars characters each.
// Paragraphs are packed greedily; a paragraph longer than the limit is split
// at sentence boundaries; a single sentence longer than the limit is
// hard-split at whitespace as a last resort. The same input and limit always
// produce the same chunks, and concatenating all chunks reproduces the input
// modulo whitespace at the cut points.
func Split(text string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, ErrInvalidLimit
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, para := range paragraphs(text) {
		paraLen := runeLen(para)

		if paraLen > maxChars {
			// Oversized paragraph: emit what we have, then split it by sentence.
			flush()
			chunks = append(chunks, splitParagraph(para, maxChars)...)
			continue
		}

		// +2 accounts for the "\n\n" join.
		if currentLen > 0 && currentLen+paraLen+2 > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()

	return chunks, nil
}

// Join reassembles chunk payloads in index order with a paragraph-preserving
// separator. Callers must pass chunks in their original order.
func Join(chunks []string) string {
	return strings.Join(chunks, "\n\n")
}

// paragraphs splits text on blank lines, dropping empty entries.
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitParagraph packs consecutive sentences of one oversized paragraph into
// chunks of at most maxChars characters.
func splitParagraph(para string, maxChars int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, sent := range sentences(para) {
		sentLen := runeLen(sent)

		if sentLen > maxChars {
			flush()
			chunks = append(chunks, hardSplit(sent, maxChars)...)
			continue
		}

		if currentLen > 0 && currentLen+sentLen+1 > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sent)
		currentLen += sentLen
	}
	flush()

	return chunks
}

// sentences splits a paragraph after runs of terminal punctuation. Trailing
// closing quotes stay attached to their sentence.
func sentences(para string) []string {
	var out []string
	runes := []rune(para)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(terminals, runes[i]) {
			continue
		}
		// Swallow the full punctuation run plus any closing quote.
		j := i
		for j+1 < len(runes) && (strings.ContainsRune(terminals, runes[j+1]) || isClosingQuote(runes[j+1])) {
			j++
		}
		// Only cut when followed by whitespace or end of text, so decimals
		// like 3.14 stay intact.
		if j+1 < len(runes) && !unicode.IsSpace(runes[j+1]) && !isCJK(runes[j+1]) {
			i = j
			continue
		}
		s := strings.TrimSpace(string(runes[start : j+1]))
		if s != "" {
			out = append(out, s)
		}
		start = j + 1
		i = j
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// hardSplit cuts a single over-long sentence at the nearest whitespace before
// the limit, falling back to a raw cut when there is none. This is lossy for
// prosody, not for content; log it as a quality degradation.
func hardSplit(sent string, maxChars int) []string {
	slog.Warn("hard-splitting sentence longer than chunk limit",
		"sentence_chars", runeLen(sent), "limit", maxChars)

	var chunks []string
	runes := []rune(sent)

	for len(runes) > maxChars {
		cut := maxChars
		for i := maxChars; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '」', '』':
		return true
	}
	return false
}

// isCJK reports whether r belongs to the CJK unified block, where sentences
// run without inter-sentence spaces.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || strings.ContainsRune(terminals, r)
}

func runeLen(s string) int {
	return len([]rune(s))
}
