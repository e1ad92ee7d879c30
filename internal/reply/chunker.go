package reply

import "strings"

// Chunk splits text into pieces of at most size runes, breaking at
// paragraph, line, and space boundaries in that order of preference so
// chunks stay readable. A non-positive size returns the text unsplit.
func Chunk(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || len([]rune(text)) <= size {
		return []string{text}
	}

	var chunks []string
	remaining := []rune(text)
	for len(remaining) > size {
		cut := breakPoint(remaining, size)
		chunk := strings.TrimSpace(string(remaining[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = remaining[cut:]
	}
	if tail := strings.TrimSpace(string(remaining)); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// breakPoint picks where to split the first chunk out of runes, looking
// backwards from the size limit for a natural boundary.
func breakPoint(runes []rune, size int) int {
	window := string(runes[:size])

	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return len([]rune(window[:i+len(sep)]))
		}
	}
	return size
}
