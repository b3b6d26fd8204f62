package textproc

import "unicode"

// Chunk splits cleaned text into the atomic units the stream emits: each
// maximal run of non-whitespace characters is one unit, and each whitespace
// or control character (space, newline, tab) is its own unit so the client
// can rebuild the exact formatting. Sentence-terminal punctuation stays
// attached to the word it follows.
//
// Concatenating the returned units in order reproduces the input
// byte-for-byte.
func Chunk(text string) []string {
	if text == "" {
		return nil
	}
	var units []string
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				units = append(units, text[start:i])
				start = -1
			}
			units = append(units, string(r))
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		units = append(units, text[start:])
	}
	return units
}

// Emittable reports whether a unit should be sent to the client: any unit
// with visible content, or a whitespace unit the client needs for layout.
func Emittable(unit string) bool {
	switch unit {
	case "\n", " ", "\t":
		return true
	}
	for _, r := range unit {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
