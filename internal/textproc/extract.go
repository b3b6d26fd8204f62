package textproc

import (
	"regexp"
	"strings"
)

// textValuePattern matches a "text" key with a quoted string value inside a
// raw streamed line. The value allows escaped characters so that an escaped
// quote does not terminate the match early.
var textValuePattern = regexp.MustCompile(`"text"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ExtractFragments scans one raw line of the upstream stream and returns
// every generated-text value it can find, in left-to-right order.
//
// The streamed frames are not guaranteed to be complete JSON objects: the
// transport may split one object across lines or pack several values into
// one line. A strict parser would drop the whole line in either case, so
// fragments are recovered by pattern matching instead. Lines with no
// recoverable value (including truncated values with no closing quote)
// yield nil.
func ExtractFragments(line string) []string {
	matches := textValuePattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}
	fragments := make([]string, 0, len(matches))
	for _, m := range matches {
		fragments = append(fragments, unescape(m[1]))
	}
	return fragments
}

// unescape undoes the literal escape sequences the upstream uses inside
// string values: \n, \t, \" and \\. It deliberately does not decode the
// value as JSON; unknown escapes are kept verbatim.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"':
			b.WriteByte('"')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
