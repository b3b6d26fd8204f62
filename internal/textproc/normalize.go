package textproc

import (
	"regexp"
	"strings"
)

// rewrite is one step of the normalization pipeline.
type rewrite struct {
	pattern *regexp.Regexp
	repl    string
}

// normalizeRules is the cleanup pipeline applied to generated worksheet text.
// The model keeps producing LaTeX macros and stray markup no matter how the
// prompt forbids them, so the output is repaired textually.
//
// The rules run in this exact order and the whole pipeline is idempotent:
// running it again over already-cleaned text changes nothing. Later rules
// rely on earlier ones having fired (symbol words like "times" only exist
// after the backslash strip), so do not reorder casually.
var normalizeRules = []rewrite{
	// Inline math delimiters.
	{regexp.MustCompile(`\$`), ""},

	// frac{A}{B} (optionally escaped) -> A/B. A partial macro that lost its
	// second argument mid-stream degrades to just A.
	{regexp.MustCompile(`\\*frac\s*\{([^{}]*)\}\s*\{([^{}]*)\}`), "$1/$2"},
	{regexp.MustCompile(`\\*frac\s*\{([^{}]*)\}`), "$1"},

	// Adjacent-brace remains of a fraction the upstream truncated mid-token.
	{regexp.MustCompile(`([0-9])\}\{`), "$1/"},
	{regexp.MustCompile(`\}\{([0-9])`), "/$1"},

	// Bare backslashes go first so text-wrapper macros are left in their
	// brace form for the next rule.
	{regexp.MustCompile(`\\+`), ""},

	// text{...}-style wrappers collapse to their inner text, then any
	// orphaned braces are dropped.
	{regexp.MustCompile(`(?:textbf|textrm|text|mathrm|boxed)\{([^{}]*)\}`), "$1"},
	{regexp.MustCompile(`[{}]`), ""},

	// Option markers: every circled digit starts its own line and is
	// followed by exactly one space.
	{regexp.MustCompile(`([^\n])[ \t]*([①-⑩])`), "$1\n$2"},
	{regexp.MustCompile(`([①-⑩])[ \t]*(\S)`), "$1 $2"},

	// Space+period left behind when the upstream split a fraction right
	// after the numeral of an option.
	{regexp.MustCompile(`([①-⑩] [0-9]+)[ \t]+\.`), "$1"},

	// No space between a number and its counting word.
	{regexp.MustCompile(`([0-9])[ \t]+(개|명|마리|권|장|자루|조각|봉지)`), "$1$2"},

	// A blank line after each [섹션] header and before each numbered item.
	{regexp.MustCompile(`(\[[^\[\]\n]+\])\n([^\n])`), "$1\n\n$2"},
	{regexp.MustCompile(`([^\n])\n([0-9]+\.[ \t])`), "$1\n\n$2"},

	// At most one blank line in a row.
	{regexp.MustCompile(`\n{3,}`), "\n\n"},

	// Operator macro names to plain symbols. These appear as bare words
	// because the backslash strip above already ran.
	{regexp.MustCompile(`\btimes\b`), "×"},
	{regexp.MustCompile(`\bdiv\b`), "÷"},
	{regexp.MustCompile(`\bcdot\b`), "·"},
	{regexp.MustCompile(`sqrt\s*`), "√"},
	{regexp.MustCompile(`\^2`), "²"},
	{regexp.MustCompile(`\^3`), "³"},
}

// Normalize repairs a complete generated text: the full rule pipeline plus
// a trim of the whole text. Safe to call on text of any shape, including
// text that was already normalized.
func Normalize(text string) string {
	return strings.TrimSpace(CleanFragment(text))
}

// CleanFragment runs the rule pipeline without the outer trim. The
// streaming path cleans fragment by fragment, and trimming there would eat
// the whitespace that joins adjacent fragments.
func CleanFragment(text string) string {
	for _, r := range normalizeRules {
		text = r.pattern.ReplaceAllString(text, r.repl)
	}
	return text
}
