package domain

import "regexp"

// inlineMath matches a non-empty inline LaTeX span such as $x^2 + 1$.
var inlineMath = regexp.MustCompile(`\$([^$]+)\$`)

// HasInlineMath reports whether text contains at least one inline LaTeX
// math span. Replies that do are typeset instead of sent as plain text.
func HasInlineMath(text string) bool {
	return inlineMath.MatchString(text)
}
