package convo

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// toolCommandThreshold is the fixed similarity threshold from spec.md §4.5
// step 3. The matcher itself is explicitly out of scope for the spec; this
// is a concrete, reasonable resolution of that open question.
const toolCommandThreshold = 0.5

// defaultToolCommandPatterns seeds the fuzzy matcher used to decide whether
// a question "looks like" a tool invocation and therefore always needs
// context injected, even on a later turn.
var defaultToolCommandPatterns = []string{
	"run the tests",
	"execute this command",
	"run this in the shell",
	"git status",
	"generate a diagram",
	"create a diagram",
	"render this diagram",
	"show me a diagram",
}

// looksLikeToolCommand reports whether question is similar enough to any of
// patterns to be treated as a tool-invocation style request. Each pattern is
// compared against the whole question string and against every equal-length
// word window of question, so a short command phrase embedded in a longer
// sentence still matches.
func looksLikeToolCommand(question string, patterns []string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return false
	}

	words := strings.Fields(q)
	for _, p := range patterns {
		p = strings.ToLower(p)
		pw := strings.Fields(p)
		best := similarity(q, p)
		for i := 0; i+len(pw) <= len(words); i++ {
			window := strings.Join(words[i:i+len(pw)], " ")
			if s := similarity(window, p); s > best {
				best = s
			}
		}
		if best >= toolCommandThreshold {
			return true
		}
	}
	return false
}

// similarity returns a normalized [0,1] closeness score derived from the
// Levenshtein edit distance, 1 meaning identical.
func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
