package shellsession

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// denySet is the fixed set of command names that are always rejected
// regardless of arguments (spec.md §4.8 step 2).
var denySet = map[string]bool{
	"rm":       true,
	"shutdown": true,
	"reboot":   true,
	"halt":     true,
	"poweroff": true,
	"sudo":     true,
	"su":       true,
	"mkfs":     true,
	"dd":       true,
	"kill":     true,
	"killall":  true,
	"chmod":    true,
	"chown":    true,
	"format":   true,
}

// dangerousPatterns are substrings that, anywhere in the full command text,
// cause rejection regardless of which command they appear in (spec.md
// §4.8 step 3).
var dangerousPatterns = []string{
	"-rf",
	"--no-preserve-root",
	">",
	"<",
	";",
	"&&",
	"||",
	"`",
	"$(",
	"eval ",
	"exec ",
}

// PolicyError signals a command rejected by the allow/deny security
// algorithm.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return fmt.Sprintf("shell command blocked: %s", e.Reason) }

// checkPolicy runs the C8 security algorithm against a raw command line.
func checkPolicy(command string) error {
	name := firstToken(command)
	if name != "" && denySet[strings.ToLower(name)] {
		return &PolicyError{Reason: fmt.Sprintf("command %q is blocked", name)}
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(command, pattern) {
			return &PolicyError{Reason: fmt.Sprintf("command contains blocked pattern %q", pattern)}
		}
	}

	return nil
}

// firstToken tokenises command with a shell syntax parser and returns the
// first word's base name, lowercased, with path components stripped
// (spec.md §4.8 step 1). Falls back to a naive whitespace split if the
// command does not parse as valid shell syntax.
func firstToken(command string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err == nil {
		var first string
		syntax.Walk(file, func(node syntax.Node) bool {
			if first != "" {
				return false
			}
			if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
				first = wordToString(call.Args[0])
				return false
			}
			return true
		})
		if first != "" {
			return strings.ToLower(filepath.Base(first))
		}
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(filepath.Base(fields[0]))
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			sb.WriteString(lit.Value)
		}
	}
	return sb.String()
}
