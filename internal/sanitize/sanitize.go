// Package sanitize normalizes raw synthesis output into compilable source text.
package sanitize

import "strings"

// Clean strips the outermost markdown code fence from raw model output.
//
// The function trims surrounding whitespace, removes a leading fence line
// (a run of backticks optionally followed by a language tag), and removes a
// trailing bare run of backticks. Inner fenced snippets, such as documentation
// examples embedded in the generated file, are left untouched. Clean is pure
// and idempotent: Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if strings.HasPrefix(text, "```") {
		// The opening fence and its language tag occupy the first line.
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			// The whole text is a single fence line.
			return ""
		}
	}

	trimmed := strings.TrimRight(text, " \t\r\n")
	if strings.HasSuffix(trimmed, "```") {
		// Cut the entire trailing backtick run, not just the last three.
		end := len(trimmed)
		for end > 0 && trimmed[end-1] == '`' {
			end--
		}
		text = trimmed[:end]
	}

	return strings.TrimSpace(text)
}
