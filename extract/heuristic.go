package extract

import (
	"strings"
	"unicode"
)

// Heuristic is the built-in Classifier. A line is translatable when it
// carries readable text outside of directives: it is not blank, not a
// passage header, not a comment, and at least one letter remains once
// plain directives are removed. Link directives and directives with quoted
// strings keep their text.
type Heuristic struct{}

// Classify implements Classifier.
func (Heuristic) Classify(lines []string) []bool {
	out := make([]bool, len(lines))
	comment := false
	for i, line := range lines {
		s := strings.TrimSpace(line)

		if comment {
			if strings.Contains(s, "*/") {
				comment = false
			}
			continue
		}
		switch {
		case s == "", strings.HasPrefix(s, "::"), strings.HasPrefix(s, "//"):
			continue
		case strings.HasPrefix(s, "/*"):
			comment = !strings.Contains(s, "*/")
			continue
		case strings.HasPrefix(s, "<!--"):
			continue
		}
		out[i] = hasText(stripDirectives(s))
	}
	return out
}

// stripDirectives removes every <<...>> span that holds neither a link nor
// a quoted string.
func stripDirectives(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "<<")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], ">>")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start + 2

		b.WriteString(s[:start])
		span := s[start:end]
		if strings.Contains(span, "[[") || strings.ContainsAny(span, `"'`) {
			b.WriteString(span)
		}
		s = s[end:]
	}
}

func hasText(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
