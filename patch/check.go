package patch

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// Warning kinds.
const (
	KindFullWidthComma = "full-width-comma"
	KindBracket        = "bracket-mismatch"
	KindLinkTarget     = "link-target"
)

// Warning is an advisory diagnostic about a translation. It never blocks
// substitution.
type Warning struct {
	Kind   string
	File   string
	Source string
	Target string
	// Link points at the entry on the translation platform.
	Link string
}

// Check runs every validation heuristic on one entry.
func Check(file, source, target string, rules Rules) []Warning {
	var kinds []string
	if FullWidthComma(target) {
		kinds = append(kinds, KindFullWidthComma)
	}
	if BracketMismatch(source, target) {
		kinds = append(kinds, KindBracket)
	}
	if TargetMismatch(source, target) {
		kinds = append(kinds, KindLinkTarget)
	}

	warnings := make([]Warning, 0, len(kinds))
	for _, k := range kinds {
		warnings = append(warnings, Warning{
			Kind:   k,
			File:   file,
			Source: source,
			Target: target,
			Link:   SearchLink(rules.SearchURL, target),
		})
	}
	return warnings
}

// SearchLink returns base with the URL-encoded text appended, or "" when no
// base is configured.
func SearchLink(base, text string) string {
	if base == "" {
		return ""
	}
	return base + url.QueryEscape(text)
}

// FullWidthComma reports a translation ending in a full-width comma placed
// right after the closing quote.
func FullWidthComma(target string) bool {
	return strings.HasSuffix(target, `"，`) || strings.HasSuffix(target, `”，`)
}

// BracketMismatch reports a translation whose angle-bracket tokens do not
// balance the way the source's do. Only one form is compared: the doubled
// directive delimiters when the source uses them, single brackets otherwise.
func BracketMismatch(source, target string) bool {
	if !strings.ContainsAny(source, "<>") || onlyMarks(source) {
		return false
	}

	if !strings.Contains(source, "<<") && !strings.Contains(source, ">>") {
		tOpen, tClose := countSingle(target)
		if tOpen == tClose {
			return false
		}
		sOpen, sClose := countSingle(source)
		return sOpen != tOpen || sClose != tClose
	}

	tOpen, tClose := strings.Count(target, "<<"), strings.Count(target, ">>")
	if tOpen == tClose {
		return false
	}
	sOpen, sClose := strings.Count(source, "<<"), strings.Count(source, ">>")
	return sOpen != tOpen || sClose != tClose
}

// countSingle counts lone '<' and '>' that are not part of a doubled
// delimiter or a comparison operator.
func countSingle(s string) (opens, closes int) {
	isMark := func(i int) bool {
		return i >= 0 && i < len(s) && (s[i] == '<' || s[i] == '>' || s[i] == '=')
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '<' && s[i] != '>' {
			continue
		}
		if isMark(i-1) || isMark(i+1) {
			continue
		}
		if s[i] == '<' {
			opens++
		} else {
			closes++
		}
	}
	return opens, closes
}

// onlyMarks reports whether s holds nothing but punctuation, symbols and space.
func onlyMarks(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

var linkTargetRe = regexp.MustCompile(`<<link\s\[\[.*?\|(.*?)\]\]`)

// linkTargets extracts the passage targets of <<link [[LABEL|TARGET]]>>.
func linkTargets(s string) []string {
	var targets []string
	for _, m := range linkTargetRe.FindAllStringSubmatch(s, -1) {
		targets = append(targets, m[1])
	}
	return targets
}

// TargetMismatch reports a translation that altered (or dropped) the
// machine-readable target of a <<link [[LABEL|TARGET]]>> directive.
func TargetMismatch(source, target string) bool {
	if !strings.Contains(source, "<<link [[") || !strings.Contains(source, "|") || target == "" {
		return false
	}
	want := linkTargets(source)
	if len(want) == 0 {
		return false
	}
	got := linkTargets(target)
	if len(got) != len(want) {
		return true
	}
	for i := range want {
		if got[i] != want[i] {
			return true
		}
	}
	return false
}
