// Package patch applies a translation dictionary onto raw source files.
//
// Matching is line-literal: a dictionary entry replaces the first line
// whose trimmed text equals its source sentence. A closed set of rewrite
// rules then localizes templating references and common navigation labels
// on every line, and validation heuristics flag suspicious translations
// without blocking anything.
package patch

import (
	"os"
	"strings"

	"github.com/minios-linux/tweekit/dictfile"
)

// Result is the outcome of patching one file.
type Result struct {
	// Lines is the rewritten content; each line keeps its terminator.
	Lines []string
	// Warnings are advisory diagnostics in entry order.
	Warnings []Warning
	// Substituted counts entries that replaced a line.
	Substituted int
	// Rewritten counts line rewrites made by the heuristic rules.
	Rewritten int
}

// SplitLines splits data after every '\n', keeping terminators, so that
// strings.Join(lines, "") reproduces data byte for byte.
func SplitLines(data string) []string {
	if data == "" {
		return nil
	}
	lines := strings.SplitAfter(data, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitEOL separates a line's terminator from its content.
func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// pending is one entry prepared for patching.
type pending struct {
	source     string
	target     string
	substitute bool
}

// prepare decides whether an entry takes part in patching. Entries without
// a translation, with an empty one, or translated to themselves are skipped,
// except that a pass-through file still runs the rewrite rules for
// untranslated entries and substitutes empty translations.
func prepare(e dictfile.Entry, passThrough bool) (pending, bool) {
	source := strings.TrimSpace(e.Source)
	if source == "" {
		return pending{}, false
	}
	if !e.HasTarget {
		return pending{source: source}, passThrough
	}
	target := strings.TrimSpace(e.Target)
	if target == source {
		return pending{}, false
	}
	if target == "" && !passThrough {
		return pending{}, false
	}
	return pending{source: source, target: target, substitute: true}, true
}

// Apply patches lines of the source file name with dict. The input slice is
// not modified.
func Apply(name string, lines []string, dict *dictfile.File, rules Rules) Result {
	c := compile(rules)
	passThrough := rules.isPassThrough(name)

	res := Result{Lines: append([]string(nil), lines...)}
	for _, e := range dict.Entries {
		p, ok := prepare(e, passThrough)
		if !ok {
			continue
		}
		if p.substitute {
			res.Warnings = append(res.Warnings, Check(name, p.source, p.target, rules)...)
		}

		hit := -1
		if p.substitute {
			res.Lines, hit = c.substitute(res.Lines, p.source, p.target)
			if hit >= 0 {
				res.Substituted++
			}
		}

		var n int
		res.Lines, n = c.rewrite(res.Lines, hit)
		res.Rewritten += n
	}
	return res
}

// substitute replaces the first line whose trimmed text equals source and
// localizes the directives the translation carries. It returns the index
// of the replaced line, or -1.
func (c *compiled) substitute(lines []string, source, target string) ([]string, int) {
	for i, line := range lines {
		if strings.Contains(line, sanitizerClass) {
			continue
		}
		if strings.TrimSpace(line) != source {
			continue
		}
		out := strings.Replace(line, source, target, 1)
		out = c.rewriteWriting(out, line, target)
		out = c.rewriteNameCap(out, line, target)
		lines[i] = out
		return lines, i
	}
	return lines, -1
}

// rewrite runs the heuristic rules over every line except skip, which was
// already substituted for the current entry. It returns the number of
// lines changed.
func (c *compiled) rewrite(lines []string, skip int) ([]string, int) {
	changed := 0
	for i, line := range lines {
		if i == skip {
			continue
		}

		if out, ok := c.rules.patchSanitizer(line); ok {
			lines[i] = out
			changed++
			continue
		}
		if strings.Contains(line, sanitizerClass) {
			continue
		}

		var out string
		switch {
		case strings.Contains(line, "<"):
			out = c.rewriteLabels(line)
			out = c.rewriteWriting(out, line, line)
			out = c.rewriteNameCap(out, line, line)
		case c.rules.Artifact != "" && strings.TrimSpace(line) == c.rules.Artifact:
			_, eol := splitEOL(line)
			out = eol
		default:
			continue
		}
		if out != line {
			lines[i] = out
			changed++
		}
	}
	return lines, changed
}

// ApplyFile patches the source file at path in place.
func ApplyFile(path, name string, dict *dictfile.File, rules Rules) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}

	res := Apply(name, SplitLines(string(data)), dict, rules)

	out := strings.Join(res.Lines, "")
	if out == string(data) {
		return res, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return res, err
	}
	return res, nil
}
