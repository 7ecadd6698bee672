package patch

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Rename maps a templating property to its localized variant.
type Rename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Rules holds the fixed rewrite tables used while patching.
type Rules struct {
	// SearchURL is prefixed to the URL-encoded translation in warnings.
	SearchURL string `yaml:"search_url,omitempty"`
	// PassThrough lists source file names whose untranslated and empty
	// entries are still considered.
	PassThrough []string `yaml:"pass_through,omitempty"`
	// Charset is inserted into the input sanitizer's character class so it
	// admits the target script.
	Charset string `yaml:"charset,omitempty"`
	// Labels translates single-word navigation link labels.
	Labels map[string]string `yaml:"labels,omitempty"`
	// Writing is the property rewritten inside <<print ...>> directives.
	Writing Rename `yaml:"writing,omitempty"`
	// NameCap is the property rewritten inside <<link>> and <<clothingicon>>.
	NameCap Rename `yaml:"name_cap,omitempty"`
	// Artifact is a known-malformed line that is always blanked.
	Artifact string `yaml:"artifact,omitempty"`
}

// DefaultRules returns the rule set for Simplified Chinese.
func DefaultRules() Rules {
	return Rules{
		PassThrough: []string{"clothing-sets.twee"},
		Charset:     `\u4e00-\u9fa5`,
		Labels: map[string]string{
			"Next":     "继续",
			"Leave":    "离开",
			"Refuse":   "拒绝",
			"Return":   "返回",
			"Resume":   "返回",
			"Confirm":  "确认",
			"Continue": "继续",
			"Stop":     "停止",
		},
		Writing:  Rename{From: "writing", To: "writ_cn"},
		NameCap:  Rename{From: "name_cap", To: "cn_name_cap"},
		Artifact: "].select($_rng)>>",
	}
}

// WithDefaults fills every unset field of r from DefaultRules.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.PassThrough == nil {
		r.PassThrough = d.PassThrough
	}
	if r.Charset == "" {
		r.Charset = d.Charset
	}
	if r.Labels == nil {
		r.Labels = d.Labels
	}
	if r.Writing.From == "" {
		r.Writing = d.Writing
	}
	if r.NameCap.From == "" {
		r.NameCap = d.NameCap
	}
	if r.Artifact == "" {
		r.Artifact = d.Artifact
	}
	return r
}

func (r Rules) isPassThrough(name string) bool {
	base := path.Base(name)
	for _, p := range r.PassThrough {
		if p == base {
			return true
		}
	}
	return false
}

// sanitizerClass is the character class of the input sanitizer that
// strips everything outside ASCII letters.
const sanitizerClass = "replace(/[^a-zA-Z 0-9.!()]"

// patchSanitizer widens the sanitizer class to the target script. It only
// writes when the unpatched class is present and the widened one is not.
func (r Rules) patchSanitizer(line string) (string, bool) {
	if r.Charset == "" || !strings.Contains(line, sanitizerClass) {
		return line, false
	}
	widened := "replace(/[^a-zA-Z" + r.Charset + " 0-9.!()]"
	if strings.Contains(line, widened) {
		return line, false
	}
	return strings.Replace(line, sanitizerClass, widened, -1), true
}

const (
	printWritingRe = `<<print.*?\.%s>>`
	linkNameCapRe  = `<<link.*?\.%s>>`
	iconNameCapRe  = `<<clothingicon.*?\.%s`
)

// compiled holds the regular expressions derived from a rule set.
type compiled struct {
	rules Rules

	printWriting *regexp.Regexp
	linkNameCap  *regexp.Regexp
	iconNameCap  *regexp.Regexp

	labelTrigger *regexp.Regexp
	labelLink    *regexp.Regexp
}

func compile(r Rules) *compiled {
	c := &compiled{
		rules:        r,
		printWriting: regexp.MustCompile(fmt.Sprintf(printWritingRe, regexp.QuoteMeta(r.Writing.From))),
		linkNameCap:  regexp.MustCompile(fmt.Sprintf(linkNameCapRe, regexp.QuoteMeta(r.NameCap.From))),
		iconNameCap:  regexp.MustCompile(fmt.Sprintf(iconNameCapRe, regexp.QuoteMeta(r.NameCap.From))),
	}

	if len(r.Labels) > 0 {
		labels := make([]string, 0, len(r.Labels))
		for l := range r.Labels {
			labels = append(labels, l)
		}
		// Longest first so "Continue" is not shadowed by a shorter prefix
		sort.Slice(labels, func(i, j int) bool {
			if len(labels[i]) != len(labels[j]) {
				return len(labels[i]) > len(labels[j])
			}
			return labels[i] < labels[j]
		})
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = regexp.QuoteMeta(l)
		}
		alt := strings.Join(quoted, "|")
		c.labelTrigger = regexp.MustCompile(`<<link \[\[(?:` + alt + `)\s?\|`)
		c.labelLink = regexp.MustCompile(`\[\[(` + alt + `)(\s?\|)`)
	}
	return c
}

// rewriteWriting localizes the .writing property in line when probe holds a
// <<print ... .writing>> directive and guard, the line as found in the
// source, contains a print directive.
func (c *compiled) rewriteWriting(line, guard, probe string) string {
	if !strings.Contains(guard, "<<print") || !c.printWriting.MatchString(probe) {
		return line
	}
	from := "." + c.rules.Writing.From + ">>"
	to := "." + c.rules.Writing.To + ">>"
	return strings.ReplaceAll(line, from, to)
}

// rewriteNameCap localizes the .name_cap property of link and icon
// directives when guard already holds the directive and probe references
// the property through it.
func (c *compiled) rewriteNameCap(line, guard, probe string) string {
	if !strings.Contains(guard, c.rules.NameCap.From) {
		return line
	}
	switch {
	case strings.Contains(guard, "<<link ") && c.linkNameCap.MatchString(probe):
		from := "." + c.rules.NameCap.From + ">>"
		to := "." + c.rules.NameCap.To + ">>"
		return strings.ReplaceAll(line, from, to)
	case strings.Contains(guard, "<<clothingicon") && c.iconNameCap.MatchString(probe):
		return strings.ReplaceAll(line, "."+c.rules.NameCap.From, "."+c.rules.NameCap.To)
	}
	return line
}

// rewriteLabels translates common navigation labels in <<link [[...|...]]>>.
func (c *compiled) rewriteLabels(line string) string {
	if c.labelTrigger == nil || !strings.Contains(line, "<<link [[") || !c.labelTrigger.MatchString(line) {
		return line
	}
	return c.labelLink.ReplaceAllStringFunc(line, func(m string) string {
		sub := c.labelLink.FindStringSubmatch(m)
		return "[[" + c.rules.Labels[sub[1]] + sub[2]
	})
}
