// Package i18n translates tweekit's own command-line messages.
//
// Catalogs are gettext .po files embedded under locales/<lang>/LC_MESSAGES.
// The requested language is matched against the embedded catalogs, so
// "zh", "zh-CN" and "zh_CN.UTF-8" all select zh_CN. Without a match the
// English source strings are shown.
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const (
	domain     = "tweekit"
	localesDir = "locales"
)

var (
	po      *gotext.Locale
	catalog string
)

// Init selects the catalog for lang, or for the environment when lang is
// empty. It is called once from main before any message is looked up.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	catalog = Match(lang)

	name := catalog
	if name == "" {
		name = "en"
	}
	po = gotext.NewLocaleFSWithPath(name, locales, localesDir)
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the active catalog name, or "" when messages are untranslated.
func Lang() string {
	return catalog
}

// Available returns the embedded catalog names, sorted.
func Available() []string {
	entries, err := fs.ReadDir(locales, localesDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Match returns the embedded catalog serving lang, or "".
func Match(lang string) string {
	lang = normalize(lang)
	if lang == "" {
		return ""
	}
	names := Available()
	if len(names) == 0 {
		return ""
	}
	tags := make([]language.Tag, len(names))
	for i, n := range names {
		tags[i] = language.Make(n)
	}
	want, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	_, idx, conf := language.NewMatcher(tags).Match(want)
	if conf < language.High {
		return ""
	}
	return names[idx]
}

// T translates msgid, returning it unchanged when no translation exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a message with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// normalize strips the encoding and modifier of a POSIX locale name
// ("zh_CN.UTF-8@euro" -> "zh_CN") and maps C/POSIX to "".
func normalize(val string) string {
	if i := strings.IndexAny(val, ".@"); i >= 0 {
		val = val[:i]
	}
	if val == "C" || val == "POSIX" {
		return ""
	}
	return val
}

// detectLanguage reads TWEEKIT_LANG, then the GNU gettext variables
// LANGUAGE, LC_ALL, LC_MESSAGES and LANG. LANGUAGE may list several
// languages; the first with an embedded catalog wins.
func detectLanguage() string {
	if v := normalize(os.Getenv("TWEEKIT_LANG")); v != "" {
		return v
	}
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			for _, l := range strings.Split(val, ":") {
				if Match(l) != "" {
					return normalize(l)
				}
			}
			continue
		}
		if v := normalize(val); v != "" {
			return v
		}
	}
	return "en"
}
