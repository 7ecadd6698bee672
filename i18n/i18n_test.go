package i18n

import (
	"reflect"
	"testing"
)

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"TWEEKIT_LANG", "LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		t.Setenv(env, "")
	}
}

func TestAvailable(t *testing.T) {
	if got := Available(); !reflect.DeepEqual(got, []string{"zh_CN"}) {
		t.Fatalf("Available() = %v, want [zh_CN]", got)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"zh_CN", "zh_CN"},
		{"zh-CN", "zh_CN"},
		{"zh_CN.UTF-8", "zh_CN"},
		{"zh", "zh_CN"},
		{"fr_FR", ""},
		{"en", ""},
		{"C", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Match(tc.lang); got != tc.want {
			t.Errorf("Match(%q) = %q, want %q", tc.lang, got, tc.want)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Run("TWEEKIT_LANG wins", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("TWEEKIT_LANG", "zh_CN.UTF-8")
		t.Setenv("LC_ALL", "de_DE.UTF-8")
		if got := detectLanguage(); got != "zh_CN" {
			t.Fatalf("detectLanguage() = %q, want zh_CN", got)
		}
	})

	t.Run("LANGUAGE picks the first served entry", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU:zh_CN:en")
		t.Setenv("LC_ALL", "de_DE.UTF-8")
		if got := detectLanguage(); got != "zh_CN" {
			t.Fatalf("detectLanguage() = %q, want zh_CN", got)
		}
	})

	t.Run("unserved LANGUAGE falls through", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")
		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want fr_FR", got)
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want en", got)
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old := po
	po = nil
	t.Cleanup(func() { po = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want Hello", got)
	}
	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q", got)
	}
	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q", got)
	}
}

func TestInitLoadsEmbeddedCatalog(t *testing.T) {
	oldPo, oldCatalog := po, catalog
	t.Cleanup(func() { po, catalog = oldPo, oldCatalog })

	Init("zh")
	if Lang() != "zh_CN" {
		t.Fatalf("Lang() = %q, want zh_CN", Lang())
	}
	if got := T("Compile the game"); got != "编译游戏" {
		t.Fatalf("T(zh) = %q, want 编译游戏", got)
	}
	if got := T("no such message"); got != "no such message" {
		t.Fatalf("T(unknown) = %q, want passthrough", got)
	}

	Init("en")
	if Lang() != "" {
		t.Fatalf("Lang() = %q, want untranslated", Lang())
	}
	if got := T("Compile the game"); got != "Compile the game" {
		t.Fatalf("T(en) = %q, want source string", got)
	}
}
