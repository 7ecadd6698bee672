package extract

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/tweekit/dictfile"
	"github.com/minios-linux/tweekit/pool"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    int
		version string
		want    string
	}{
		{12, "0.4.1.7", "12_4_1_7|"},
		{1, "0.1.2", "1_1_2|"},
		{3, "5", "3_5|"},
	}
	for _, tc := range tests {
		if got := Key(tc.line, tc.version); got != tc.want {
			t.Errorf("Key(%d, %q) = %q, want %q", tc.line, tc.version, got, tc.want)
		}
	}
}

func TestHeuristic(t *testing.T) {
	t.Parallel()

	lines := []string{
		":: Bedroom [nobr]",
		"",
		"You wake up in your bed.",
		"<<set $time to 0>>",
		"<<link [[Next|Hallway]]>><</link>>",
		"<<if $weather is \"rain\">>",
		"It is raining <<print $name>>.",
		"/* setup",
		"   still a comment */",
		"// note",
		"<</if>>",
		"<<print \"Good morning\">>",
	}
	want := []bool{false, false, true, false, true, true, true, false, false, false, false, true}

	if got := (Heuristic{}).Classify(lines); !reflect.DeepEqual(got, want) {
		t.Fatalf("Classify = %v, want %v", got, want)
	}
}

func TestDictionary(t *testing.T) {
	t.Parallel()

	lines := []string{":: A", "  Hello  ", "<<set $x to 1>>", "   "}
	f, err := Dictionary(lines, []bool{false, true, false, true}, "0.4.1.7")
	if err != nil {
		t.Fatal(err)
	}
	want := []dictfile.Entry{{Key: "2_4_1_7|", Source: "Hello"}}
	if !reflect.DeepEqual(f.Entries, want) {
		t.Fatalf("entries = %+v, want %+v", f.Entries, want)
	}

	if f, err := Dictionary(lines, make([]bool, len(lines)), "0.4"); err != nil || f != nil {
		t.Fatalf("no translatable lines: got %v, %v; want nil, nil", f, err)
	}
	if _, err := Dictionary(lines, []bool{true}, "0.4"); err == nil {
		t.Fatal("expected error on flag count mismatch")
	}
}

func TestFindSources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, rel := range []string{
		"overworld/town.twee",
		"overworld/forest.twee",
		"special/debug.twee",
		"flavour/intro.twee",
		"js/setup.js",
		"js/util.js",
		"img/readme.txt",
	} {
		writeFile(t, filepath.Join(root, rel), "x\n")
	}

	lists := Lists{
		Blacklist: map[string][]string{
			"special":   {},
			"overworld": {"forest.twee"},
		},
		Whitelist: map[string][]string{
			"js": {"setup.js"},
		},
	}
	got, err := FindSources(root, lists)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"flavour/intro.twee", "js/setup.js", "overworld/town.twee"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindSources = %v, want %v", got, want)
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	dicts := t.TempDir()
	writeFile(t, filepath.Join(src, "town", "school.twee"), ":: School\r\nHello\r\n<<set $x to 1>>\r\nGoodbye\r\n")
	writeFile(t, filepath.Join(src, "town", "empty.twee"), ":: Empty\n<<set $y to 2>>\n")
	writeFile(t, filepath.Join(src, "js", "setup.js"), "var a = 1;\n")

	var warnings []string
	report, err := Run(context.Background(), Options{
		SourceRoot:    src,
		DictRoot:      dicts,
		Version:       "0.4.1.7",
		Lists:         Lists{Whitelist: map[string][]string{"js": {"setup.js"}}},
		MaxConcurrent: 1,
		OnWarning: func(format string, args ...any) {
			warnings = append(warnings, format)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Files != 3 || report.Written != 2 || report.Empty != 1 || report.Entries != 3 {
		t.Fatalf("report = %+v", report)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}

	f, err := dictfile.ParseFile(filepath.Join(dicts, "town", "school.csv"))
	if err != nil {
		t.Fatal(err)
	}
	want := []dictfile.Entry{
		{Key: "2_4_1_7|", Source: "Hello"},
		{Key: "4_4_1_7|", Source: "Goodbye"},
	}
	if !reflect.DeepEqual(f.Entries, want) {
		t.Fatalf("school entries = %+v, want %+v", f.Entries, want)
	}
	if !dictfile.Exists(filepath.Join(dicts, "js", "setup.js.csv")) {
		t.Fatal("setup.js dictionary not written")
	}
	if dictfile.Exists(filepath.Join(dicts, "town", "empty.csv")) {
		t.Fatal("empty file must not produce a dictionary")
	}
}

func TestRunClassifierMismatchFailsOnlyThatFile(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.twee"), "one\ntwo\n")
	writeFile(t, filepath.Join(src, "b.twee"), "three\n")

	short := ClassifierFunc(func(lines []string) []bool {
		return []bool{true}
	})
	report, err := Run(context.Background(), Options{
		SourceRoot: src,
		DictRoot:   t.TempDir(),
		Version:    "0.1",
		Classifier: short,
	})
	errs := pool.Errors(err)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "a.twee") {
		t.Fatalf("errors = %v, want one failure for a.twee", errs)
	}
	if report.Written != 1 {
		t.Fatalf("Written = %d, want 1", report.Written)
	}
}
