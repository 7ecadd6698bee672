package dictfile

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestWriteParseRoundTrip(t *testing.T) {
	f := NewFile()
	f.Entries = []Entry{
		{Key: "1_4_1_7|", Source: "Hello"},
		{Key: "2_4_1_7|", Source: `She says "hi", then leaves.`, Target: `她说"嗨"，然后离开了。`, HasTarget: true},
		{Key: "3_4_1_7|", Source: "<<link [[Next|Home]]>>", Target: "", HasTarget: true},
		{Key: "4_4_1_7|", Source: "Same", Target: "Same", HasTarget: true},
		{Key: "5_4_1_7|", Source: " Padded ", Target: "你好 ", HasTarget: true},
		{Key: "6_4_1_7|", Source: "Two\nlines", Target: "  一\n二", HasTarget: true},
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("written dictionary should start with a UTF-8 BOM")
	}
	if !strings.Contains(buf.String(), "\r\n") {
		t.Fatal("rows should be CRLF terminated")
	}

	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !reflect.DeepEqual(got.Entries, f.Entries) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got.Entries, f.Entries)
	}
	if len(got.Skipped) != 0 {
		t.Fatalf("Skipped = %v, want none", got.Skipped)
	}
}

func TestParseWithoutBOMAndMalformedRows(t *testing.T) {
	input := "1_0_1_|,Hello,你好\nlonely\n2_0_1_|,  World  \n"

	f, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("entries len = %d, want 2", len(f.Entries))
	}
	if !f.Entries[0].HasTarget || f.Entries[0].Target != "你好" {
		t.Fatalf("first entry = %#v, want translated 你好", f.Entries[0])
	}
	if f.Entries[1].HasTarget {
		t.Fatalf("second entry should be untranslated: %#v", f.Entries[1])
	}
	if f.Entries[1].Source != "  World  " {
		t.Fatalf("source should be kept as read, got %q", f.Entries[1].Source)
	}
	if len(f.Skipped) != 1 || f.Skipped[0].Row != 2 || f.Skipped[0].Width != 1 {
		t.Fatalf("Skipped = %+v, want row 2 width 1", f.Skipped)
	}
}

func TestEntryPredicates(t *testing.T) {
	tests := []struct {
		name       string
		e          Entry
		translated bool
		deliberate bool
	}{
		{"untranslated", Entry{Source: "a"}, false, false},
		{"empty target", Entry{Source: "a", HasTarget: true}, true, false},
		{"self identical", Entry{Source: "a", Target: "a", HasTarget: true}, true, false},
		{"real translation", Entry{Source: "a", Target: "甲", HasTarget: true}, true, true},
	}
	for _, tc := range tests {
		if got := tc.e.IsTranslated(); got != tc.translated {
			t.Errorf("%s: IsTranslated() = %v, want %v", tc.name, got, tc.translated)
		}
		if got := tc.e.IsDeliberate(); got != tc.deliberate {
			t.Errorf("%s: IsDeliberate() = %v, want %v", tc.name, got, tc.deliberate)
		}
	}
}

func TestAppendUniqueOnlyGrows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsolete", "overworld", "town.csv")

	first := []Entry{{Key: "1|", Source: "Old", Target: "旧", HasTarget: true}}
	if err := AppendUnique(path, first); err != nil {
		t.Fatalf("AppendUnique: %v", err)
	}
	second := []Entry{
		{Key: "1|", Source: "Old", Target: "旧", HasTarget: true},
		{Key: "2|", Source: "Gone", Target: "走了", HasTarget: true},
	}
	if err := AppendUnique(path, second); err != nil {
		t.Fatalf("AppendUnique: %v", err)
	}

	f, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(f.Entries) != 2 {
		t.Fatalf("entries len = %d, want 2 (no duplicates)", len(f.Entries))
	}
	if f.Entries[1].Source != "Gone" {
		t.Fatalf("appended entry = %#v", f.Entries[1])
	}
}

func TestPathMapping(t *testing.T) {
	tests := []struct {
		source string
		dict   string
	}{
		{"overworld-town/loc-school/main.twee", "overworld-town/loc-school/main.csv"},
		{"04-Variables/colours.js", "04-Variables/colours.js.csv"},
		{"base.twee", "base.csv"},
	}
	for _, tc := range tests {
		if got := DictPath(tc.source); got != tc.dict {
			t.Errorf("DictPath(%q) = %q, want %q", tc.source, got, tc.dict)
		}
		if got := SourcePath(tc.dict); got != tc.source {
			t.Errorf("SourcePath(%q) = %q, want %q", tc.dict, got, tc.source)
		}
	}
}

func TestListTreeSkipsReservedDir(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"a/one.csv", "b/two.js.csv", "obsolete/a/one.csv", "a/readme.txt"} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("k,v\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := ListTree(root, "obsolete")
	if err != nil {
		t.Fatalf("ListTree: %v", err)
	}
	want := []string{"a/one.csv", "b/two.js.csv"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("ListTree = %v, want %v", paths, want)
	}

	tree, err := LoadTree(root, "0.4.1.7", "obsolete")
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if len(tree.Files) != 2 || tree.Version != "0.4.1.7" {
		t.Fatalf("tree = %+v", tree)
	}
}
