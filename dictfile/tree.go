package dictfile

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Ext is the dictionary file extension.
const Ext = ".csv"

// Source file extensions understood by the path mapping.
const (
	ExtTwee = ".twee"
	ExtJS   = ".js"
)

// Tree maps slash-separated relative dictionary paths to dictionaries for
// one version of the source tree.
type Tree struct {
	Version string
	Files   map[string]*File
}

// NewTree creates an empty tree for version.
func NewTree(version string) *Tree {
	return &Tree{Version: version, Files: make(map[string]*File)}
}

// Paths returns the relative paths in t, sorted.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Pool holds quarantined entries keyed by relative dictionary path.
type Pool map[string][]Entry

// Len returns the number of quarantined entries across all paths.
func (p Pool) Len() int {
	n := 0
	for _, entries := range p {
		n += len(entries)
	}
	return n
}

// DictPath maps a relative source path to its relative dictionary path:
// "a/b.twee" -> "a/b.csv", "a/x.js" -> "a/x.js.csv".
func DictPath(sourceRel string) string {
	sourceRel = filepath.ToSlash(sourceRel)
	if strings.HasSuffix(sourceRel, ExtTwee) {
		return strings.TrimSuffix(sourceRel, ExtTwee) + Ext
	}
	return sourceRel + Ext
}

// SourcePath is the inverse of DictPath.
func SourcePath(dictRel string) string {
	dictRel = filepath.ToSlash(dictRel)
	base := strings.TrimSuffix(dictRel, Ext)
	if strings.HasSuffix(base, ExtJS) {
		return base
	}
	return base + ExtTwee
}

// Join resolves a slash-separated relative path against a root directory.
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// ListTree returns the relative paths of all dictionary files under root,
// skipping any top-level directory named in skip.
func ListTree(root string, skip ...string) ([]string, error) {
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[path.Clean(filepath.ToSlash(s))] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && skipSet[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), Ext) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// LoadTree reads every dictionary under root into a Tree.
func LoadTree(root, version string, skip ...string) (*Tree, error) {
	paths, err := ListTree(root, skip...)
	if err != nil {
		return nil, err
	}

	t := NewTree(version)
	for _, rel := range paths {
		f, err := ParseFile(Join(root, rel))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		t.Files[rel] = f
	}
	return t, nil
}

// Exists reports whether a regular file exists at p.
func Exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
