// Package extract builds the initial dictionaries of a source tree.
//
// Narrative-script files (.twee) are scanned everywhere unless blacklisted;
// embedded-script files (.js) only when whitelisted. Each file's lines are
// classified by a Classifier and the translatable ones become dictionary
// rows keyed by line number and version.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/minios-linux/tweekit/dictfile"
	"github.com/minios-linux/tweekit/pool"
)

// Classifier decides which lines of a source file are translatable. It
// returns one boolean per input line.
type Classifier interface {
	Classify(lines []string) []bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(lines []string) []bool

// Classify calls f.
func (f ClassifierFunc) Classify(lines []string) []bool {
	return f(lines)
}

// Lists holds per-directory file filters. Keys are directory base names.
type Lists struct {
	// Blacklist excludes .twee files; an empty list excludes the whole directory.
	Blacklist map[string][]string `yaml:"blacklist,omitempty"`
	// Whitelist includes .js files, which are skipped otherwise.
	Whitelist map[string][]string `yaml:"whitelist,omitempty"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// accept reports whether the file name in directory dir is extracted.
func (l Lists) accept(dir, name string) bool {
	switch path.Ext(name) {
	case dictfile.ExtTwee:
		files, listed := l.Blacklist[dir]
		if !listed {
			return true
		}
		return len(files) > 0 && !contains(files, name)
	case dictfile.ExtJS:
		return contains(l.Whitelist[dir], name)
	}
	return false
}

// FindSources returns the slash-separated relative paths of every source
// file under root accepted by lists, sorted.
func FindSources(root string, lists Lists) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		dir := filepath.Base(filepath.Dir(p))
		if !lists.accept(dir, d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Key builds the row key for a 1-based line number: "12_4_1_7|" for
// version "0.4.1.7". The leading major component is dropped.
func Key(line int, version string) string {
	parts := strings.Split(version, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return fmt.Sprintf("%d_%s|", line, strings.Join(parts, "_"))
}

// Dictionary builds the dictionary of one file from its classified lines.
// It returns nil when no line is translatable.
func Dictionary(lines []string, able []bool, version string) (*dictfile.File, error) {
	if len(able) != len(lines) {
		return nil, fmt.Errorf("classifier returned %d flags for %d lines", len(able), len(lines))
	}

	f := dictfile.NewFile()
	for i, line := range lines {
		if !able[i] {
			continue
		}
		source := strings.TrimSpace(line)
		if source == "" {
			continue
		}
		f.Entries = append(f.Entries, dictfile.Entry{Key: Key(i+1, version), Source: source})
	}
	if len(f.Entries) == 0 {
		return nil, nil
	}
	return f, nil
}

// Options configures an extraction run.
type Options struct {
	// SourceRoot is the directory holding the narrative sources.
	SourceRoot string
	// DictRoot receives one dictionary per source file.
	DictRoot string
	// Version tags the row keys.
	Version string
	// Lists filters which files are extracted.
	Lists Lists
	// Classifier marks translatable lines. Defaults to Heuristic.
	Classifier Classifier
	// MaxConcurrent limits parallel file work (0 = unlimited).
	MaxConcurrent int

	OnLog     func(format string, args ...any)
	OnWarning func(format string, args ...any)
}

// Report summarizes an extraction run.
type Report struct {
	Files   int64 // source files scanned
	Written int64 // dictionaries written
	Entries int64 // rows written
	Empty   int64 // files without translatable lines
}

// Run extracts a dictionary for every accepted source file. Per-file
// failures are collected and returned after every file was processed.
func Run(ctx context.Context, opts Options) (*Report, error) {
	files, err := FindSources(opts.SourceRoot, opts.Lists)
	if err != nil {
		return nil, err
	}
	if opts.OnLog != nil {
		opts.OnLog("Found %d source files in %s", len(files), opts.SourceRoot)
	}

	classifier := opts.Classifier
	if classifier == nil {
		classifier = Heuristic{}
	}

	report := &Report{Files: int64(len(files))}
	err = pool.Run(ctx, files, opts.MaxConcurrent, func(_ context.Context, rel string) error {
		data, err := os.ReadFile(dictfile.Join(opts.SourceRoot, rel))
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		f, err := Dictionary(lines, classifier.Classify(lines), opts.Version)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		if f == nil {
			atomic.AddInt64(&report.Empty, 1)
			if opts.OnWarning != nil {
				opts.OnWarning("%s: no translatable lines", rel)
			}
			return nil
		}

		if err := f.WriteFile(dictfile.Join(opts.DictRoot, dictfile.DictPath(rel))); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		atomic.AddInt64(&report.Written, 1)
		atomic.AddInt64(&report.Entries, int64(len(f.Entries)))
		return nil
	})
	return report, err
}
