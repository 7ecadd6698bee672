// Package dictfile implements reading and writing of dictionary files:
// one CSV table per source file, each row a translation entry of the form
// [key, source] (untranslated) or [key, source, target] (translated).
//
// Files are UTF-8 with a byte order mark, matching what the translation
// platform exports and imports.
package dictfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Entry is a single row of a dictionary.
type Entry struct {
	// Key is the stable identifier assigned at extraction time. It is kept
	// for traceability and is not used for matching.
	Key string
	// Source is the original-language sentence, trimmed.
	Source string
	// Target is the translated sentence. Only meaningful when HasTarget is set.
	Target string
	// HasTarget records whether the row carries a third field.
	HasTarget bool
}

// IsTranslated reports whether the row is three fields wide.
func (e Entry) IsTranslated() bool {
	return e.HasTarget
}

// IsDeliberate reports whether the entry holds a real translation: present,
// non-empty and different from the source sentence.
func (e Entry) IsDeliberate() bool {
	return e.HasTarget && e.Target != "" && e.Target != e.Source
}

// Fields returns the row as written to disk.
func (e Entry) Fields() []string {
	if e.HasTarget {
		return []string{e.Key, e.Source, e.Target}
	}
	return []string{e.Key, e.Source}
}

// WithTarget returns a copy of e carrying target as its translation.
func (e Entry) WithTarget(target string) Entry {
	e.Target = target
	e.HasTarget = true
	return e
}

// SkippedRow describes a row that could not be decoded into an entry.
type SkippedRow struct {
	// Row is the 1-based record number in the file.
	Row int
	// Width is the number of fields found.
	Width int
	// Err is the CSV decoding error, if any.
	Err error
}

// File is an ordered dictionary for one source file.
type File struct {
	Entries []Entry
	// Skipped lists rows dropped while parsing.
	Skipped []SkippedRow
}

// NewFile creates an empty dictionary.
func NewFile() *File {
	return &File{Entries: make([]Entry, 0)}
}

// Stats returns translation statistics.
func (f *File) Stats() (total, translated, untranslated int) {
	for _, e := range f.Entries {
		total++
		if e.IsTranslated() {
			translated++
		} else {
			untranslated++
		}
	}
	return
}

// Sources returns the set of source sentences in f.
func (f *File) Sources() map[string]bool {
	set := make(map[string]bool, len(f.Entries))
	for _, e := range f.Entries {
		set[e.Source] = true
	}
	return set
}

// Parse reads a dictionary from r. A leading byte order mark is optional.
// Fields are kept as read; callers trim where they compare.
// Rows narrower than two fields are skipped and recorded in Skipped.
func Parse(r io.Reader) (*File, error) {
	f := NewFile()

	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(bufio.NewReader(dec))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				f.Skipped = append(f.Skipped, SkippedRow{Row: row, Width: len(rec), Err: err})
				continue
			}
			return nil, fmt.Errorf("reading dictionary: %w", err)
		}
		if len(rec) < 2 {
			f.Skipped = append(f.Skipped, SkippedRow{Row: row, Width: len(rec)})
			continue
		}

		e := Entry{Key: rec[0], Source: rec[1]}
		if len(rec) >= 3 {
			e = e.WithTarget(rec[2])
		}
		f.Entries = append(f.Entries, e)
	}

	return f, nil
}

// ParseFile reads a dictionary from disk.
func ParseFile(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return Parse(in)
}

// Write writes the dictionary to w with a byte order mark and CRLF rows.
func (f *File) Write(w io.Writer) error {
	enc := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(enc)
	cw.UseCRLF = true

	for _, e := range f.Entries {
		if err := cw.Write(e.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile writes the dictionary to disk, creating parent directories.
func (f *File) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(out); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}

// AppendUnique adds entries to the dictionary at path, creating it when
// missing. Entries already present field-for-field are not duplicated and
// existing rows are never removed.
func AppendUnique(path string, entries []Entry) error {
	f, err := ParseFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		f = NewFile()
	}

	seen := make(map[Entry]bool, len(f.Entries))
	for _, e := range f.Entries {
		seen[e] = true
	}
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		f.Entries = append(f.Entries, e)
	}

	f.Skipped = nil
	return f.WriteFile(path)
}
