// Package lockfile implements tweekit.lock, a lock file that tracks MD5
// checksums of source sentences per dictionary. After every sync the merged
// dictionaries are recorded, so the next sync can report which dictionaries
// gained, lost or changed rows upstream.
//
// The lock file is stored alongside .tweekit.yaml as tweekit.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/tweekit/dictfile"
)

// LockFileName is the default lock file name.
const LockFileName = "tweekit.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the tweekit.lock file structure.
type LockFile struct {
	Version int `yaml:"version"`
	// Synced maps a channel to the upstream version it was last synced at.
	Synced    map[string]string            `yaml:"synced,omitempty"`
	Checksums map[string]map[string]string `yaml:"checksums"` // dictionary -> row key -> md5(source)

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Synced:    make(map[string]string),
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	if lf.Synced == nil {
		lf.Synced = make(map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// DictKey builds the lock file key of a dictionary from its relative path.
func DictKey(rel string) string {
	return filepath.ToSlash(rel)
}

// IsChanged checks if a row's source sentence changed since the last record.
// Returns true if the row is new or its source differs.
func (lf *LockFile) IsChanged(dict, key, source string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[dict]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(source)
}

// Record replaces the checksums of a dictionary with its current rows and
// returns how many rows were added or changed and how many disappeared.
func (lf *LockFile) Record(dict string, f *dictfile.File) (changed, removed int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[dict]
	current := make(map[string]string, len(f.Entries))
	for _, e := range f.Entries {
		h := Hash(e.Source)
		if existing == nil || existing[e.Key] != h {
			changed++
		}
		current[e.Key] = h
	}
	for k := range existing {
		if _, ok := current[k]; !ok {
			removed++
		}
	}
	lf.Checksums[dict] = current
	return changed, removed
}

// SetSynced records the upstream version a channel was synced at.
func (lf *LockFile) SetSynced(channel, version string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Synced[channel] = version
}

// SyncedVersion returns the version a channel was last synced at.
func (lf *LockFile) SyncedVersion(channel string) string {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.Synced[channel]
}

// Clean removes dictionaries that are no longer present.
func (lf *LockFile) Clean(current []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(current))
	for _, k := range current {
		valid[k] = true
	}
	for k := range lf.Checksums {
		if !valid[k] {
			delete(lf.Checksums, k)
		}
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of dictionaries and total rows in the lock file.
func (lf *LockFile) Stats() (dicts, rows int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	dicts = len(lf.Checksums)
	for _, m := range lf.Checksums {
		rows += len(m)
	}
	return
}

// Dicts returns the sorted list of dictionary keys.
func (lf *LockFile) Dicts() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	dicts := make([]string, 0, len(lf.Checksums))
	for d := range lf.Checksums {
		dicts = append(dicts, d)
	}
	sort.Strings(dicts)
	return dicts
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	dicts, rows := lf.Stats()
	if dicts == 0 {
		return "empty"
	}

	lf.mu.Lock()
	channels := make([]string, 0, len(lf.Synced))
	for c, v := range lf.Synced {
		channels = append(channels, c+"@"+v)
	}
	lf.mu.Unlock()
	sort.Strings(channels)

	s := fmt.Sprintf("%d dictionaries, %d rows", dicts, rows)
	if len(channels) > 0 {
		s += fmt.Sprintf(" (synced %s)", strings.Join(channels, ", "))
	}
	return s
}
