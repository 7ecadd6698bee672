// Package merge implements dictionary synchronization between two versions
// of the source tree, in the spirit of msgmerge.
//
// Entries are matched by source sentence, not by position. Translations of
// sentences that still exist are carried onto the freshly extracted
// dictionary; real translations whose sentence vanished are moved to a
// quarantine pool so no translator work is lost.
package merge

import (
	"strings"

	"github.com/minios-linux/tweekit/dictfile"
)

// KeyPolicy selects which key a carried-forward entry keeps.
type KeyPolicy int

const (
	// KeepOldKey copies the previous version's key onto the matched entry so
	// the row keeps its identity on the translation platform.
	KeepOldKey KeyPolicy = iota
	// KeepNewKey leaves the freshly extracted key in place.
	KeepNewKey
)

// Merge carries translations from an old dictionary onto a new one using
// KeepOldKey. See MergeWith.
func Merge(oldFile, newFile *dictfile.File) (*dictfile.File, []dictfile.Entry) {
	return MergeWith(oldFile, newFile, KeepOldKey)
}

// MergeWith carries translations from an old dictionary onto a new one.
//   - New entries keep their order; when the source sentence matches, the
//     key follows policy and a translated old entry supplies its target.
//   - Old entries holding a deliberate translation whose sentence is gone
//     from the new dictionary are returned as quarantined.
//   - Untranslated and self-identical old entries are simply dropped.
func MergeWith(oldFile, newFile *dictfile.File, policy KeyPolicy) (*dictfile.File, []dictfile.Entry) {
	result := dictfile.NewFile()

	// Index old entries by sentence; the last duplicate wins
	oldBySource := make(map[string]dictfile.Entry, len(oldFile.Entries))
	for _, e := range oldFile.Entries {
		oldBySource[e.Source] = e
	}

	for _, ne := range newFile.Entries {
		old, ok := oldBySource[ne.Source]
		if !ok {
			result.Entries = append(result.Entries, ne)
			continue
		}
		merged := dictfile.Entry{Key: old.Key, Source: ne.Source}
		if policy == KeepNewKey {
			merged.Key = ne.Key
		}
		if old.IsTranslated() {
			merged = merged.WithTarget(strings.TrimSpace(old.Target))
		}
		result.Entries = append(result.Entries, merged)
	}

	newSources := newFile.Sources()
	var quarantined []dictfile.Entry
	for _, e := range oldFile.Entries {
		if !e.IsDeliberate() {
			continue
		}
		if !newSources[e.Source] {
			quarantined = append(quarantined, e)
		}
	}

	return result, quarantined
}

// Orphan returns the entries to quarantine when a dictionary's source file
// disappeared: every deliberate translation, verbatim. Untranslated, empty
// and self-identical rows carry no translator work and are dropped.
func Orphan(oldFile *dictfile.File) []dictfile.Entry {
	var quarantined []dictfile.Entry
	for _, e := range oldFile.Entries {
		if e.IsDeliberate() {
			quarantined = append(quarantined, e)
		}
	}
	return quarantined
}

// SyncTree reconciles a translated tree with a freshly extracted one.
// The merged tree holds one dictionary per path of newTree; paths that only
// exist in oldTree contribute their translated entries to the pool.
func SyncTree(oldTree, newTree *dictfile.Tree, policy KeyPolicy) (*dictfile.Tree, dictfile.Pool) {
	merged := dictfile.NewTree(newTree.Version)
	pool := make(dictfile.Pool)

	for _, rel := range newTree.Paths() {
		nf := newTree.Files[rel]
		of, ok := oldTree.Files[rel]
		if !ok {
			merged.Files[rel] = nf
			continue
		}
		mf, q := MergeWith(of, nf, policy)
		merged.Files[rel] = mf
		if len(q) > 0 {
			pool[rel] = q
		}
	}

	for _, rel := range oldTree.Paths() {
		if _, ok := newTree.Files[rel]; ok {
			continue
		}
		if q := Orphan(oldTree.Files[rel]); len(q) > 0 {
			pool[rel] = q
		}
	}

	return merged, pool
}
