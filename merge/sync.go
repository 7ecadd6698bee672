package merge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/minios-linux/tweekit/dictfile"
	"github.com/minios-linux/tweekit/pool"
)

// DefaultQuarantineDir is the reserved subtree holding quarantined entries.
const DefaultQuarantineDir = "obsolete"

// SyncOptions configures an on-disk synchronization.
type SyncOptions struct {
	// OldRoot holds the previous version's translated dictionaries.
	OldRoot string
	// NewRoot holds the freshly extracted dictionaries; merged files are
	// written back here in place.
	NewRoot string
	// QuarantineDir is the reserved subtree under NewRoot (and skipped
	// under OldRoot). Defaults to DefaultQuarantineDir.
	QuarantineDir string
	// Keys selects which key carried-forward entries keep.
	Keys KeyPolicy
	// MaxConcurrent limits parallel file work (0 = unlimited).
	MaxConcurrent int

	// OnLog receives progress messages.
	OnLog func(format string, args ...any)
	// OnWarning receives non-fatal per-file notices.
	OnWarning func(format string, args ...any)
	// OnMerged is called after a merged dictionary was written.
	OnMerged func(rel string, f *dictfile.File)
}

func (o *SyncOptions) quarantineDir() string {
	if o.QuarantineDir == "" {
		return DefaultQuarantineDir
	}
	return o.QuarantineDir
}

func (o *SyncOptions) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *SyncOptions) warn(format string, args ...any) {
	if o.OnWarning != nil {
		o.OnWarning(format, args...)
	}
}

// Report summarizes a synchronization run.
type Report struct {
	Merged      int64 // dictionaries merged in place
	Orphaned    int64 // dictionaries whose source file disappeared
	Carried     int64 // translations carried forward
	Quarantined int64 // entries moved to quarantine
}

// SyncDir synchronizes every dictionary under opts.OldRoot with its
// counterpart under opts.NewRoot. Files are processed independently; a
// failing file does not stop the others and all failures are returned
// together after every file has been handled.
func SyncDir(ctx context.Context, opts SyncOptions) (*Report, error) {
	qdir := opts.quarantineDir()

	paths, err := dictfile.ListTree(opts.OldRoot, qdir)
	if err != nil {
		return nil, err
	}
	opts.log("Synchronizing %d dictionaries", len(paths))

	report := &Report{}
	err = pool.Run(ctx, paths, opts.MaxConcurrent, func(_ context.Context, rel string) error {
		if err := syncFile(rel, qdir, &opts, report); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		return nil
	})
	return report, err
}

func syncFile(rel, qdir string, opts *SyncOptions, report *Report) error {
	oldFile, err := dictfile.ParseFile(dictfile.Join(opts.OldRoot, rel))
	if err != nil {
		return err
	}
	for _, s := range oldFile.Skipped {
		opts.warn("%s: skipped malformed row %d (%d fields)", rel, s.Row, s.Width)
	}

	quarantinePath := dictfile.Join(dictfile.Join(opts.NewRoot, qdir), rel)
	newPath := dictfile.Join(opts.NewRoot, rel)

	if !dictfile.Exists(newPath) {
		q := Orphan(oldFile)
		atomic.AddInt64(&report.Orphaned, 1)
		if len(q) == 0 {
			return nil
		}
		opts.warn("%s: source file removed, quarantining %d entries", rel, len(q))
		atomic.AddInt64(&report.Quarantined, int64(len(q)))
		return dictfile.AppendUnique(quarantinePath, q)
	}

	newFile, err := dictfile.ParseFile(newPath)
	if err != nil {
		return err
	}
	for _, s := range newFile.Skipped {
		opts.warn("%s: skipped malformed row %d (%d fields)", rel, s.Row, s.Width)
	}

	merged, q := MergeWith(oldFile, newFile, opts.Keys)
	if err := merged.WriteFile(newPath); err != nil {
		return err
	}
	atomic.AddInt64(&report.Merged, 1)

	_, translated, _ := merged.Stats()
	atomic.AddInt64(&report.Carried, int64(translated))

	if opts.OnMerged != nil {
		opts.OnMerged(rel, merged)
	}

	if len(q) > 0 {
		atomic.AddInt64(&report.Quarantined, int64(len(q)))
		if err := dictfile.AppendUnique(quarantinePath, q); err != nil {
			return err
		}
	}
	return nil
}
