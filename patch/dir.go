package patch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/minios-linux/tweekit/dictfile"
	"github.com/minios-linux/tweekit/pool"
)

// ApplyOptions configures patching of a whole source tree.
type ApplyOptions struct {
	// DictRoot holds the merged dictionaries.
	DictRoot string
	// SourceRoot holds the live source files, rewritten in place.
	SourceRoot string
	// SkipDirs are dictionary subtrees that are not applied (quarantine).
	SkipDirs []string
	// Rules are the rewrite tables; unset fields take DefaultRules values.
	Rules Rules
	// MaxConcurrent limits parallel file work (0 = unlimited).
	MaxConcurrent int

	// OnLog receives progress messages.
	OnLog func(format string, args ...any)
	// OnWarning receives validation diagnostics. It may be called from
	// several goroutines at once.
	OnWarning func(w Warning)
}

// Report summarizes a patch run.
type Report struct {
	Files       int64
	Substituted int64
	Rewritten   int64
	Warnings    int64
}

// ApplyDir applies every dictionary under opts.DictRoot to its source file
// under opts.SourceRoot. A missing or unreadable source file fails only
// that file; all failures are returned together after every file ran.
func ApplyDir(ctx context.Context, opts ApplyOptions) (*Report, error) {
	paths, err := dictfile.ListTree(opts.DictRoot, opts.SkipDirs...)
	if err != nil {
		return nil, err
	}
	if opts.OnLog != nil {
		opts.OnLog("Applying %d dictionaries to %s", len(paths), opts.SourceRoot)
	}

	rules := opts.Rules.WithDefaults()
	report := &Report{}

	err = pool.Run(ctx, paths, opts.MaxConcurrent, func(_ context.Context, rel string) error {
		dict, err := dictfile.ParseFile(dictfile.Join(opts.DictRoot, rel))
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}

		sourceRel := dictfile.SourcePath(rel)
		sourcePath := dictfile.Join(opts.SourceRoot, sourceRel)
		if !dictfile.Exists(sourcePath) {
			return fmt.Errorf("%s: source file %s not found", rel, sourceRel)
		}

		res, err := ApplyFile(sourcePath, sourceRel, dict, rules)
		if err != nil {
			return fmt.Errorf("%s: %w", sourceRel, err)
		}

		atomic.AddInt64(&report.Files, 1)
		atomic.AddInt64(&report.Substituted, int64(res.Substituted))
		atomic.AddInt64(&report.Rewritten, int64(res.Rewritten))
		atomic.AddInt64(&report.Warnings, int64(len(res.Warnings)))
		if opts.OnWarning != nil {
			for _, w := range res.Warnings {
				opts.OnWarning(w)
			}
		}
		return nil
	})
	return report, err
}
