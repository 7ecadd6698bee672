package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/minios-linux/tweekit/dictfile"
	"github.com/minios-linux/tweekit/extract"
	"github.com/minios-linux/tweekit/fetch"
	"github.com/minios-linux/tweekit/i18n"
	"github.com/minios-linux/tweekit/lockfile"
	"github.com/minios-linux/tweekit/merge"
	"github.com/minios-linux/tweekit/patch"
	"github.com/minios-linux/tweekit/pool"
	"github.com/spf13/cobra"
)

// logErrors prints every failure of a batch step.
func logErrors(err error) {
	for _, e := range pool.Errors(err) {
		logError("%v", e)
	}
}

// batchError summarizes a batch failure after logErrors printed the details.
func batchError(step string, err error) error {
	n := len(pool.Errors(err))
	return fmt.Errorf(i18n.N("%s: %d file failed", "%s: %d files failed", n), step, n)
}

// ---------------------------------------------------------------------------
// status (read-only: channel info + dictionary stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show channel info and dictionary statistics"),
		Long: `Show the selected channel, its working directories, the unpacked
game version and per-tree translation progress. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			return runStatus(p)
		},
	}
}

func runStatus(p *project) error {
	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Channel"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	gameVersion, versionErr := readVersion(p)
	if versionErr != nil {
		gameVersion = i18n.T("not downloaded")
	}
	fmt.Fprintf(os.Stderr, "  Name:       %s\n", p.ch.Channel.Name)
	fmt.Fprintf(os.Stderr, "  Root:       %s\n", p.ch.Root)
	fmt.Fprintf(os.Stderr, "  Game:       %s\n", p.ch.GameRoot())
	fmt.Fprintf(os.Stderr, "  Version:    %s\n", gameVersion)
	fmt.Fprintf(os.Stderr, "  Export:     %s\n", p.ch.ExportRoot(p.cfg.Platform.ExportDir))

	lock, err := lockfile.Load(p.ch.Root)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  Lock:       %s\n", lock.Summary())
	synced := lock.SyncedVersion(p.ch.Channel.Name)
	if synced == "" {
		synced = i18n.T("never")
	}
	fmt.Fprintf(os.Stderr, "  Synced:     %s\n", synced)
	fmt.Fprintln(os.Stderr)

	trees := []struct {
		label string
		root  string
	}{
		{i18n.T("Translation export"), p.ch.ExportRoot(p.cfg.Platform.ExportDir)},
	}
	if versionErr == nil && dirExists(p.ch.DictRoot(gameVersion)) {
		trees = append(trees, struct {
			label string
			root  string
		}{fmt.Sprintf("%s %s", i18n.T("Dictionaries"), gameVersion), p.ch.DictRoot(gameVersion)})
	}

	for _, tr := range trees {
		if !dirExists(tr.root) {
			logInfo("%s: %s", tr.label, i18n.T("missing"))
			continue
		}
		showTreeStats(tr.label, tr.root, p.cfg.Dirs.Quarantine)
	}
	return nil
}

func showTreeStats(label, root, quarantine string) {
	tree, err := dictfile.LoadTree(root, "", quarantine)
	if err != nil {
		logError("%s: %v", label, err)
		return
	}

	var total, translated int
	for _, rel := range tree.Paths() {
		t, tr, _ := tree.Files[rel].Stats()
		total += t
		translated += tr
	}
	fmt.Fprintf(os.Stderr, "  %-24s %s  %d/%d (%d files)\n",
		label, progressBar(percentOf(translated, total), 20), translated, total, len(tree.Files))

	if qroot := filepath.Join(root, quarantine); dirExists(qroot) {
		if q, err := dictfile.LoadTree(qroot, ""); err == nil {
			n := 0
			for _, f := range q.Files {
				n += len(f.Entries)
			}
			fmt.Fprintf(os.Stderr, "  %-24s %d\n", i18n.T("Quarantined entries"), n)
		}
	}
}

// ---------------------------------------------------------------------------
// fetch (download upstream sources / translation export)
// ---------------------------------------------------------------------------

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: i18n.T("Download upstream sources or the translation export"),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "source",
		Short: i18n.T("Download and unpack the latest upstream sources"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			_, err = runFetchSource(ctx, p)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: i18n.T("Download and unpack the translation platform export"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runFetchExport(ctx, p)
		},
	})

	return cmd
}

func newClient() *fetch.Client {
	c := fetch.NewClient()
	c.Progress = os.Stderr
	return c
}

func runFetchSource(ctx context.Context, p *project) (string, error) {
	c := newClient()

	v, err := c.LatestVersion(ctx, p.ch.Channel.VersionURL)
	if err != nil {
		return "", fmt.Errorf("fetching version: %w", err)
	}
	logInfo(i18n.T("Latest upstream version: %s"), v)

	archive := p.ch.ArchivePath()
	logInfo(i18n.T("Downloading %s"), p.ch.Channel.ArchiveURL)
	if err := c.Download(ctx, p.ch.Channel.ArchiveURL, archive); err != nil {
		return "", fmt.Errorf("downloading sources: %w", err)
	}

	n, err := fetch.Unzip(archive, p.ch.Dirs.Source)
	if err != nil {
		return "", fmt.Errorf("unpacking %s: %w", archive, err)
	}
	logSuccess(i18n.T("Unpacked %d files into %s"), n, p.ch.Dirs.Source)
	return v, nil
}

func runFetchExport(ctx context.Context, p *project) error {
	pl := &fetch.Platform{
		Client:    newClient(),
		BaseURL:   p.cfg.Platform.BaseURL,
		ProjectID: p.cfg.Platform.ProjectID,
		Token:     p.cfg.Platform.Token(),
	}
	if pl.Token == "" {
		return fmt.Errorf(i18n.T("no platform token, set %s or run 'tweekit auth login'"), p.cfg.Platform.TokenEnv)
	}

	logInfo("%s", i18n.T("Requesting a fresh export..."))
	if err := pl.TriggerExport(ctx); err != nil {
		logWarning(i18n.T("Export trigger failed, using the previous export: %v"), err)
	}

	archive := p.ch.ExportArchivePath()
	if err := pl.DownloadExport(ctx, archive); err != nil {
		return fmt.Errorf("downloading export: %w", err)
	}
	n, err := fetch.Unzip(archive, p.ch.Dirs.Export)
	if err != nil {
		return fmt.Errorf("unpacking %s: %w", archive, err)
	}
	logSuccess(i18n.T("Unpacked %d files into %s"), n, p.ch.Dirs.Export)
	return nil
}

// ---------------------------------------------------------------------------
// extract
// ---------------------------------------------------------------------------

func newExtractCmd() *cobra.Command {
	var versionFlag string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: i18n.T("Build dictionaries from the game sources"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			v, err := resolveVersion(p, versionFlag)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runExtract(ctx, p, v)
		},
	}
	cmd.Flags().StringVar(&versionFlag, "version", "", i18n.T("Version tag for row keys (default: unpacked game version)"))
	return cmd
}

func runExtract(ctx context.Context, p *project, v string) error {
	report, err := extract.Run(ctx, extract.Options{
		SourceRoot:    p.ch.TextRoot(),
		DictRoot:      p.ch.DictRoot(v),
		Version:       v,
		Lists:         p.cfg.Extract,
		MaxConcurrent: p.cfg.Concurrency,
		OnLog:         logInfo,
		OnWarning:     logWarning,
	})
	if report != nil {
		logSuccess(i18n.T("Extracted %d rows into %d dictionaries (%d files without text)"),
			report.Entries, report.Written, report.Empty)
	}
	if err != nil {
		logErrors(err)
		return batchError("extract", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		versionFlag string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: i18n.T("Carry translations forward into fresh dictionaries"),
		Long: `Merge the translated export into the dictionaries extracted for the
current version. Unchanged sentences keep their translation; translated
sentences that no longer exist upstream are moved to the quarantine tree.

Carried rows keep the key of the previous version by default, so they stay
the same strings on the translation platform. Set "keys: new" in
.tweekit.yaml to keep the freshly extracted keys instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			v, err := resolveVersion(p, versionFlag)
			if err != nil {
				return err
			}
			if dryRun {
				return runSyncPreview(p, v)
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runSync(ctx, p, v)
		},
	}
	cmd.Flags().StringVar(&versionFlag, "version", "", i18n.T("Dictionary version to sync into (default: unpacked game version)"))
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, i18n.T("Show what a sync would do without writing files"))
	return cmd
}

// syncPreview is the outcome of a sync computed in memory.
type syncPreview struct {
	Dicts       int
	Carried     int
	Quarantined int
	// Pending counts merged rows whose sentence is new or changed since the
	// last recorded sync.
	Pending int
	// Dropped lists recorded dictionaries the sync would no longer produce.
	Dropped []string
}

func previewSync(p *project, v string, lock *lockfile.LockFile) (*syncPreview, error) {
	qdir := p.cfg.Dirs.Quarantine
	oldTree, err := dictfile.LoadTree(p.ch.ExportRoot(p.cfg.Platform.ExportDir), "", qdir)
	if err != nil {
		return nil, err
	}
	newTree, err := dictfile.LoadTree(p.ch.DictRoot(v), v, qdir)
	if err != nil {
		return nil, err
	}

	merged, quarantine := merge.SyncTree(oldTree, newTree, p.cfg.KeyPolicy())
	pv := &syncPreview{Dicts: len(merged.Files), Quarantined: quarantine.Len()}
	for _, rel := range merged.Paths() {
		key := lockfile.DictKey(rel)
		for _, e := range merged.Files[rel].Entries {
			if e.IsTranslated() {
				pv.Carried++
			}
			if lock.IsChanged(key, e.Key, e.Source) {
				pv.Pending++
			}
		}
	}
	for _, d := range lock.Dicts() {
		if _, ok := merged.Files[d]; !ok {
			pv.Dropped = append(pv.Dropped, d)
		}
	}
	return pv, nil
}

func runSyncPreview(p *project, v string) error {
	lock, err := lockfile.Load(p.ch.Root)
	if err != nil {
		return err
	}
	pv, err := previewSync(p, v, lock)
	if err != nil {
		return err
	}
	logInfo(i18n.T("Would write %d dictionaries, %d entries carried, %d quarantined"),
		pv.Dicts, pv.Carried, pv.Quarantined)
	logInfo(i18n.T("Since last sync: %d rows new or changed, %d dictionaries gone"), pv.Pending, len(pv.Dropped))
	for _, d := range pv.Dropped {
		logWarning("%s", d)
	}
	return nil
}

func runSync(ctx context.Context, p *project, v string) error {
	lock, err := lockfile.Load(p.ch.Root)
	if err != nil {
		return err
	}

	var changed, removed int64
	var mu sync.Mutex
	newRoot := p.ch.DictRoot(v)

	report, err := merge.SyncDir(ctx, merge.SyncOptions{
		OldRoot:       p.ch.ExportRoot(p.cfg.Platform.ExportDir),
		NewRoot:       newRoot,
		QuarantineDir: p.cfg.Dirs.Quarantine,
		Keys:          p.cfg.KeyPolicy(),
		MaxConcurrent: p.cfg.Concurrency,
		OnLog:         logInfo,
		OnWarning:     logWarning,
		OnMerged: func(rel string, f *dictfile.File) {
			c, r := lock.Record(lockfile.DictKey(rel), f)
			mu.Lock()
			changed += int64(c)
			removed += int64(r)
			mu.Unlock()
		},
	})
	if report != nil {
		logSuccess(i18n.T("Merged %d dictionaries, %d orphaned, %d entries carried, %d quarantined"),
			report.Merged, report.Orphaned, report.Carried, report.Quarantined)
		logInfo(i18n.T("Since last sync: %d rows new or changed, %d rows gone"), changed, removed)
	}
	if err != nil {
		logErrors(err)
		return batchError("sync", err)
	}

	if paths, lerr := dictfile.ListTree(newRoot, p.cfg.Dirs.Quarantine); lerr == nil {
		keys := make([]string, len(paths))
		for i, rel := range paths {
			keys[i] = lockfile.DictKey(rel)
		}
		lock.Clean(keys)
	}
	lock.SetSynced(p.ch.Channel.Name, v)
	if err := lock.Save(); err != nil {
		logWarning("%v", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// apply
// ---------------------------------------------------------------------------

func newApplyCmd() *cobra.Command {
	var versionFlag string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: i18n.T("Patch translations into the game sources"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			v, err := resolveVersion(p, versionFlag)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runApply(ctx, p, v)
		},
	}
	cmd.Flags().StringVar(&versionFlag, "version", "", i18n.T("Dictionary version to apply (default: unpacked game version)"))
	return cmd
}

// formatWarning renders a patch diagnostic as one line for triage.
func formatWarning(w patch.Warning) string {
	fields := []string{w.Kind, w.File, w.Source, w.Target}
	if w.Link != "" {
		fields = append(fields, w.Link)
	}
	return strings.Join(fields, " | ")
}

func runApply(ctx context.Context, p *project, v string) error {
	var (
		mu       sync.Mutex
		warnings []patch.Warning
	)
	report, err := patch.ApplyDir(ctx, patch.ApplyOptions{
		DictRoot:      p.ch.DictRoot(v),
		SourceRoot:    p.ch.TextRoot(),
		SkipDirs:      []string{p.cfg.Dirs.Quarantine},
		Rules:         p.cfg.Patch,
		MaxConcurrent: p.cfg.Concurrency,
		OnLog:         logInfo,
		OnWarning: func(w patch.Warning) {
			mu.Lock()
			warnings = append(warnings, w)
			mu.Unlock()
		},
	})

	sort.SliceStable(warnings, func(i, j int) bool { return warnings[i].File < warnings[j].File })
	for _, w := range warnings {
		logWarning("%s", formatWarning(w))
	}
	if report != nil {
		logSuccess(i18n.T("Patched %d files: %d lines substituted, %d rewritten, %d warnings"),
			report.Files, report.Substituted, report.Rewritten, report.Warnings)
	}
	if err != nil {
		logErrors(err)
		return batchError("apply", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// update (whole pipeline)
// ---------------------------------------------------------------------------

func newUpdateCmd() *cobra.Command {
	var skipExport bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: i18n.T("Run fetch, extract, sync and apply in order"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			v, err := runFetchSource(ctx, p)
			if err != nil {
				return err
			}
			if !skipExport {
				// The sync below still works on the last downloaded export.
				if err := runFetchExport(ctx, p); err != nil {
					logError("%v", err)
				}
			}
			if err := runExtract(ctx, p, v); err != nil {
				return err
			}
			if err := runSync(ctx, p, v); err != nil {
				return err
			}
			return runApply(ctx, p, v)
		},
	}
	cmd.Flags().BoolVar(&skipExport, "skip-export", false, i18n.T("Reuse the previously downloaded export"))
	return cmd
}

// ---------------------------------------------------------------------------
// clean
// ---------------------------------------------------------------------------

func newCleanCmd() *cobra.Command {
	var keepExport bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: i18n.T("Remove downloaded and generated files"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			runClean(p, keepExport)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepExport, "keep-export", false, i18n.T("Keep the downloaded translation export"))
	return cmd
}

func runClean(p *project, keepExport bool) {
	dirs := []string{p.ch.Dirs.Temp, p.ch.GameRoot()}
	if v, err := readVersion(p); err == nil {
		dirs = append(dirs, filepath.Join(p.ch.Dirs.Dicts, v))
	}
	if !keepExport {
		dirs = append(dirs, p.ch.Dirs.Export)
	}
	for _, d := range dirs {
		if !dirExists(d) {
			continue
		}
		if err := os.RemoveAll(d); err != nil {
			logError("%v", err)
			continue
		}
		logWarning(i18n.T("Removed %s"), d)
	}
}

// ---------------------------------------------------------------------------
// build / run
// ---------------------------------------------------------------------------

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: i18n.T("Compile the game"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			build := p.ch.Channel.Build
			logInfo(i18n.T("Running %s in %s"), strings.Join(build, " "), p.ch.GameRoot())

			c := exec.Command(build[0], build[1:]...)
			c.Dir = p.ch.GameRoot()
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			logSuccess(i18n.T("Build finished: %s"), p.ch.OutputPath())
			return nil
		},
	}
}

// openCommand returns the platform command that opens path in a browser.
func openCommand(goos, path string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	case "darwin":
		return exec.Command("open", path)
	}
	return exec.Command("xdg-open", path)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: i18n.T("Open the compiled game"),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject()
			if err != nil {
				return err
			}
			out := p.ch.OutputPath()
			if !fileExists(out) {
				return fmt.Errorf(i18n.T("%s not found, run 'tweekit build' first"), out)
			}
			return openCommand(runtime.GOOS, out).Start()
		},
	}
}
