// Command tweekit is a localization toolkit for Twine/SugarCube games: dictionary
// extraction, version-to-version sync and source patching.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/minios-linux/tweekit/config"
	"github.com/minios-linux/tweekit/i18n"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir     string
	channelName string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tweekit",
		Short: i18n.T("Localization toolkit for Twine/SugarCube games"),
		Long: `tweekit — localization toolkit for Twine/SugarCube games.

Extracts translatable lines of the game sources into per-file CSV
dictionaries, carries existing translations forward when upstream
releases a new version, and patches the translations back into the
sources before the game is compiled.

Commands:
  status    Show channel info and dictionary statistics
  fetch     Download upstream sources or the translation export
  extract   Build dictionaries from the game sources
  sync      Carry translations forward into fresh dictionaries
  apply     Patch translations into the game sources
  update    Run fetch, extract, sync and apply in order
  clean     Remove downloaded and generated files
  build     Compile the game
  run       Open the compiled game
  auth      Manage the translation platform token`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", i18n.T("Project root directory"))
	root.PersistentFlags().StringVarP(&channelName, "channel", "c", "", i18n.T("Upstream channel (default from .tweekit.yaml)"))

	root.AddCommand(
		newStatusCmd(),
		newFetchCmd(),
		newExtractCmd(),
		newSyncCmd(),
		newApplyCmd(),
		newUpdateCmd(),
		newCleanCmd(),
		newBuildCmd(),
		newRunCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tweekit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
			if lang := i18n.Lang(); lang != "" {
				fmt.Printf("  messages:  %s\n", lang)
			}
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// project bundles the loaded configuration with the selected channel.
type project struct {
	cfg *config.File
	ch  *config.Resolved
}

func loadProject() (*project, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	ch, err := cfg.Resolve(rootDir, channelName)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, ch: ch}, nil
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logWarning("%s", i18n.T("Interrupted, finishing files in progress..."))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// readVersion returns the upstream version of the unpacked game.
func readVersion(p *project) (string, error) {
	path := filepath.Join(p.ch.GameRoot(), "version")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no game sources for channel %q, run 'tweekit fetch source' first", p.ch.Channel.Name)
		}
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return v, nil
}

// resolveVersion returns override when set, else the unpacked game's version.
func resolveVersion(p *project, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return readVersion(p)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// progressBar renders a colored bar of width cells followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 90:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

func percentOf(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}
