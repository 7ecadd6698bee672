// Package config loads the .tweekit.yaml project configuration.
//
// A missing .tweekit.yaml means the built-in defaults: the public and
// development channels of the upstream game and the Simplified Chinese
// rule set. Every field may be overridden in the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/tweekit/extract"
	"github.com/minios-linux/tweekit/fetch"
	"github.com/minios-linux/tweekit/merge"
	"github.com/minios-linux/tweekit/patch"
	"github.com/minios-linux/tweekit/settings"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .tweekit.yaml structure.
type File struct {
	// Channel is the default channel name (default: first channel).
	Channel string `yaml:"channel,omitempty"`
	// Channels are the upstream source trees that can be localized.
	Channels []Channel `yaml:"channels"`
	// Dirs are the working directories, relative to the project root.
	Dirs Dirs `yaml:"dirs,omitempty"`
	// Platform is the translation platform hosting the dictionaries.
	Platform Platform `yaml:"platform,omitempty"`
	// Extract holds the source file filters used by extraction.
	Extract extract.Lists `yaml:"extract,omitempty"`
	// Patch overrides the rewrite tables; unset fields keep defaults.
	Patch patch.Rules `yaml:"patch,omitempty"`
	// Keys is the key kept by carried-forward entries: "old" or "new".
	Keys string `yaml:"keys,omitempty"`
	// Concurrency limits parallel file work (0 = unlimited).
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Channel describes one upstream source tree.
type Channel struct {
	// Name is the label used on the command line.
	Name string `yaml:"name"`
	// VersionURL serves the upstream version tag as plain text.
	VersionURL string `yaml:"version_url"`
	// ArchiveURL serves the upstream repository as a zip archive.
	ArchiveURL string `yaml:"archive_url"`
	// GameDir is the unpacked repository root inside the source directory.
	GameDir string `yaml:"game_dir"`
	// TextDir is the narrative source tree relative to GameDir (default "game").
	TextDir string `yaml:"text_dir,omitempty"`
	// Build is the command run from GameDir to compile the game.
	Build []string `yaml:"build,omitempty"`
	// Output is the compiled entry page relative to GameDir.
	Output string `yaml:"output,omitempty"`
}

// Dirs are the working directories of a project.
type Dirs struct {
	Source     string `yaml:"source,omitempty"`
	Dicts      string `yaml:"dicts,omitempty"`
	Export     string `yaml:"export,omitempty"`
	Temp       string `yaml:"temp,omitempty"`
	Quarantine string `yaml:"quarantine,omitempty"`
}

// Platform configures access to the translation platform.
type Platform struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	ProjectID int    `yaml:"project_id,omitempty"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env,omitempty"`
	// ExportDir is the dictionary tree inside the export archive.
	ExportDir string `yaml:"export_dir,omitempty"`
}

// PlatformID keys the platform's entry in the credential store.
const PlatformID = "paratranz"

// Token returns the API token from the environment, falling back to the
// credential store.
func (p Platform) Token() string {
	token, _ := settings.ResolveToken(PlatformID, p.TokenEnv)
	return token
}

// Key policy names accepted in .tweekit.yaml.
const (
	KeysOld = "old"
	KeysNew = "new"
)

// KeyPolicy returns the merge policy selected by Keys.
func (f *File) KeyPolicy() merge.KeyPolicy {
	if f.Keys == KeysNew {
		return merge.KeepNewKey
	}
	return merge.KeepOldKey
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

const upstream = "https://gitgud.io/Vrelnir/degrees-of-lewdity"

// Default returns the configuration used when no .tweekit.yaml exists.
func Default() *File {
	f := &File{
		Channels: []Channel{
			{
				Name:       "common",
				VersionURL: upstream + "/-/raw/master/version",
				ArchiveURL: upstream + "/-/archive/master/degrees-of-lewdity-master.zip",
				GameDir:    "degrees-of-lewdity-master",
			},
			{
				Name:       "dev",
				VersionURL: upstream + "/-/raw/dev/version",
				ArchiveURL: upstream + "/-/archive/dev/degrees-of-lewdity-dev.zip",
				GameDir:    "degrees-of-lewdity-dev",
			},
		},
		Platform: Platform{ProjectID: 4780},
	}
	f.applyDefaults()
	return f
}

func (f *File) applyDefaults() {
	if f.Dirs.Source == "" {
		f.Dirs.Source = "repositories"
	}
	if f.Dirs.Dicts == "" {
		f.Dirs.Dicts = "raw_dicts"
	}
	if f.Dirs.Export == "" {
		f.Dirs.Export = "paratranz"
	}
	if f.Dirs.Temp == "" {
		f.Dirs.Temp = "tmp"
	}
	if f.Dirs.Quarantine == "" {
		f.Dirs.Quarantine = merge.DefaultQuarantineDir
	}
	if f.Platform.BaseURL == "" {
		f.Platform.BaseURL = fetch.DefaultPlatformURL
	}
	if f.Platform.TokenEnv == "" {
		f.Platform.TokenEnv = "PARATRANZ_TOKEN"
	}
	if f.Platform.ExportDir == "" {
		f.Platform.ExportDir = "utf8"
	}
	if f.Keys == "" {
		f.Keys = KeysOld
	}
	for i := range f.Channels {
		c := &f.Channels[i]
		if c.TextDir == "" {
			c.TextDir = "game"
		}
		if len(c.Build) == 0 {
			c.Build = []string{"./compile.sh"}
		}
		if c.Output == "" {
			c.Output = "Degrees of Lewdity.html"
		}
	}
	if f.Channel == "" && len(f.Channels) > 0 {
		f.Channel = f.Channels[0].Name
	}
	f.Patch = f.Patch.WithDefaults()
	if f.Patch.SearchURL == "" && f.Platform.ProjectID > 0 {
		f.Patch.SearchURL = fmt.Sprintf("https://paratranz.cn/projects/%d/strings?text=", f.Platform.ProjectID)
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the default config file name.
const FileName = ".tweekit.yaml"

// Load reads and validates .tweekit.yaml from rootDir. A missing file
// yields Default().
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(f.Channels) == 0 {
		f.Channels = Default().Channels
	}
	f.applyDefaults()

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]bool)
	for i, c := range f.Channels {
		if c.Name == "" {
			return fmt.Errorf("channel #%d has no name", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate channel %q", c.Name)
		}
		seen[c.Name] = true
		if c.VersionURL == "" || c.ArchiveURL == "" {
			return fmt.Errorf("channel %q needs version_url and archive_url", c.Name)
		}
		if c.GameDir == "" {
			return fmt.Errorf("channel %q has no game_dir", c.Name)
		}
	}
	if !seen[f.Channel] {
		return fmt.Errorf("default channel %q is not defined (valid: %v)", f.Channel, f.ChannelNames())
	}
	if f.Keys != KeysOld && f.Keys != KeysNew {
		return fmt.Errorf("unknown keys policy %q (valid: %s, %s)", f.Keys, KeysOld, KeysNew)
	}
	if f.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}

// ChannelNames returns the configured channel names, sorted.
func (f *File) ChannelNames() []string {
	names := make([]string, 0, len(f.Channels))
	for _, c := range f.Channels {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Resolving a channel to absolute paths
// ---------------------------------------------------------------------------

// Resolved is one channel with absolute working paths.
type Resolved struct {
	Channel Channel
	Root    string
	Dirs    Dirs
}

// Resolve returns the named channel (or the default one when name is
// empty) with absolute paths under projectRoot.
func (f *File) Resolve(projectRoot, name string) (*Resolved, error) {
	if name == "" {
		name = f.Channel
	}
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}
	for _, c := range f.Channels {
		if c.Name != name {
			continue
		}
		join := func(p string) string {
			if filepath.IsAbs(p) {
				return p
			}
			return filepath.Join(abs, p)
		}
		return &Resolved{
			Channel: c,
			Root:    abs,
			Dirs: Dirs{
				Source:     join(f.Dirs.Source),
				Dicts:      join(f.Dirs.Dicts),
				Export:     join(f.Dirs.Export),
				Temp:       join(f.Dirs.Temp),
				Quarantine: f.Dirs.Quarantine,
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown channel %q (valid: %v)", name, f.ChannelNames())
}

// GameRoot is the unpacked upstream repository.
func (r *Resolved) GameRoot() string {
	return filepath.Join(r.Dirs.Source, r.Channel.GameDir)
}

// TextRoot is the narrative source tree that is extracted and patched.
func (r *Resolved) TextRoot() string {
	return filepath.Join(r.GameRoot(), r.Channel.TextDir)
}

// ArchivePath is where the upstream archive is downloaded.
func (r *Resolved) ArchivePath() string {
	return filepath.Join(r.Dirs.Temp, r.Channel.Name+".zip")
}

// ExportArchivePath is where the platform export is downloaded.
func (r *Resolved) ExportArchivePath() string {
	return filepath.Join(r.Dirs.Temp, "paratranz_export.zip")
}

// ExportRoot is the translated dictionary tree of the last export.
func (r *Resolved) ExportRoot(exportDir string) string {
	return filepath.Join(r.Dirs.Export, exportDir)
}

// DictRoot is the dictionary tree extracted for version.
func (r *Resolved) DictRoot(version string) string {
	return filepath.Join(r.Dirs.Dicts, version, "csv", r.Channel.TextDir)
}

// OutputPath is the compiled game page.
func (r *Resolved) OutputPath() string {
	return filepath.Join(r.GameRoot(), r.Channel.Output)
}
