// Package settings stores tweekit user credentials for translation
// platforms.
//
// Credentials live in the XDG data directory:
//
//	$XDG_DATA_HOME/tweekit/auth.json  (default: ~/.local/share/tweekit/)
//
// The file is a JSON object keyed by platform ID. File permissions are
// 0600 (owner read/write only).
//
// Lookup order for a platform token:
//  1. the environment variable named in .tweekit.yaml (PARATRANZ_TOKEN)
//  2. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	dataDirName = "tweekit"
	fileName    = "auth.json"
)

// Info is the credential stored per platform.
type Info struct {
	Token string `json:"token"`
	// BaseURL is the API endpoint the token belongs to.
	BaseURL string `json:"baseUrl,omitempty"`
	// Saved is the Unix time the token was stored.
	Saved int64 `json:"saved,omitempty"`
}

// Store holds all platform credentials, keyed by platform ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for tweekit.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// SetToken stores the token for a platform (upsert).
func SetToken(platformID, baseURL, token string) error {
	store := Load()
	store[platformID] = &Info{Token: token, BaseURL: baseURL, Saved: time.Now().Unix()}
	return Save(store)
}

// GetToken returns the stored token for a platform, or "".
func GetToken(platformID string) string {
	if info := Load()[platformID]; info != nil {
		return info.Token
	}
	return ""
}

// Remove deletes the credentials of a platform.
func Remove(platformID string) error {
	store := Load()
	if _, ok := store[platformID]; !ok {
		return nil
	}
	delete(store, platformID)
	return Save(store)
}

// Platforms returns the sorted IDs of stored platforms.
func (s Store) Platforms() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveToken returns the token from the environment variable envName,
// falling back to the store. The second result names the source.
func ResolveToken(platformID, envName string) (token, source string) {
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v, envName
		}
	}
	if v := GetToken(platformID); v != "" {
		return v, FilePath()
	}
	return "", ""
}

// MaskKey returns a masked version of a token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
