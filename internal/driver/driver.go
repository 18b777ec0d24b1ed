// Package driver finds the browser executable a session is started with and
// remembers it between runs.
package driver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultCandidates are the executable names searched on $PATH, in order.
var DefaultCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// ErrNotFound is returned when no browser executable can be located.
var ErrNotFound = errors.New("no chrome or chromium executable found")

// Options configures Resolve.
type Options struct {
	// ExecPath, when set, is used as is and never cached.
	ExecPath string
	// CachePath holds the last resolved path. Empty disables caching.
	CachePath string
	// Candidates overrides DefaultCandidates.
	Candidates []string
	// LookPath overrides exec.LookPath.
	LookPath func(file string) (string, error)
	Logger   *log.Logger
}

// DefaultCachePath returns ~/.cache/pemacheck/chrome_path.txt, or "" when
// the user cache directory is unknown.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pemacheck", "chrome_path.txt")
}

// Resolve returns the browser executable: the explicit path, then the
// cached path if that file still exists, then the first candidate on $PATH.
// A path found on $PATH is written back to the cache.
func Resolve(opts Options) (string, error) {
	if opts.ExecPath != "" {
		if _, err := os.Stat(opts.ExecPath); err != nil {
			return "", fmt.Errorf("browser exec_path: %w", err)
		}
		return opts.ExecPath, nil
	}

	if cached := readCache(opts.CachePath); cached != "" {
		return cached, nil
	}

	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	for _, name := range candidates {
		path, err := lookPath(name)
		if err != nil {
			continue
		}
		if err := writeCache(opts.CachePath, path); err != nil && opts.Logger != nil {
			opts.Logger.Warn("failed to cache browser path", "path", opts.CachePath, "err", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("%w (tried %s); install Chrome or set browser.exec_path", ErrNotFound, strings.Join(candidates, ", "))
}

// readCache returns the cached path, or "" when there is no cache or the
// executable it names is gone.
func readCache(cachePath string) string {
	if cachePath == "" {
		return ""
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return ""
	}
	path := strings.TrimSpace(string(data))
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func writeCache(cachePath, path string) error {
	if cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(cachePath, []byte(path+"\n"), 0644)
}
