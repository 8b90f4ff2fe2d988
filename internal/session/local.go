package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/workspace"
)

const (
	lastSessionFile = "last_session.json"
	cacheFileName   = "cache.sqlite"
)

// LocalPaths are the per-machine directories of a workspace. They live
// outside the workspace so they never sync with it.
type LocalPaths struct {
	CacheDir string
	LogsDir  string
	TempDir  string
}

// CacheFile is the SQLite cache of the workspace.
func (p LocalPaths) CacheFile() string {
	return filepath.Join(p.CacheDir, cacheFileName)
}

// LastSession is <app-data>/last_session.json.
type LastSession struct {
	LastWorkspacePath string `json:"last_workspace_path"`
	LastWorkspaceName string `json:"last_workspace_name"`
}

// PrepareLocalStorage creates <appData>/workspaces/<name>/{cache,logs,temp}.
func PrepareLocalStorage(appData, name string) (LocalPaths, error) {
	base := filepath.Join(appData, "workspaces", name)
	paths := LocalPaths{
		CacheDir: filepath.Join(base, "cache"),
		LogsDir:  filepath.Join(base, "logs"),
		TempDir:  filepath.Join(base, "temp"),
	}
	for _, dir := range []string{paths.CacheDir, paths.LogsDir, paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return LocalPaths{}, apperr.IO("prepare local storage", err)
		}
	}
	return paths, nil
}

// SaveLastSession records the workspace opened most recently.
func SaveLastSession(appData string, last LastSession) error {
	if err := os.MkdirAll(appData, 0o755); err != nil {
		return apperr.IO("save last session", err)
	}
	return workspace.SaveJSON(filepath.Join(appData, lastSessionFile), last)
}

// LoadLastSession reads last_session.json. A missing file is NotFound.
func LoadLastSession(appData string) (LastSession, error) {
	var last LastSession
	err := workspace.LoadJSON(filepath.Join(appData, lastSessionFile), &last)
	if errors.Is(err, fs.ErrNotExist) {
		return LastSession{}, apperr.NotFound("load last session", "no workspace opened yet")
	}
	return last, err
}

// PruneTemp removes entries of dir last modified before now-maxAge and
// returns how many were removed.
func PruneTemp(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.IO("prune temp", err)
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, apperr.IO("prune temp", err)
		}
		removed++
	}
	return removed, nil
}
