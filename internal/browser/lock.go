package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ProfileLock guards exclusive ownership of a browser profile directory.
// Two concurrent sessions against the same profile corrupt the stored
// authentication state, so the lock must be held before any launch.
type ProfileLock struct {
	path string
	held bool
}

// AcquireProfileLock takes the single-instance lock for the given profile
// directory. A lock file left by a process that no longer exists is treated
// as stale and taken over.
func AcquireProfileLock(profileDir string) (*ProfileLock, error) {
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(profileDir)), 0o755); err != nil {
		return nil, fmt.Errorf("create profile parent dir: %w", err)
	}
	path := filepath.Clean(profileDir) + ".lock"

	for range 2 {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock file %s: %w", path, errFirst(werr, cerr))
			}
			return &ProfileLock{path: path, held: true}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file %s: %w", path, err)
		}
		if !lockIsStale(path) {
			return nil, fmt.Errorf("profile %s is locked by another running instance", profileDir)
		}
		slog.Warn("removing stale profile lock", "path", path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("profile %s is locked by another running instance", profileDir)
}

// Release removes the lock file. Safe to call more than once.
func (l *ProfileLock) Release() {
	if l == nil || !l.held {
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove profile lock", "path", l.path, "error", err)
	}
	l.held = false
}

// lockIsStale reports whether the pid recorded in the lock file is gone.
func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unreadable owner: refuse takeover rather than risk a live browser.
		return false
	}
	// Signal 0 probes existence without delivering anything.
	err = syscall.Kill(pid, 0)
	return err == syscall.ESRCH
}

func errFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
