// Package lockfile guards the tutor's state directory against a second
// process. The lock is an flock on a file inside the directory, so the kernel
// drops it when the holder exits, cleanly or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FileName is the lock file created in the state directory.
const FileName = "amooz.lock"

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking lock on stateDir, creating it when
// missing. A *HeldError is returned when another process holds the lock.
func Acquire(stateDir string) (*Lock, error) {
	path := filepath.Join(stateDir, FileName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC would wipe the holder's pid before we know whether we won.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		held := &HeldError{Path: path, Holder: describeHolder(path), Cause: err}
		slog.Error("lockfile.Acquire: state directory in use", "path", path, "holder", held.Holder)
		return nil, held
	}

	if err := writePID(file); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}

	slog.Info("lockfile.Acquire: state directory locked", "path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the lock file. Calling it twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// remove first so a waiting process never sees our stale pid
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("lockfile.Release: failed to remove lock file", "path", l.path, "error", err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("lockfile.Release: failed to unlock", "path", l.path, "error", err)
	}
	err := l.file.Close()
	l.file = nil
	slog.Debug("lockfile.Release: released", "path", l.path)
	return err
}

// HeldError reports a lock owned by another process.
type HeldError struct {
	Path   string
	Holder string
	Cause  error
}

func (e *HeldError) Error() string {
	msg := fmt.Sprintf("another amooz tutor is already using this state directory (lock file %s", e.Path)
	if e.Holder != "" {
		msg += ", held by " + e.Holder
	}
	return msg + "); stop it or pick another state directory, or remove the lock file if it is stale"
}

func (e *HeldError) Unwrap() error { return e.Cause }

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte("pid="+strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("lockfile.writePID: sync failed", "error", err)
	}
	return nil
}

// describeHolder reads the pid recorded in path and says whether it is alive.
func describeHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	pid := parsePID(string(data))
	if pid <= 0 {
		return ""
	}
	if processAlive(pid) {
		return fmt.Sprintf("pid %d (running)", pid)
	}
	return fmt.Sprintf("pid %d (not running)", pid)
}

func parsePID(content string) int {
	for _, line := range strings.Split(content, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "pid="); ok {
			if pid, err := strconv.Atoi(v); err == nil {
				return pid
			}
		}
	}
	return 0
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
