// Package pidfile guards against running two dev servers for one project.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/paths"
	"github.com/grovetools/storybook/util/pathutil"
	"github.com/grovetools/storybook/util/sanitize"
)

// PathFor returns the pidfile of the dev server for the project at root.
// Symlinked spellings of one root share a pidfile.
func PathFor(root string) string {
	if canonical, err := pathutil.NormalizeForLookup(root); err == nil {
		root = canonical
	}
	return filepath.Join(paths.CacheDir(), "run", sanitize.ForFilename(root)+".pid")
}

// Acquire records the current process in path. It fails when the process
// recorded there is still alive; a stale file is replaced.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	if pid, err := Read(path); err == nil {
		if pid != os.Getpid() && alive(pid) {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("storybook already running with PID %d", pid)).
				WithDetail("pidfile", path)
		}
		_ = os.Remove(path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Release removes path if it still records the current process.
func Release(path string) error {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read returns the PID recorded in path.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning reports whether the process recorded in path is alive.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return alive(pid), pid, nil
}

// alive sends signal 0, which checks for existence without delivering
// anything. EPERM means the process exists but belongs to someone else.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
