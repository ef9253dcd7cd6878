package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// writePIDFile records the process id at path. With lock set the file is
// held under an exclusive flock so a second server on the same path fails
// fast. The returned release removes the file.
func writePIDFile(path string, lock bool) (release func(), err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open PID file: %w", err)
	}

	if lock {
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				return nil, fmt.Errorf("another arcade server holds %s (pid %s)", path, readPID(path))
			}
			return nil, fmt.Errorf("lock failed: %w", err)
		}
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot truncate PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cannot write PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cannot sync PID file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readPID returns the pid recorded at path, or "unknown"
func readPID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	if _, err := strconv.Atoi(strings.TrimSpace(string(data))); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}
