//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

type flockLinkLock struct {
	file *os.File
}

func acquireLinkLock(name string) (LinkLock, error) {
	dir := lockDir(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create link lock dir: %w", err)
	}

	path := filepath.Join(dir, "link.lock")
	// #nosec G304 -- path is built from runtime/temp dirs owned by this user.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open link lock: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return nil, ErrLinkHeld
		}

		return nil, fmt.Errorf("lock link file: %w", err)
	}

	return &flockLinkLock{file: file}, nil
}

func (l *flockLinkLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil

	// Closing the descriptor drops the flock as well.
	if err := file.Close(); err != nil {
		return fmt.Errorf("close link lock: %w", err)
	}

	return nil
}

// lockDir prefers XDG_RUNTIME_DIR, which is per user and wiped on logout.
func lockDir(name string) string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, name)
	}

	return filepath.Join(os.TempDir(), name+"-"+strconv.Itoa(os.Getuid()))
}
