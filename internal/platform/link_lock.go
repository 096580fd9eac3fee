// Package platform holds OS-specific helpers.
package platform

import (
	"errors"
	"strings"
)

// ErrLinkHeld means another process already drives a vehicle link under the
// same name.
var ErrLinkHeld = errors.New("another rovlink process holds the link")

var ErrLinkLockUnsupported = errors.New("link lock unsupported")

// LinkLock is held for the whole life of a link daemon so two operator
// stations on one machine never send commands at the same time.
type LinkLock interface {
	Release() error
}

func AcquireLinkLock(name string) (LinkLock, error) {
	return acquireLinkLock(lockName(name))
}

// lockName keeps only characters that are safe in file and mutex names.
func lockName(raw string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(raw))

	if mapped = strings.Trim(mapped, "_-."); mapped == "" {
		return "rovlink"
	}

	return mapped
}
