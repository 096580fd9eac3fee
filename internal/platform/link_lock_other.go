//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly) && !windows

package platform

import (
	"fmt"
	"runtime"
)

func acquireLinkLock(string) (LinkLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrLinkLockUnsupported, runtime.GOOS)
}
