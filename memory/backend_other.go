//go:build !linux && !windows

package memory

import (
	"fmt"
	"runtime"
	"time"
)

// Open não é suportado fora de windows/linux.
func Open(pid int, timeout time.Duration) (*Reader, error) {
	return nil, fmt.Errorf("%w: live reads not supported on %s", ErrAccessDenied, runtime.GOOS)
}
