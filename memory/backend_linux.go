//go:build linux

package memory

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type procBackend struct {
	pid    int
	closed atomic.Bool
}

// Open abre o processo para leitura via process_vm_readv.
func Open(pid int, timeout time.Duration) (*Reader, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w: invalid pid %d", ErrAccessDenied, pid)
	}
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return nil, fmt.Errorf("%w: pid %d: %v", ErrAccessDenied, pid, err)
	}
	return NewReader(&procBackend{pid: pid}, timeout), nil
}

func (p *procBackend) ReadAt(addr uintptr, buf []byte) (int, error) {
	if p.closed.Load() {
		return 0, fmt.Errorf("%w: handle closed", ErrAccessDenied)
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: addr, Len: len(buf)}}

	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	switch {
	case errors.Is(err, unix.ESRCH), errors.Is(err, unix.EPERM):
		return n, fmt.Errorf("%w: pid %d: %v", ErrAccessDenied, p.pid, err)
	case err != nil:
		return n, fmt.Errorf("%w: 0x%X: %v", ErrPartialRead, addr, err)
	}
	return n, nil
}

func (p *procBackend) Close() error {
	p.closed.Store(true)
	return nil
}
