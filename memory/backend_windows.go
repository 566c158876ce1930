//go:build windows

package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

const (
	PROCESS_VM_READ                   = 0x0010
	PROCESS_QUERY_LIMITED_INFORMATION = 0x1000
	STILL_ACTIVE                      = 259
)

type winBackend struct {
	mu     sync.Mutex
	handle windows.Handle
}

// Open abre o processo só para leitura (sem PROCESS_ALL_ACCESS).
func Open(pid int, timeout time.Duration) (*Reader, error) {
	handle, err := windows.OpenProcess(PROCESS_VM_READ|PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("%w: OpenProcess(%d): %v", ErrAccessDenied, pid, err)
	}
	return NewReader(&winBackend{handle: handle}, timeout), nil
}

func (w *winBackend) ReadAt(addr uintptr, buf []byte) (int, error) {
	w.mu.Lock()
	handle := w.handle
	w.mu.Unlock()
	if handle == 0 {
		return 0, fmt.Errorf("%w: handle closed", ErrAccessDenied)
	}

	var read uintptr
	err := windows.ReadProcessMemory(handle, addr, &buf[0], uintptr(len(buf)), &read)
	if err == nil {
		return int(read), nil
	}

	var code uint32
	if exitErr := windows.GetExitCodeProcess(handle, &code); exitErr != nil || code != STILL_ACTIVE {
		return int(read), fmt.Errorf("%w: process exited (code %d)", ErrAccessDenied, code)
	}
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED), errors.Is(err, windows.ERROR_INVALID_HANDLE):
		return int(read), fmt.Errorf("%w: %v", ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_PARTIAL_COPY):
		return int(read), fmt.Errorf("%w: 0x%X: %v", ErrPartialRead, addr, err)
	}
	return int(read), fmt.Errorf("%w: 0x%X: %v", ErrPartialRead, addr, err)
}

func (w *winBackend) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(w.handle)
	w.handle = 0
	return err
}
