//go:build !linux && !windows

package process

import (
	"fmt"
	"runtime"
)

func FindProcess(name string) (int, error) {
	return 0, fmt.Errorf("process lookup not supported on %s", runtime.GOOS)
}

func GetModuleBase(pid int, moduleName string) (uintptr, error) {
	return 0, fmt.Errorf("module lookup not supported on %s", runtime.GOOS)
}

func IsRunning(pid int) bool { return false }
