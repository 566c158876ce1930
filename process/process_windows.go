//go:build windows

package process

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	TH32CS_SNAPPROCESS  = 0x2
	TH32CS_SNAPMODULE   = 0x8
	TH32CS_SNAPMODULE32 = 0x10
	STILL_ACTIVE        = 259
)

// FindProcess encontra um processo pelo nome
func FindProcess(name string) (int, error) {
	snap, err := windows.CreateToolhelp32Snapshot(TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))

	if err := windows.Process32First(snap, &pe); err != nil {
		return 0, fmt.Errorf("no processes found: %w", err)
	}

	for {
		if sameName(windows.UTF16ToString(pe.ExeFile[:]), name) {
			return int(pe.ProcessID), nil
		}
		if err := windows.Process32Next(snap, &pe); err != nil {
			break
		}
	}

	return 0, fmt.Errorf("process %s: %w", name, ErrNotFound)
}

// GetModuleBase obtém o endereço base de um módulo
func GetModuleBase(pid int, moduleName string) (uintptr, error) {
	snap, err := windows.CreateToolhelp32Snapshot(TH32CS_SNAPMODULE|TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return 0, fmt.Errorf("failed to create module snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))

	if err := windows.Module32First(snap, &me); err != nil {
		return 0, fmt.Errorf("no modules found: %w", err)
	}

	for {
		if sameName(windows.UTF16ToString(me.Module[:]), moduleName) {
			return me.ModBaseAddr, nil
		}
		if err := windows.Module32Next(snap, &me); err != nil {
			break
		}
	}

	return 0, fmt.Errorf("module %s: %w", moduleName, ErrNotFound)
}

// IsRunning verifica se o processo ainda está vivo
func IsRunning(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == STILL_ACTIVE
}
