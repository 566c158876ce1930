//go:build linux

package process

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const procRoot = "/proc"

// FindProcess procura em /proc pelo argv[0] (comm é truncado em 15 bytes,
// o que corta nomes como SupremeRulerUltimate.exe rodando no wine).
func FindProcess(name string) (int, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", procRoot, err)
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "cmdline"))
		if err != nil || len(cmdline) == 0 {
			continue
		}
		if sameName(argv0(cmdline), name) {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("process %s: %w", name, ErrNotFound)
}

func argv0(cmdline []byte) string {
	if i := bytes.IndexByte(cmdline, 0); i >= 0 {
		cmdline = cmdline[:i]
	}
	return string(cmdline)
}

// GetModuleBase obtém o endereço base de um módulo pelo /proc/<pid>/maps
func GetModuleBase(pid int, moduleName string) (uintptr, error) {
	f, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "maps"))
	if err != nil {
		return 0, fmt.Errorf("failed to open maps: %w", err)
	}
	defer f.Close()
	return moduleBaseFromMaps(f, moduleName)
}

func moduleBaseFromMaps(r io.Reader, moduleName string) (uintptr, error) {
	var (
		best  uint64
		found bool
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		pathname := strings.Join(fields[5:], " ")
		if !sameName(pathname, moduleName) {
			continue
		}
		start, _, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		addr, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}
		if !found || addr < best {
			best, found = addr, true
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("module %s: %w", moduleName, ErrNotFound)
	}
	return uintptr(best), nil
}

// IsRunning verifica se o processo ainda está vivo
func IsRunning(pid int) bool {
	_, err := os.Stat(filepath.Join(procRoot, strconv.Itoa(pid)))
	return err == nil
}
