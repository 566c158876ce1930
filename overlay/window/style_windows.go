//go:build windows

package window

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                         = windows.NewLazyDLL("user32.dll")
	procSetWindowLongPtr           = user32.NewProc("SetWindowLongPtrW")
	procGetWindowLongPtr           = user32.NewProc("GetWindowLongPtrW")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procSetWindowPos               = user32.NewProc("SetWindowPos")
	procFindWindow                 = user32.NewProc("FindWindowW")
)

var GWL_EXSTYLE = uintptr(0xFFFFFFFFFFFFFFEC) // -20 como uintptr

const (
	WS_EX_LAYERED     = 0x00080000
	WS_EX_TRANSPARENT = 0x00000020
	WS_EX_TOPMOST     = 0x00000008
	WS_EX_TOOLWINDOW  = 0x00000080
	LWA_ALPHA         = 0x00000002
	HWND_TOPMOST      = ^uintptr(0)
	SWP_NOMOVE        = 0x0002
	SWP_NOSIZE        = 0x0001
	SWP_SHOWWINDOW    = 0x0040
)

var errNoWindow = errors.New("janela do overlay não encontrada")

// style acha a janela pelo título e aplica layered + topmost (+ click-through).
func style(title string, alpha byte, clickThrough bool) error {
	hwnd, err := findWindow(title)
	if err != nil {
		return err
	}
	return makeTransparentOverlay(hwnd, alpha, clickThrough)
}

func findWindow(title string) (uintptr, error) {
	name, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}
	ret, _, _ := procFindWindow.Call(0, uintptr(unsafe.Pointer(name)))
	if ret == 0 {
		return 0, errNoWindow
	}
	return ret, nil
}

// makeTransparentOverlay torna a janela um overlay transparente
func makeTransparentOverlay(hwnd uintptr, alpha byte, clickThrough bool) error {
	current, _, _ := procGetWindowLongPtr.Call(hwnd, GWL_EXSTYLE)

	newStyle := current | WS_EX_LAYERED | WS_EX_TOPMOST | WS_EX_TOOLWINDOW
	if clickThrough {
		newStyle |= WS_EX_TRANSPARENT
	}
	if ret, _, err := procSetWindowLongPtr.Call(hwnd, GWL_EXSTYLE, newStyle); ret == 0 {
		return err
	}

	if ret, _, err := procSetLayeredWindowAttributes.Call(hwnd, 0, uintptr(alpha), LWA_ALPHA); ret == 0 {
		return err
	}

	procSetWindowPos.Call(
		hwnd,
		HWND_TOPMOST,
		0, 0, 0, 0,
		SWP_NOMOVE|SWP_NOSIZE|SWP_SHOWWINDOW,
	)
	return nil
}
