//go:build !windows

package window

// Fora do Windows o ebiten já cuida de floating e sem borda.
func style(string, byte, bool) error { return nil }
