//go:build windows

package writers

import (
	"io"
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

// unicodeSupported reports whether the console behind w renders UTF-8
// glyphs. Piped output is re-encoded by PowerShell with the OEM codepage,
// so only a real console set to codepage 65001 qualifies.
func unicodeSupported(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	if !term.IsTerminal(int(f.Fd())) {
		return false
	}
	const cpUTF8 = 65001
	cp, err := windows.GetConsoleOutputCP()
	return err == nil && cp == cpUTF8
}
