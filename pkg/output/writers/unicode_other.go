//go:build !windows

package writers

import "io"

// unicodeSupported returns true on non-Windows platforms.
func unicodeSupported(_ io.Writer) bool {
	return true
}
