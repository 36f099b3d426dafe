//go:build windows
// +build windows

package metadata

import (
	"os"

	"golang.org/x/sys/windows"
)

// Prefetch files are maintained by the OS and are expected to stay writable;
// the readonly attribute bit is what the heuristics key on, not the DACL.
func isReadOnly(path string, info os.FileInfo) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return info.Mode()&0222 == 0
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return info.Mode()&0222 == 0
	}
	return attrs&windows.FILE_ATTRIBUTE_READONLY != 0
}
