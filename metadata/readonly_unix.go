//go:build !windows
// +build !windows

package metadata

import "os"

func isReadOnly(_ string, info os.FileInfo) bool {
	return info.Mode()&0222 == 0
}
