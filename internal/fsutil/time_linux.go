//go:build linux

package fsutil

import (
	"os"
	"time"
)

// CreatedTime on Linux falls back to the modification time; os.Stat does
// not expose statx birth time.
func CreatedTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
