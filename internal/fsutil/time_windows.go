//go:build windows

package fsutil

import (
	"os"
	"syscall"
	"time"
)

func CreatedTime(info os.FileInfo) time.Time {
	if attrs, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return time.Unix(0, attrs.CreationTime.Nanoseconds())
	}
	return info.ModTime()
}
