//go:build linux

package queue

import (
	"os"
	"syscall"
)

// FileTimes extracts creation and modification timestamps from file metadata
// in epoch milliseconds. Linux does not expose a birth time through Stat, so
// the inode change time stands in for creation; it is at worst the time the
// file landed in this filesystem.
func FileTimes(info os.FileInfo) (createdMs, modifiedMs *int64) {
	if info == nil {
		return nil, nil
	}
	mod := info.ModTime().UnixMilli()
	modifiedMs = &mod
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		created := stat.Ctim.Sec*1000 + stat.Ctim.Nsec/1e6
		createdMs = &created
	}
	return createdMs, modifiedMs
}
