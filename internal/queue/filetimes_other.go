//go:build !linux

package queue

import "os"

// FileTimes extracts file timestamps in epoch milliseconds. Platforms without
// a portable creation time report only the modification time.
func FileTimes(info os.FileInfo) (createdMs, modifiedMs *int64) {
	if info == nil {
		return nil, nil
	}
	mod := info.ModTime().UnixMilli()
	return nil, &mod
}
