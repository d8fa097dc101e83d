//go:build !linux && !darwin

package storage

import (
	"io/fs"
	"time"
)

// Other platforms only expose the modification time portably.
func accessTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}

func changeTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
