package container

import (
	"os"
	"syscall"
)

// statInode extracts the inode number backing a /proc/<pid>/ns/<kind>
// file. Those files are bind-mountable handles onto anonymous namespace
// inodes; the inode number is stable and namespace-unique even after the
// owning process exits, which is exactly the property ContainerID needs.
func statInode(info os.FileInfo) (uint64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return stat.Ino, true
}
