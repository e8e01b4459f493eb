package probes

import (
	"golang.org/x/sys/unix"
)

// statInode returns the inode number backing path, via golang.org/x/sys/unix
// rather than os.FileInfo.Sys() type assertions, so the auth and log-tamper
// adapters' inode tracking shares one Linux-specific stat path. Returns 0 on
// any stat failure (e.g. the file vanished mid-poll).
func statInode(path string) uint64 {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0
	}
	return st.Ino
}
