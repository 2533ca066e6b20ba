//go:build linux

package watcher

import (
	"bufio"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case unix.NFS_SUPER_MAGIC:
		return FSTypeNFS
	case unix.SMB_SUPER_MAGIC, unix.SMB2_SUPER_MAGIC, unix.CIFS_SUPER_MAGIC:
		return FSTypeSMB
	case unix.FUSE_SUPER_MAGIC:
		if fuseSubtype(path) == "sshfs" {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

// fuseSubtype returns the subtype ("sshfs", ...) of the deepest fuse mount
// containing path.
func fuseSubtype(path string) string {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	best, subtype := "", ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.HasPrefix(fields[2], "fuse.") {
			continue
		}
		mount := fields[1]
		if !strings.HasPrefix(path, mount) || len(mount) <= len(best) {
			continue
		}
		best, subtype = mount, strings.TrimPrefix(fields[2], "fuse.")
	}
	return subtype
}
