package immutable

import (
	"os"

	"github.com/twpayne/go-vfs/v4"
	"golang.org/x/sys/unix"
)

// Ioctl implements Attrs with FS_IOC_GETFLAGS / FS_IOC_SETFLAGS, see ioctl_iflags(2).
// Paths are resolved through FS so a vfs.PathFS root is honoured.
type Ioctl struct {
	FS vfs.FS
}

func (i Ioctl) GetFlags(path string) (uint32, error) {
	f, err := i.open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return unix.IoctlGetUint32(int(f.Fd()), unix.FS_IOC_GETFLAGS)
}

func (i Ioctl) SetFlags(path string, flags uint32) error {
	f, err := i.open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return unix.IoctlSetPointerInt(int(f.Fd()), unix.FS_IOC_SETFLAGS, int(flags))
}

func (i Ioctl) open(path string) (*os.File, error) {
	fs := i.FS
	if fs == nil {
		fs = vfs.OSFS
	}
	raw, err := fs.RawPath(path)
	if err != nil {
		return nil, err
	}
	return os.Open(raw)
}
